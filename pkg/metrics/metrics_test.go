package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("board"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every collector is registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.impactsLogged.WithLabelValues("prayed").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_board_impacts_logged_total"], ShouldBeTrue)
				So(names["test_board_queue_size"], ShouldBeTrue)
			})
		})

		Convey("When registering the same manager twice", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then promauto panics on the duplicate collectors", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording feed activity", func() {
			before := testutil.ToFloat64(globalManager.impactsLogged.WithLabelValues("helped"))
			RecordImpactLogged("helped")
			RecordImpactLogged("helped")

			Convey("Then the counter moves by the recorded amount", func() {
				after := testutil.ToFloat64(globalManager.impactsLogged.WithLabelValues("helped"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording support toggles", func() {
			on := testutil.ToFloat64(globalManager.supportToggles.WithLabelValues("requests", "on"))
			off := testutil.ToFloat64(globalManager.supportToggles.WithLabelValues("requests", "off"))
			RecordSupportToggle("requests", true)
			RecordSupportToggle("requests", false)
			RecordSupportToggle("requests", false)

			Convey("Then on and off are counted separately", func() {
				So(testutil.ToFloat64(globalManager.supportToggles.WithLabelValues("requests", "on"))-on, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.supportToggles.WithLabelValues("requests", "off"))-off, ShouldEqual, 2)
			})
		})

		Convey("When skipping zero malformed records", func() {
			before := testutil.ToFloat64(globalManager.snapshotRecordsSkipped.WithLabelValues("events"))
			RecordSnapshotRecordsSkipped("events", 0)
			RecordSnapshotRecordsSkipped("events", 3)

			Convey("Then only positive counts are added", func() {
				after := testutil.ToFloat64(globalManager.snapshotRecordsSkipped.WithLabelValues("events"))
				So(after-before, ShouldEqual, 3)
			})
		})

		Convey("When updating gauges", func() {
			UpdateBoardSize(7)
			UpdateMemberCount(3)
			UpdateSessionCount(2)
			UpdateQueueSize(5)
			UpdateQueueCapacity(10)
			UpdateWorkerCount(4)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.boardSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.memberCount), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.sessions), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 10)
			})
		})

		Convey("When recording the remaining collectors", func() {
			So(func() {
				RecordPrayerRequest()
				RecordDuplicateSubmission()
				RecordPublishFailure("events")
				RecordSnapshotMerged("members")
				RecordSnapshotStale("members")
				RecordSnapshotPublished("events")
				RecordStoreLatency("append", 1.5)
				RecordStoreError("update")
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				AddWorkerActive(1)
				AddWorkerActive(-1)
				RecordWorkerProcessingLatency(2)
				RecordWorkerError()
				RecordMissionRefresh("ok")
				RecordHTTPRequest("/board", "GET", "200")
				RecordHTTPRequestDuration("/board", "GET", "200", 3)
				RecordRateLimited("/impacts")
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
