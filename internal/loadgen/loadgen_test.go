package loadgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/vibeteen/mural/internal/adapters/http/api"
	service "github.com/vibeteen/mural/internal/app"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/scoring"
	"github.com/vibeteen/mural/pkg/logger"
)

func TestGenerateSubmissions(t *testing.T) {
	_ = logger.Init()

	Convey("Given three members", t, func() {
		ctx := context.Background()
		ids := []string{"user_a", "user_b", "user_c"}

		Convey("When every submission is fresh", func() {
			cfg := (&Config{Submissions: 200, RepeatRatio: 0}).withDefaults()
			stats := &Stats{}
			subs, err := generateSubmissions(ctx, cfg, ids, stats)

			Convey("Then ids are unique and fields are valid", func() {
				So(err, ShouldBeNil)
				So(stats.SubmissionsGenerated, ShouldEqual, 200)
				seen := map[string]bool{}
				for _, s := range subs {
					So(seen[s.SubmissionID], ShouldBeFalse)
					seen[s.SubmissionID] = true
					So(ids, ShouldContain, s.MemberID)
					_, err := model.ParseActionKind(s.Kind)
					So(err, ShouldBeNil)
					So(s.Recipient, ShouldNotBeBlank)
				}
			})
		})

		Convey("When most submissions repeat", func() {
			cfg := (&Config{Submissions: 200, RepeatRatio: 0.9}).withDefaults()
			subs, err := generateSubmissions(ctx, cfg, ids, &Stats{})

			Convey("Then repeats reuse an earlier submission unchanged", func() {
				So(err, ShouldBeNil)
				first := map[string]Submission{}
				repeats := 0
				for _, s := range subs {
					if prev, ok := first[s.SubmissionID]; ok {
						So(s, ShouldResemble, prev)
						repeats++
						continue
					}
					first[s.SubmissionID] = s
				}
				So(repeats, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When there are no members", func() {
			_, err := generateSubmissions(ctx, (&Config{}).withDefaults(), nil, &Stats{})

			Convey("Then generation fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestExpectedXP(t *testing.T) {
	Convey("Given accepted submissions", t, func() {
		accepted := map[string]Submission{
			"s1": {MemberID: "ana", SubmissionID: "s1", Kind: "helped"},
			"s2": {MemberID: "ana", SubmissionID: "s2", Kind: "invited"},
			"s3": {MemberID: "bia", SubmissionID: "s3", Kind: "prayed"},
		}

		Convey("Then XP is summed per member from the table", func() {
			got := expectedXP(accepted, scoring.DefaultXPTable())
			So(got["ana"], ShouldEqual, 65)
			So(got["bia"], ShouldEqual, 10)
			So(got["vi"], ShouldEqual, 0)
		})
	})
}

func TestVerifyLeaderboardOrder(t *testing.T) {
	Convey("Given leaderboard entries", t, func() {
		Convey("When sorted by xp then streak", func() {
			board := []Entry{{Rank: 1, XP: 50, Streak: 1}, {Rank: 2, XP: 50, Streak: 0}, {Rank: 3, XP: 10}}
			So(verifyLeaderboardOrder(board), ShouldBeNil)
		})

		Convey("When xp rises", func() {
			board := []Entry{{Rank: 1, XP: 10}, {Rank: 2, XP: 50}}
			So(verifyLeaderboardOrder(board), ShouldNotBeNil)
		})

		Convey("When ranks skip", func() {
			board := []Entry{{Rank: 1, XP: 10}, {Rank: 3, XP: 5}}
			So(verifyLeaderboardOrder(board), ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	_ = logger.Init()

	Convey("Given a running mural server", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithLogger(logger.Nop()), service.WithWorkerCount(4))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, api.WithRateLimit(10_000, 10_000)).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When a small load run completes", func() {
			out := filepath.Join(t.TempDir(), "subs", "sent.json")
			stats, err := Run(ctx, &Config{
				BaseURL:     srv.URL,
				Members:     3,
				Submissions: 40,
				RepeatRatio: 0.2,
				TopN:        10,
				Workers:     4,
				Timeout:     5 * time.Second,
				Settle:      time.Second,
				OutputFile:  out,
			})

			Convey("Then stored XP matches the accepted submissions", func() {
				So(err, ShouldBeNil)
				So(stats.MembersSignedIn, ShouldEqual, 3)
				So(stats.SubmissionsSent, ShouldEqual, 40)
				So(stats.Accepted, ShouldEqual, 40)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.MembersVerified, ShouldEqual, 3)
				_, statErr := os.Stat(out)
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When the base url is wrong", func() {
			_, err := Run(ctx, &Config{BaseURL: srv.URL + "/nope", Members: 1, Submissions: 1, Timeout: time.Second})

			Convey("Then the health check fails the run", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
