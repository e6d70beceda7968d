package model

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCalendar(t *testing.T) {
	Convey("Given the default calendar", t, func() {
		cal := UTC()

		Convey("When taking the day of an instant", func() {
			at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)

			Convey("Then it is the UTC date", func() {
				So(cal.DayOf(at), ShouldEqual, Day("2024-03-09"))
				So(cal.DayOf(time.Time{}).IsZero(), ShouldBeTrue)
			})
		})

		Convey("When the instant carries another offset", func() {
			brt := time.FixedZone("BRT", -3*3600)
			at := time.Date(2024, 3, 9, 22, 30, 0, 0, brt)

			Convey("Then the calendar's zone decides the day", func() {
				So(cal.DayOf(at), ShouldEqual, Day("2024-03-10"))
				So(NewCalendar(brt).DayOf(at), ShouldEqual, Day("2024-03-09"))
			})
		})

		Convey("When parsing stored dates", func() {
			So(cal.ParseDay("2024-03-09"), ShouldEqual, Day("2024-03-09"))
			So(cal.ParseDay(" 2024-03-09 "), ShouldEqual, Day("2024-03-09"))
			So(cal.ParseDay("2024-03-09T22:30:00-03:00"), ShouldEqual, Day("2024-03-10"))
			So(cal.ParseDay("2024-03-09T10:00:00.123Z"), ShouldEqual, Day("2024-03-09"))
			So(cal.ParseDay("2024-03-09 10:00"), ShouldEqual, Day("2024-03-09"))
			So(cal.ParseDay("2024-3-9"), ShouldEqual, Day(""))
			So(cal.ParseDay("yesterday"), ShouldEqual, Day(""))
			So(cal.ParseDay(""), ShouldEqual, Day(""))
		})
	})
}

func TestDayArithmetic(t *testing.T) {
	Convey("Given canonical days", t, func() {
		So(Day("2024-03-01").Prev(), ShouldEqual, Day("2024-02-29"))
		So(Day("2024-01-01").Prev(), ShouldEqual, Day("2023-12-31"))
		So(Day("2024-12-31").AddDays(1), ShouldEqual, Day("2025-01-01"))
		So(Day("2024-02-30").Valid(), ShouldBeFalse)
		So(Day("garbage").Prev(), ShouldEqual, Day("garbage"))
	})
}

func TestMember(t *testing.T) {
	Convey("Given member names", t, func() {
		So(ShortName("Samuel Duarte"), ShouldEqual, "Samuel D.")
		So(ShortName("  Ana  Maria   Souza "), ShouldEqual, "Ana S.")
		So(ShortName("Élio Órfão"), ShouldEqual, "Élio Ó.")
		So(ShortName("Cher"), ShouldEqual, "Cher")
		So(ShortName(""), ShouldEqual, "")

		m := Member{FirstName: "Samuel", LastName: "Duarte"}
		So(m.FullName(), ShouldEqual, "Samuel Duarte")
		So(m.ShortName(), ShouldEqual, "Samuel D.")
	})

	Convey("Given stored roles", t, func() {
		So(ParseRole("visitor"), ShouldEqual, RoleVisitor)
		So(ParseRole("member"), ShouldEqual, RoleRegular)
		So(ParseRole(""), ShouldEqual, RoleRegular)
		So(Member{Role: RoleVisitor}.IsVisitor(), ShouldBeTrue)
	})

	Convey("Given login handles", t, func() {
		So(MemberIDFromLogin("Ana.Souza@Mail.com"), ShouldEqual, "user_anasouzamailcom")
		So(MemberIDFromLogin("(11) 99999-0000"), ShouldEqual, "user_11999990000")
		So(MemberIDFromLogin("(11) 9999-0000"), ShouldEqual, "user_1199990000")
		So(MemberIDFromLogin("@@"), ShouldEqual, "")
	})
}

func TestParsing(t *testing.T) {
	Convey("Given action kinds", t, func() {
		k, err := ParseActionKind(" Shared ")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, ActionShared)

		_, err = ParseActionKind("danced")
		So(errors.Is(err, ErrInvalidKind), ShouldBeTrue)
	})

	Convey("Given prayer categories", t, func() {
		c, err := ParseCategory("Saúde")
		So(err, ShouldBeNil)
		So(c, ShouldEqual, CategoryHealth)

		c, err = ParseCategory("school")
		So(err, ShouldBeNil)
		So(c, ShouldEqual, CategorySchool)

		_, err = ParseCategory("weather")
		So(errors.Is(err, ErrInvalidCategory), ShouldBeTrue)
	})
}

func TestRecords(t *testing.T) {
	Convey("Given a mixed snapshot", t, func() {
		now := time.Now()
		snap := Snapshot{
			Collection: CollectionEvents,
			Records: []Record{
				EventRecord{ImpactEvent{ID: "e1", CreatedAt: now}},
				MemberRecord{Member{ID: "m1"}},
				RequestRecord{PrayerRequest{ID: "r1"}},
			},
		}

		Convey("Then typed accessors filter by variant", func() {
			So(snap.Events(), ShouldHaveLength, 1)
			So(snap.Members()[0].ID, ShouldEqual, "m1")
			So(snap.Requests()[0].ID, ShouldEqual, "r1")
			So(snap.Records[0].Kind(), ShouldEqual, KindEvent)
			So(snap.Records[0].Timestamp(), ShouldEqual, now)
		})

		Convey("Then collections know their kind", func() {
			So(CollectionMembers.Kind(), ShouldEqual, KindMember)
			So(CollectionRequests.Kind(), ShouldEqual, KindRequest)
			So(Collection("nope").Kind(), ShouldEqual, RecordKind(""))
		})
	})

	Convey("Given the newest-first ordering", t, func() {
		t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		t1 := t0.Add(time.Second)

		So(CompareNewestFirst(t1, "b", t0, "a"), ShouldBeLessThan, 0)
		So(CompareNewestFirst(t0, "a", t1, "b"), ShouldBeGreaterThan, 0)
		So(CompareNewestFirst(t0, "a", t0, "b"), ShouldBeLessThan, 0)
		So(CompareNewestFirst(t0, "a", t0, "a"), ShouldEqual, 0)
	})

	Convey("Given set operations", t, func() {
		So(ArrayUnion("a", "b"), ShouldResemble, SetOp{Values: []string{"a", "b"}})
		So(ArrayRemove("a").Remove, ShouldBeTrue)
	})
}
