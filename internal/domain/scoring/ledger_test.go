package scoring

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/vibeteen/mural/internal/domain/model"
)

func TestLedgerScenarios(t *testing.T) {
	Convey("Given a member with no prior activity", t, func() {
		l := NewLedger()
		d := model.Day("2024-05-10")
		var s State

		Convey("When they log a prayed event on day D", func() {
			r := l.Apply(s, model.ActionPrayed, d)

			Convey("Then xp is 10, streak is 1 and the day is recorded", func() {
				So(r.After.XP, ShouldEqual, 10)
				So(r.After.Streak, ShouldEqual, 1)
				So(r.After.LastActiveDate, ShouldEqual, d)
				So(r.Delta, ShouldEqual, 10)
				So(r.Change, ShouldEqual, StreakRestarted)
			})

			Convey("And they log again on the same day", func() {
				r2 := l.Apply(r.After, model.ActionInvited, d)

				Convey("Then the streak is unchanged but xp grows", func() {
					So(r2.After.Streak, ShouldEqual, 1)
					So(r2.After.XP, ShouldEqual, 60)
					So(r2.Change, ShouldEqual, StreakKept)
				})
			})

			Convey("And they log on D+1", func() {
				r2 := l.Apply(r.After, model.ActionHelped, d.AddDays(1))

				Convey("Then the streak becomes 2", func() {
					So(r2.After.Streak, ShouldEqual, 2)
					So(r2.After.LongestStreak, ShouldEqual, 2)
					So(r2.Change, ShouldEqual, StreakContinued)
				})

				Convey("And again on D+3 after a gap", func() {
					r3 := l.Apply(r2.After, model.ActionShared, d.AddDays(3))

					Convey("Then the streak resets to 1 and the longest is kept", func() {
						So(r3.After.Streak, ShouldEqual, 1)
						So(r3.After.LongestStreak, ShouldEqual, 2)
						So(r3.After.XP, ShouldEqual, 10+15+25)
						So(r3.After.LastActiveDate, ShouldEqual, d.AddDays(3))
					})
				})
			})
		})
	})
}

func TestNextStreak(t *testing.T) {
	Convey("Given the day rule", t, func() {
		today := model.Day("2024-03-01")

		So(first(NextStreak(4, today, today)), ShouldEqual, 4)
		So(first(NextStreak(4, model.Day("2024-02-29"), today)), ShouldEqual, 5)
		So(first(NextStreak(4, model.Day("2024-02-28"), today)), ShouldEqual, 1)
		So(first(NextStreak(4, "", today)), ShouldEqual, 1)
		So(first(NextStreak(4, "not-a-date", today)), ShouldEqual, 1)
		So(first(NextStreak(-2, model.Day("2024-02-29"), today)), ShouldEqual, 1)

		Convey("Then a date in the future restarts the streak", func() {
			So(first(NextStreak(9, model.Day("2024-03-05"), today)), ShouldEqual, 1)
		})

		Convey("Then year boundaries continue the streak", func() {
			n, c := NextStreak(3, model.Day("2023-12-31"), model.Day("2024-01-01"))
			So(n, ShouldEqual, 4)
			So(c.String(), ShouldEqual, "continued")
		})
	})
}

func TestLedgerCalendar(t *testing.T) {
	Convey("Given a ledger on a Sao Paulo calendar", t, func() {
		brt := time.FixedZone("BRT", -3*3600)
		l := NewLedger(WithCalendar(model.NewCalendar(brt)))
		s := State{XP: 100, Streak: 3, LastActiveDate: "2024-03-09"}

		Convey("When an event lands at 23:30 local time", func() {
			at := time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)
			r := l.ApplyAt(s, model.ActionPrayed, at)

			Convey("Then it counts for the local day, not the next UTC day", func() {
				So(r.After.LastActiveDate, ShouldEqual, model.Day("2024-03-09"))
				So(r.After.Streak, ShouldEqual, 3)
			})
		})

		Convey("When the same instant goes through a UTC ledger", func() {
			at := time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)
			r := NewLedger().ApplyAt(s, model.ActionPrayed, at)

			Convey("Then it continues the streak", func() {
				So(r.After.LastActiveDate, ShouldEqual, model.Day("2024-03-10"))
				So(r.After.Streak, ShouldEqual, 4)
			})
		})
	})
}

func TestXPTable(t *testing.T) {
	Convey("Given the default table", t, func() {
		l := NewLedger()
		So(l.XPFor(model.ActionPrayed), ShouldEqual, 10)
		So(l.XPFor(model.ActionHelped), ShouldEqual, 15)
		So(l.XPFor(model.ActionShared), ShouldEqual, 25)
		So(l.XPFor(model.ActionInvited), ShouldEqual, 50)
		So(l.XPFor("danced"), ShouldEqual, 0)
	})

	Convey("Given a configured table", t, func() {
		table := ParseXPTable(map[string]int{"prayed": 12, "danced": 99, "shared": -1})
		l := NewLedger(WithXPTable(table))

		Convey("Then valid entries override the defaults", func() {
			So(l.XPFor(model.ActionPrayed), ShouldEqual, 12)
			So(l.XPFor(model.ActionShared), ShouldEqual, 25)
			So(table, ShouldHaveLength, 4)
		})
	})

	Convey("Given corrupted stored state", t, func() {
		r := NewLedger().Apply(State{XP: -40, Streak: -1, LongestStreak: 0}, model.ActionHelped, "2024-01-01")

		Convey("Then xp never goes below the earned points", func() {
			So(r.After.XP, ShouldEqual, 15)
			So(r.After.Streak, ShouldEqual, 1)
			So(r.After.LongestStreak, ShouldEqual, 1)
		})
	})

	Convey("Given a member", t, func() {
		m := model.Member{ID: "m1", XP: 5, Streak: 2, LongestStreak: 4, LastActiveDate: "2024-01-01"}

		Convey("Then state round-trips through the member", func() {
			s := StateOf(m)
			s.XP = 50
			out := s.ApplyTo(m)
			So(out.XP, ShouldEqual, 50)
			So(out.ID, ShouldEqual, "m1")
			So(m.XP, ShouldEqual, 5)
		})
	})
}

func first(n int, _ StreakChange) int { return n }
