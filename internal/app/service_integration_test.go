package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/vibeteen/mural/internal/adapters/repository"
	service "github.com/vibeteen/mural/internal/app"
	"github.com/vibeteen/mural/internal/domain/feed"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/support"
)

var monday = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

// flakyStore fails event appends while failEvents is set.
type flakyStore struct {
	repository.Store
	failEvents atomic.Bool
}

func (f *flakyStore) Append(ctx context.Context, col model.Collection, rec model.Record) (string, error) {
	if col == model.CollectionEvents && f.failEvents.Load() {
		return "", errors.New("store unavailable")
	}
	return f.Store.Append(ctx, col, rec)
}

func tileFor(svc *service.Service, memberID, eventID string) (service.BoardTile, bool) {
	b, err := svc.Board(memberID)
	if err != nil {
		return service.BoardTile{}, false
	}
	for _, t := range b.Tiles {
		if t.Event.ID == eventID {
			return t, true
		}
	}
	return service.BoardTile{}, false
}

func xpOf(svc *service.Service, memberID string) int {
	m, err := svc.Member(context.Background(), memberID)
	if err != nil {
		return -1
	}
	return m.XP
}

func signInAll(svc *service.Service) {
	ctx := context.Background()
	for _, m := range []model.Member{
		{ID: "ana", FirstName: "Ana", LastName: "Lima"},
		{ID: "bia", FirstName: "Bia", LastName: "Souza"},
		{ID: "vi", FirstName: "Vi", Role: model.RoleVisitor},
	} {
		_, err := svc.SignIn(ctx, m)
		So(err, ShouldBeNil)
	}
}

func TestLogImpact(t *testing.T) {
	Convey("Given three signed-in members", t, func() {
		ctx := context.Background()
		clk := newClock(monday)
		svc := startService(service.WithClock(clk.Now))
		Reset(func() { svc.Stop() })
		signInAll(svc)

		Convey("When a visitor tries to log an event", func() {
			_, err := svc.LogImpact(ctx, "vi", "", model.ActionHelped, "Rui")

			Convey("Then it is rejected before any write", func() {
				So(err, ShouldEqual, service.ErrVisitorRestricted)
				So(svc.GetStats()["events"], ShouldEqual, 0)
			})
		})

		Convey("When required input is missing or invalid", func() {
			_, errRecipient := svc.LogImpact(ctx, "ana", "", model.ActionHelped, "   ")
			_, errKind := svc.LogImpact(ctx, "ana", "", model.ActionKind("dancing"), "Rui")

			Convey("Then validation errors are returned", func() {
				So(errors.Is(errRecipient, service.ErrEmptyField), ShouldBeTrue)
				So(errors.Is(errKind, model.ErrInvalidKind), ShouldBeTrue)
			})
		})

		Convey("When a member who is not signed in logs", func() {
			_, err := svc.LogImpact(ctx, "ghost", "", model.ActionHelped, "Rui")

			Convey("Then there is no session", func() {
				So(err, ShouldEqual, service.ErrNoSession)
			})
		})

		Convey("When Ana logs that she helped Rui", func() {
			e, err := svc.LogImpact(ctx, "ana", "sub-1", model.ActionHelped, "Rui")
			So(err, ShouldBeNil)

			Convey("Then the event shows on her board at once", func() {
				tile, ok := tileFor(svc, "ana", e.ID)
				So(ok, ShouldBeTrue)
				So(tile.Index, ShouldEqual, 0)
				So(tile.Event.AuthorName, ShouldEqual, "Ana L.")
				So(tile.Event.Kind, ShouldEqual, "helped")
			})

			Convey("Then it is published and her xp and streak are stored", func() {
				So(eventually(func() bool {
					tile, ok := tileFor(svc, "ana", e.ID)
					return ok && tile.Event.State == service.StatePublished
				}), ShouldBeTrue)
				So(eventually(func() bool { return xpOf(svc, "ana") == 15 }), ShouldBeTrue)

				m, _ := svc.Member(ctx, "ana")
				So(m.Streak, ShouldEqual, 1)
				So(m.LongestStreak, ShouldEqual, 1)
				So(m.LastActiveDate, ShouldEqual, model.Day("2025-03-10"))
			})

			Convey("Then other members see it", func() {
				So(eventually(func() bool {
					_, ok := tileFor(svc, "bia", e.ID)
					return ok
				}), ShouldBeTrue)
			})

			Convey("Then her stats and the leaderboard reflect it", func() {
				So(eventually(func() bool {
					top, err := svc.Leaderboard(1)
					return err == nil && len(top) == 1 && top[0].MemberID == "ana" && top[0].XP == 15
				}), ShouldBeTrue)

				stats, err := svc.Stats("ana")
				So(err, ShouldBeNil)
				So(stats.TotalImpact, ShouldEqual, 1)
				So(stats.Today[model.ActionHelped], ShouldEqual, 1)
				So(stats.Rank, ShouldEqual, 1)
				So(stats.Mission, ShouldEqual, "Ore por um amigo")
				So(stats.Badges[0].Badge, ShouldEqual, feed.BadgeNovice)
				So(stats.Badges[0].Earned, ShouldBeTrue)
			})

			Convey("Then resubmitting the same submission logs nothing new", func() {
				again, err := svc.LogImpact(ctx, "ana", "sub-1", model.ActionHelped, "Rui")
				So(err, ShouldBeNil)
				So(again.ID, ShouldEqual, e.ID)

				So(eventually(func() bool { return xpOf(svc, "ana") == 15 }), ShouldBeTrue)
				time.Sleep(20 * time.Millisecond)
				So(xpOf(svc, "ana"), ShouldEqual, 15)
				So(svc.GetStats()["events"], ShouldEqual, 1)
			})

			Convey("Then logging again the next day continues the streak", func() {
				So(eventually(func() bool { return xpOf(svc, "ana") == 15 }), ShouldBeTrue)
				clk.Set(monday.Add(24 * time.Hour))

				_, err := svc.LogImpact(ctx, "ana", "sub-2", model.ActionPrayed, "Caio")
				So(err, ShouldBeNil)
				So(eventually(func() bool { return xpOf(svc, "ana") == 25 }), ShouldBeTrue)

				m, _ := svc.Member(ctx, "ana")
				So(m.Streak, ShouldEqual, 2)
				So(m.LongestStreak, ShouldEqual, 2)
			})
		})
	})
}

func TestPublishFailure(t *testing.T) {
	Convey("Given a store that refuses events", t, func() {
		ctx := context.Background()
		inner, err := repository.OpenInMemory(ctx)
		So(err, ShouldBeNil)
		store := &flakyStore{Store: inner}
		store.failEvents.Store(true)

		svc := startService(service.WithStore(store), service.WithClock(newClock(monday).Now))
		Reset(func() { svc.Stop() })
		signInAll(svc)

		Convey("When Ana logs an event", func() {
			e, err := svc.LogImpact(ctx, "ana", "", model.ActionShared, "Rui")
			So(err, ShouldBeNil)

			Convey("Then the event is flagged for retry and a notice is raised", func() {
				So(eventually(func() bool {
					tile, ok := tileFor(svc, "ana", e.ID)
					return ok && tile.Event.State == service.StateFailed
				}), ShouldBeTrue)

				notices, err := svc.Notices("ana")
				So(err, ShouldBeNil)
				So(len(notices), ShouldEqual, 1)
				So(notices[0].Level, ShouldEqual, service.NoticeError)

				again, _ := svc.Notices("ana")
				So(again, ShouldBeEmpty)
			})

			Convey("Then the optimistic xp is withdrawn", func() {
				So(eventually(func() bool {
					stats, _ := svc.Stats("ana")
					return stats.Member.XP == 0
				}), ShouldBeTrue)
			})

			Convey("Then a pending event cannot be supported yet", func() {
				_, err := svc.ToggleEventSupport(ctx, "bia", e.ID)
				So(err, ShouldNotBeNil)
			})

			Convey("Then a retry once the store recovers publishes it", func() {
				So(eventually(func() bool {
					tile, ok := tileFor(svc, "ana", e.ID)
					return ok && tile.Event.State == service.StateFailed
				}), ShouldBeTrue)

				_, err := svc.ToggleEventSupport(ctx, "ana", e.ID)
				So(err, ShouldEqual, service.ErrItemPending)

				store.failEvents.Store(false)
				retried, err := svc.RetryImpact(ctx, "ana", e.ID)
				So(err, ShouldBeNil)
				So(retried.ID, ShouldEqual, e.ID)

				So(eventually(func() bool {
					tile, ok := tileFor(svc, "ana", e.ID)
					return ok && tile.Event.State == service.StatePublished
				}), ShouldBeTrue)
				So(eventually(func() bool { return xpOf(svc, "ana") == 25 }), ShouldBeTrue)

				_, err = svc.RetryImpact(ctx, "ana", e.ID)
				So(err, ShouldEqual, service.ErrNothingToRetry)
			})
		})
	})
}

func TestSupport(t *testing.T) {
	Convey("Given a published event by Ana", t, func() {
		ctx := context.Background()
		svc := startService()
		Reset(func() { svc.Stop() })
		signInAll(svc)

		e, err := svc.LogImpact(ctx, "ana", "", model.ActionPrayed, "Rui")
		So(err, ShouldBeNil)
		So(eventually(func() bool {
			_, ok := tileFor(svc, "bia", e.ID)
			return ok
		}), ShouldBeTrue)

		Convey("When Bia marks support", func() {
			on, err := svc.ToggleEventSupport(ctx, "bia", e.ID)
			So(err, ShouldBeNil)
			So(on, ShouldBeTrue)

			Convey("Then her board shows it immediately", func() {
				tile, _ := tileFor(svc, "bia", e.ID)
				So(tile.Event.SupportedByMe, ShouldBeTrue)
				So(tile.Event.SupporterNames, ShouldResemble, []string{feed.ViewerLabel})
			})

			Convey("Then Ana eventually sees Bia's name", func() {
				So(eventually(func() bool {
					tile, _ := tileFor(svc, "ana", e.ID)
					return tile.Event.SupportCount == 1 && len(tile.Event.SupporterNames) == 1 &&
						tile.Event.SupporterNames[0] == "Bia"
				}), ShouldBeTrue)
			})

			Convey("Then toggling again removes the mark", func() {
				off, err := svc.ToggleEventSupport(ctx, "bia", e.ID)
				So(err, ShouldBeNil)
				So(off, ShouldBeFalse)
				So(eventually(func() bool {
					tile, _ := tileFor(svc, "ana", e.ID)
					return tile.Event.SupportCount == 0
				}), ShouldBeTrue)
			})
		})

		Convey("When Ana supports her own event", func() {
			on, err := svc.ToggleEventSupport(ctx, "ana", e.ID)

			Convey("Then it is allowed by default", func() {
				So(err, ShouldBeNil)
				So(on, ShouldBeTrue)
			})
		})

		Convey("When the item does not exist", func() {
			_, err := svc.ToggleEventSupport(ctx, "bia", "missing")

			Convey("Then it is reported as unknown", func() {
				So(errors.Is(err, service.ErrUnknownItem), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service that forbids self-support", t, func() {
		ctx := context.Background()
		svc := startService(service.WithSupportPolicy(support.Policy{AllowSelfSupport: false}))
		Reset(func() { svc.Stop() })
		signInAll(svc)

		r, err := svc.AddPrayerRequest(ctx, "ana", "family", "Pela minha avó")
		So(err, ShouldBeNil)
		So(eventually(func() bool {
			prayers, _ := svc.Prayers("ana")
			return len(prayers) == 1 && prayers[0].State == service.StatePublished
		}), ShouldBeTrue)

		Convey("Then the author cannot mark her own request", func() {
			_, err := svc.TogglePrayerSupport(ctx, "ana", r.ID)
			So(errors.Is(err, support.ErrSelfSupport), ShouldBeTrue)
		})

		Convey("Then others still can", func() {
			on, err := svc.TogglePrayerSupport(ctx, "bia", r.ID)
			So(err, ShouldBeNil)
			So(on, ShouldBeTrue)
		})
	})
}

func TestPrayerRequests(t *testing.T) {
	Convey("Given signed-in members", t, func() {
		ctx := context.Background()
		svc := startService()
		Reset(func() { svc.Stop() })
		signInAll(svc)

		Convey("When a visitor asks for prayer with a localized category", func() {
			r, err := svc.AddPrayerRequest(ctx, "vi", "saúde", "  Pela cirurgia da minha mãe ")
			So(err, ShouldBeNil)

			Convey("Then the request is stored normalized", func() {
				So(r.Category, ShouldEqual, model.CategoryHealth)
				So(r.Description, ShouldEqual, "Pela cirurgia da minha mãe")
				So(r.AuthorID, ShouldEqual, "vi")
				So(eventually(func() bool {
					prayers, _ := svc.Prayers("bia")
					return len(prayers) == 1 && prayers[0].ID == r.ID
				}), ShouldBeTrue)
			})

			Convey("Then members can pray for it", func() {
				So(eventually(func() bool {
					prayers, _ := svc.Prayers("bia")
					return len(prayers) == 1
				}), ShouldBeTrue)
				on, err := svc.TogglePrayerSupport(ctx, "bia", r.ID)
				So(err, ShouldBeNil)
				So(on, ShouldBeTrue)
				So(eventually(func() bool {
					prayers, _ := svc.Prayers("vi")
					return len(prayers) == 1 && prayers[0].SupportCount == 1
				}), ShouldBeTrue)
			})
		})

		Convey("When the request is incomplete", func() {
			_, errDesc := svc.AddPrayerRequest(ctx, "ana", "health", " ")
			_, errCat := svc.AddPrayerRequest(ctx, "ana", "weather", "Sol")

			Convey("Then it is rejected", func() {
				So(errors.Is(errDesc, service.ErrEmptyField), ShouldBeTrue)
				So(errors.Is(errCat, model.ErrInvalidCategory), ShouldBeTrue)
			})
		})

		Convey("When nothing failed", func() {
			_, err := svc.RetryPrayerRequest(ctx, "ana", "nope")

			Convey("Then there is nothing to retry", func() {
				So(err, ShouldEqual, service.ErrNothingToRetry)
			})
		})
	})
}

func TestResubmitStoredEvent(t *testing.T) {
	Convey("Given a service that only remembers the latest submission", t, func() {
		ctx := context.Background()
		svc := startService(service.WithDedupeSize(1), service.WithClock(newClock(monday).Now))
		Reset(func() { svc.Stop() })
		signInAll(svc)

		first, err := svc.LogImpact(ctx, "ana", "sub-1", model.ActionPrayed, "Caio")
		So(err, ShouldBeNil)
		So(eventually(func() bool { return xpOf(svc, "ana") == 10 }), ShouldBeTrue)
		_, err = svc.LogImpact(ctx, "ana", "sub-2", model.ActionHelped, "Rui")
		So(err, ShouldBeNil)
		So(eventually(func() bool { return xpOf(svc, "ana") == 25 }), ShouldBeTrue)

		Convey("When Ana resubmits the first submission", func() {
			again, err := svc.LogImpact(ctx, "ana", "sub-1", model.ActionPrayed, "Caio")
			So(err, ShouldBeNil)
			So(again.ID, ShouldEqual, first.ID)

			Convey("Then no xp is added and her view settles on the stored xp", func() {
				sess, err := svc.Session("ana")
				So(err, ShouldBeNil)
				So(eventually(func() bool { return sess.View().Identity().XP == 25 }), ShouldBeTrue)
				time.Sleep(50 * time.Millisecond)
				So(xpOf(svc, "ana"), ShouldEqual, 25)
				So(svc.GetStats()["events"], ShouldEqual, 2)
			})
		})
	})

	Convey("Given an event stored before a restart", t, func() {
		ctx := context.Background()
		cfg := repository.DefaultConfig(t.TempDir())
		cfg.GCInterval = 0

		store, err := repository.Open(ctx, cfg)
		So(err, ShouldBeNil)
		svc := startService(service.WithStore(store), service.WithClock(newClock(monday).Now))
		signInAll(svc)
		_, err = svc.LogImpact(ctx, "ana", "sub-1", model.ActionShared, "Rui")
		So(err, ShouldBeNil)
		So(eventually(func() bool { return xpOf(svc, "ana") == 25 }), ShouldBeTrue)
		svc.Stop()

		reopened, err := repository.Open(ctx, cfg)
		So(err, ShouldBeNil)
		svc = startService(service.WithStore(reopened), service.WithClock(newClock(monday.Add(time.Hour)).Now))
		Reset(func() { svc.Stop() })
		signInAll(svc)

		Convey("When the submission is sent again", func() {
			_, err := svc.LogImpact(ctx, "ana", "sub-1", model.ActionShared, "Rui")
			So(err, ShouldBeNil)

			Convey("Then the stored xp and day are unchanged", func() {
				time.Sleep(100 * time.Millisecond)
				m, err := svc.Member(ctx, "ana")
				So(err, ShouldBeNil)
				So(m.XP, ShouldEqual, 25)
				So(m.Streak, ShouldEqual, 1)
				So(svc.GetStats()["events"], ShouldEqual, 1)
			})
		})
	})
}
