package mission

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestDailySource(t *testing.T) {
	Convey("Given a daily source", t, func() {
		s := NewDailySource(model.UTC())
		morning := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)

		Convey("Then the same day yields the same mission", func() {
			So(s.For(morning), ShouldEqual, s.For(morning.Add(20*time.Hour)))
			So(s.For(morning), ShouldNotBeBlank)
		})

		Convey("Then consecutive days rotate through the list", func() {
			So(s.For(morning), ShouldNotEqual, s.For(morning.Add(24*time.Hour)))
		})

		Convey("Then the calendar timezone decides the day", func() {
			late := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
			tokyo := NewDailySource(model.NewCalendar(time.FixedZone("JST", 9*3600)))
			So(tokyo.For(late), ShouldEqual, s.For(late.Add(24*time.Hour)))
		})

		Convey("Then Fetch uses the clock", func() {
			s.now = func() time.Time { return morning }
			text, err := s.Fetch(context.Background())
			So(err, ShouldBeNil)
			So(text, ShouldEqual, s.For(morning))
		})
	})
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a cache over a working source", t, func() {
		c := NewCache(SourceFunc(func(context.Context) (string, error) {
			return "  Ore por um amigo ", nil
		}), WithLogger(logger.Nop()))

		Convey("Then the fallback shows before the first fetch", func() {
			So(c.Current(), ShouldEqual, DefaultFallback)
			So(c.FetchedAt().IsZero(), ShouldBeTrue)
		})

		Convey("Then Init stores the trimmed text", func() {
			c.Init(ctx)
			So(c.Current(), ShouldEqual, "Ore por um amigo")
			So(c.FetchedAt().IsZero(), ShouldBeFalse)

			Convey("And Clear goes back to the fallback", func() {
				c.Clear()
				So(c.Current(), ShouldEqual, DefaultFallback)
			})
		})
	})

	Convey("Given a failing or empty source", t, func() {
		failing := NewCache(SourceFunc(func(context.Context) (string, error) {
			return "", errors.New("quota exceeded")
		}), WithFallback("Espalhe a luz hoje"), WithLogger(logger.Nop()))
		empty := NewCache(SourceFunc(func(context.Context) (string, error) {
			return "   ", nil
		}), WithLogger(logger.Nop()))

		Convey("Then the fallback is used", func() {
			So(failing.Refresh(ctx), ShouldEqual, "Espalhe a luz hoje")
			So(empty.Refresh(ctx), ShouldEqual, DefaultFallback)
		})
	})

	Convey("Given many concurrent refreshes", t, func() {
		var calls atomic.Int32
		release := make(chan struct{})
		c := NewCache(SourceFunc(func(context.Context) (string, error) {
			calls.Add(1)
			<-release
			return "Leia um salmo hoje", nil
		}), WithLogger(logger.Nop()))

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Refresh(ctx)
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		Convey("Then they share a single fetch", func() {
			So(calls.Load(), ShouldEqual, 1)
			So(c.Current(), ShouldEqual, "Leia um salmo hoje")
		})
	})

	Convey("Given a cache running on a long interval", t, func() {
		var calls atomic.Int32
		c := NewCache(SourceFunc(func(context.Context) (string, error) {
			calls.Add(1)
			return "Ligue para sua avó", nil
		}), WithRefreshInterval(time.Hour), WithLogger(logger.Nop()))

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- c.Run(runCtx) }()
		time.Sleep(30 * time.Millisecond)
		cancel()

		Convey("Then Run leaves the first fetch to Init", func() {
			So(<-done, ShouldBeNil)
			So(calls.Load(), ShouldEqual, 0)
			So(c.Current(), ShouldEqual, DefaultFallback)
		})
	})

	Convey("Given a running cache", t, func() {
		var calls atomic.Int32
		c := NewCache(SourceFunc(func(context.Context) (string, error) {
			calls.Add(1)
			return "Sorria para um estranho", nil
		}), WithRefreshInterval(10*time.Millisecond), WithLogger(logger.Nop()))

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- c.Run(runCtx) }()
		time.Sleep(60 * time.Millisecond)
		cancel()

		Convey("Then it refreshes periodically and stops on cancel", func() {
			So(<-done, ShouldBeNil)
			So(calls.Load(), ShouldBeGreaterThan, 1)
			So(c.Current(), ShouldEqual, "Sorria para um estranho")
		})
	})
}
