package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/vibeteen/mural/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.SessionNamespace, convey.ShouldEqual, "vibeteen_user_session")
			convey.So(cfg.XPTable, convey.ShouldResemble, map[string]int{
				"prayed": 10, "helped": 15, "shared": 25, "invited": 50,
			})
			convey.So(cfg.AllowSelfSupport, convey.ShouldBeTrue)
			convey.So(cfg.TileWidth, convey.ShouldEqual, 94)
			convey.So(cfg.TileHeight, convey.ShouldEqual, 70)
			convey.So(cfg.MissionRefreshInterval, convey.ShouldEqual, 30*time.Minute)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the calendar resolves to UTC", func() {
			convey.So(cfg.Location(), convey.ShouldEqual, time.UTC)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the timezone is unknown", func() {
			cfg.CalendarTimezone = "Mars/Olympus"

			convey.Convey("Then validation fails with ErrInvalidConfig", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg.Location(), convey.ShouldEqual, time.UTC)
			})
		})

		convey.Convey("When an xp value is not positive", func() {
			cfg.XPTable["prayed"] = 0

			convey.Convey("Then validation fails", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "xp_table.prayed")
			})
		})

		convey.Convey("When the tile pitch is zero", func() {
			cfg.TileHeight = 0

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a named timezone is configured", func() {
			cfg.CalendarTimezone = "America/Sao_Paulo"

			convey.Convey("Then it is accepted and resolved", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
				convey.So(cfg.Location().String(), convey.ShouldEqual, "America/Sao_Paulo")
			})
		})
	})
}
