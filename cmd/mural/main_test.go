package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/smartystreets/goconvey/convey"

	"github.com/vibeteen/mural/internal/adapters/http/api"
	"github.com/vibeteen/mural/internal/config"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/pkg/logger"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Addr = "127.0.0.1:0"
	cfg.WorkerCount = 2
	cfg.QueueSize = 64
	return cfg
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MURAL_ADDR", ":8081")
	t.Setenv("MURAL_QUEUE_SIZE", "1000")
	t.Setenv("MURAL_WORKER_COUNT", "4")

	convey.Convey("Given MURAL_ environment variables", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then they override the defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})
	})
}

func TestNewService(t *testing.T) {
	_ = logger.Init()

	convey.Convey("Given a configuration without data dir or redis", t, func() {
		ctx := context.Background()
		cfg := testConfig()

		svc, err := newService(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("When the mux serves a sign-in", func() {
			mux := newMux(ctx, cfg, svc, logger.Nop())
			srv := httptest.NewServer(mux)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/session", "application/json",
				strings.NewReader(`{"first_name":"Ana","last_name":"Lima","email":"ana@vibe.teen"}`))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()

			convey.Convey("Then the member exists in the in-memory store", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				m, err := svc.Member(ctx, model.MemberIDFromLogin("ana@vibe.teen"))
				convey.So(err, convey.ShouldBeNil)
				convey.So(m.FirstName, convey.ShouldEqual, "Ana")
			})

			convey.Convey("Then the docs and health routes are mounted", func() {
				for _, path := range []string{"/openapi.yaml", "/api-docs", "/healthz", "/metrics"} {
					r, err := http.Get(srv.URL + path)
					convey.So(err, convey.ShouldBeNil)
					_ = r.Body.Close()
					convey.So(r.StatusCode, convey.ShouldEqual, http.StatusOK)
				}
			})

			convey.Convey("Then member routes require the member header", func() {
				r, err := http.Get(srv.URL + "/board")
				convey.So(err, convey.ShouldBeNil)
				_ = r.Body.Close()
				convey.So(r.StatusCode, convey.ShouldEqual, http.StatusUnauthorized)

				req, _ := http.NewRequest(http.MethodGet, srv.URL+"/board", http.NoBody)
				req.Header.Set(api.MemberHeader, "user_anavibeteen")
				r, err = http.DefaultClient.Do(req)
				convey.So(err, convey.ShouldBeNil)
				_ = r.Body.Close()
				convey.So(r.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})
	})

	convey.Convey("Given a configuration pointing at redis", t, func() {
		mr := miniredis.RunT(t)
		ctx := context.Background()
		cfg := testConfig()
		cfg.RedisURL = "redis://" + mr.Addr()
		cfg.SessionNamespace = "mural_test"

		svc, err := newService(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("When a member signs in", func() {
			_, err := svc.SignIn(ctx, model.Member{FirstName: "Bia", Email: "bia@vibe.teen"})
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the session is remembered under the namespace", func() {
				convey.So(mr.Exists("mural_test:user_biavibeteen"), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given an unparsable redis url", t, func() {
		cfg := testConfig()
		cfg.RedisURL = "://nope"

		convey.Convey("Then building the service fails", func() {
			_, err := newService(context.Background(), cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	_ = logger.Init()

	convey.Convey("Given a running server", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- run(ctx, testConfig()) }()

		convey.Convey("When the root context is cancelled", func() {
			time.Sleep(50 * time.Millisecond)
			cancel()

			convey.Convey("Then run shuts down cleanly", func() {
				var err error
				select {
				case err = <-done:
				case <-time.After(5 * time.Second):
					err = errors.New("run did not return")
				}
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}

func TestUpdateServiceMetrics(t *testing.T) {
	_ = logger.Init()

	convey.Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc, err := newService(ctx, testConfig(), logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("Then the updater returns once its context ends", func() {
			tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			convey.So(func() { updateServiceMetrics(tctx, svc) }, convey.ShouldNotPanic)
		})
	})
}
