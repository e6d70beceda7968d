package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vibeteen/mural/internal/adapters/http/api"
	"github.com/vibeteen/mural/internal/adapters/http/swagger"
	"github.com/vibeteen/mural/internal/adapters/repository"
	"github.com/vibeteen/mural/internal/adapters/session"
	service "github.com/vibeteen/mural/internal/app"
	"github.com/vibeteen/mural/internal/config"
	"github.com/vibeteen/mural/internal/domain/hexspiral"
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/internal/domain/scoring"
	"github.com/vibeteen/mural/internal/domain/support"
	"github.com/vibeteen/mural/pkg/logger"
	"github.com/vibeteen/mural/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Configure(cfg.LogFormat, os.Stderr); err != nil {
		os.Stderr.WriteString("failed to configure logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "mural exited", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the collaborators from cfg and serves HTTP until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		updateServiceMetrics(gctx, svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(gctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(gctx, "server shutdown failed", logger.Error(err))
			return err
		}
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// newService opens the store and the session store named by cfg and
// builds the service around them.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	cal := model.NewCalendar(cfg.Location())

	store, err := repository.Open(ctx, repository.ConfigFor(cfg.DataDir),
		repository.WithLogger(log.Named("store")),
		repository.WithCalendar(cal),
	)
	if err != nil {
		return nil, err
	}

	var sessions session.Store = session.NewMemoryStore()
	if cfg.RedisURL != "" {
		rs, err := session.NewRedisStore(ctx, cfg.RedisURL, session.WithNamespace(cfg.SessionNamespace))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		sessions = rs
	}

	board := hexspiral.New(
		hexspiral.WithLayout(hexspiral.Layout{Width: cfg.TileWidth, Height: cfg.TileHeight}),
		hexspiral.WithMarginRings(cfg.SpiralMarginRings),
	)

	return service.New(
		service.WithLogger(log.Named("service")),
		service.WithStore(store),
		service.WithSessionStore(sessions),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithXPTable(scoring.ParseXPTable(cfg.XPTable)),
		service.WithCalendar(cal),
		service.WithSupportPolicy(support.Policy{AllowSelfSupport: cfg.AllowSelfSupport}),
		service.WithAllocator(board),
		service.WithMissionFallback(cfg.MissionFallback),
		service.WithMissionRefreshInterval(cfg.MissionRefreshInterval),
	), nil
}

func newMux(ctx context.Context, cfg *config.Config, svc *service.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc,
		api.WithLogger(log.Named("api")),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
	).Register(ctx, mux)
	return mux
}

// updateServiceMetrics refreshes the gauges that are not driven by a
// write path until ctx is done.
func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := svc.GetStats()
			if n, ok := stats["queueLength"].(int); ok {
				metrics.UpdateQueueSize(n)
			}
			if n, ok := stats["members"].(int); ok {
				metrics.UpdateMemberCount(n)
			}
		}
	}
}
