package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/rinktrack/internal/adapters/dataaccess"
	"github.com/okian/rinktrack/internal/adapters/http/api"
	"github.com/okian/rinktrack/internal/adapters/http/swagger"
	"github.com/okian/rinktrack/internal/adapters/remote"
	"github.com/okian/rinktrack/internal/adapters/repository"
	app "github.com/okian/rinktrack/internal/app"
	"github.com/okian/rinktrack/internal/config"
	"github.com/okian/rinktrack/pkg/logger"
	"github.com/okian/rinktrack/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> .env -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(metrics.WithRefreshInterval(cfg.MetricsInterval))

	svc, closeDeps, err := newService(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build service", logger.Error(err))
		os.Exit(1)
	}
	defer closeDeps()

	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(cfg, svc)

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	// Sessions are flushed to local storage after the last request drains.
	svc.Stop(shutdownCtx)

	loggerInstance.Info(ctx, "server stopped")
}

// newService opens the configured stores and backends and builds the
// session service. The returned func releases what the service does not
// own.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, func(), error) {
	store, err := repository.OpenSQLite(cfg.DataPath, repository.WithHistoryLimit(cfg.HistoryLimit))
	if err != nil {
		return nil, nil, fmt.Errorf("open local store: %w", err)
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithStore(store),
		app.WithQuietPeriod(cfg.QuietPeriod),
		app.WithUndoDepth(cfg.UndoDepth),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithClockStep(cfg.ClockStep),
	}
	closeDeps := func() {}

	if cfg.SyncURL != "" {
		client, err := remote.New(cfg.SyncURL,
			remote.WithToken(cfg.SyncToken),
			remote.WithMaxAttempts(cfg.SyncAttempts),
			remote.WithLogger(log.Named("remote")),
		)
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("remote sync: %w", err)
		}
		opts = append(opts, app.WithRemote(client), app.WithSyncInterval(cfg.SyncInterval))
	}

	if cfg.PostgresDSN != "" {
		pg, err := dataaccess.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("dashboard database: %w", err)
		}
		opts = append(opts, app.WithQuerier(pg))
		closeDeps = pg.Close
	}

	return app.New(opts...), closeDeps, nil
}

func newHTTPServer(cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, svc, api.WithAuthToken(cfg.AuthToken)).Register(mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics refreshes the session gauge.
func updateServiceMetrics(svc *app.Service) {
	if n, ok := svc.GetStats()["sessions"].(int); ok {
		metrics.UpdateActiveSessions(n)
	}
}
