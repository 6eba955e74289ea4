package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"

	"Sentinel/internal/domain/repository"
	"Sentinel/internal/handler/api"
	"Sentinel/internal/usecase"
	"Sentinel/pkg/cache"
	"Sentinel/pkg/config"
	xhttp "Sentinel/pkg/http"
	applogger "Sentinel/pkg/logger"
)

// App encapsulates the application lifecycle: either a single pipeline
// pass from the command line, or the long-running dashboard server.
type App struct {
	cfg       *config.Config
	runner    *usecase.Runner
	dashboard *api.DashboardHandler
	hub       *api.LiveHub
	store     repository.RecordStore
	events    repository.EventPublisher
	cache     cache.Service
	metrics   repository.Metrics
	logger    *applogger.Logger

	httpServer *xhttp.Server
}

// New creates the application with all dependencies.
func New(
	cfg *config.Config,
	runner *usecase.Runner,
	dashboard *api.DashboardHandler,
	hub *api.LiveHub,
	store repository.RecordStore,
	events repository.EventPublisher,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:       cfg,
		runner:    runner,
		dashboard: dashboard,
		hub:       hub,
		store:     store,
		events:    events,
		cache:     c,
		metrics:   m,
		logger:    l,
	}
}

// routes registers every handler on one Echo instance.
type routes struct {
	handlers []xhttp.Handler
}

func (r routes) RegisterRoutes(e *echo.Echo) {
	for _, h := range r.handlers {
		h.RegisterRoutes(e)
	}
}

// RunOnce executes a single pipeline pass and releases resources.
func (a *App) RunOnce(ctx context.Context, mode string, dryRun bool) error {
	defer a.close()

	rec, err := a.runner.Run(ctx, mode, dryRun)
	if err != nil && rec == nil {
		return err
	}
	if err != nil {
		// record was produced and delivered; only persistence failed
		a.logger.Warn("run completed with degraded persistence", applogger.Error(err))
	}
	a.logger.Info("run finished",
		applogger.String("date", rec.Date),
		applogger.String("mode", rec.Mode),
		applogger.Int("run_seq", rec.RunSeq),
		applogger.Int("signals", len(rec.Signals)),
	)
	return nil
}

// Replay re-derives signals from a stored snapshot without writing.
func (a *App) Replay(ctx context.Context, date, mode string) error {
	defer a.close()

	rec, err := a.runner.Replay(ctx, date, mode)
	if err != nil {
		return err
	}
	a.logger.Info("replay finished",
		applogger.String("date", rec.Date),
		applogger.String("mode", rec.Mode),
		applogger.Int("signals", len(rec.Signals)),
	)
	return nil
}

// Serve starts the dashboard server and blocks until interrupted.
func (a *App) Serve() error {
	a.httpServer = xhttp.NewServer(
		routes{handlers: []xhttp.Handler{a.dashboard, a.hub}},
		a.logger,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRecorder(a.metrics),
	)

	if err := a.httpServer.Start(); err != nil {
		return err
	}
	a.logger.Info("dashboard serving",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Int("watchlist", len(a.cfg.Watchlist)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	a.logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	a.close()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) close() {
	if err := a.events.Close(); err != nil {
		a.logger.Warn("event publisher close error", applogger.Error(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close error", applogger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close error", applogger.Error(err))
	}
}
