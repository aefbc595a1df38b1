package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"feedpipe/internal/categorize"
	"feedpipe/internal/config"
	"feedpipe/internal/feed"
	"feedpipe/internal/ingest"
	"feedpipe/internal/metrics"
	web "feedpipe/internal/server"
	"feedpipe/internal/store"
	"feedpipe/internal/worker"

	"go.uber.org/zap"
)

const Version = "1.0.0"

// App holds the wired components of one process.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Store       store.Store
	Pipeline    *ingest.Pipeline
	Categorizer *categorize.Categorizer
	Worker      *worker.Worker
	Scheduler   *ingest.Scheduler
	Server      *web.Server
}

// New opens the configured store and wires everything on top of it.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	st, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	pipeline := ingest.NewPipeline(ingest.PipelineDeps{
		Registry: st,
		Articles: st,
		Fetcher:  feed.NewHTTPFetcher(cfg.Fetch.Timeout),
		Logger:   logger.Named("ingest"),
	})

	categorizer := categorize.NewCategorizer(newClassifier(cfg.Classifier, logger), logger.Named("categorize"))

	metrics.Init(Version, cfg.Storage.Driver)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       st,
		Pipeline:    pipeline,
		Categorizer: categorizer,
		Worker:      worker.NewWorker(st, categorizer, logger.Named("worker"), cfg.Worker.Interval, cfg.Worker.Batch),
		Scheduler:   ingest.NewScheduler(pipeline, cfg.Schedule.Interval, logger.Named("scheduler")),
		Server: web.NewServer(st, pipeline, categorizer, logger.Named("http"), web.Options{
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}),
	}, nil
}

// OpenStore selects the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		return store.OpenSQL(ctx, cfg.Driver, cfg.DSN)
	case config.DriverHybrid:
		return store.NewHybridStore(ctx, cfg.RedisAddr, cfg.BadgerPath)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// newClassifier returns nil when no endpoint is configured; the categorizer
// then answers with the fallback label.
func newClassifier(cfg config.ClassifierConfig, logger *zap.Logger) categorize.Classifier {
	if cfg.Endpoint == "" {
		logger.Warn("No classifier endpoint configured; articles will be labelled Uncategorized")
		return nil
	}
	return categorize.NewOpenAIClassifier(cfg.Endpoint, cfg.Model, cfg.APIKey, cfg.Timeout)
}

// Serve runs the HTTP server, the scheduler and (when enabled) the worker
// until ctx is cancelled or the server fails. It returns only after the
// background loops have exited, so the store can be closed afterwards.
func (a *App) Serve(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Scheduler.Start(ctx)
	}()
	if a.Config.Worker.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Worker.Start(ctx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Server.Start(addr)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("Shutting down...")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("web server: %w", err)
		}
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := a.Server.Stop(shutdownCtx); err != nil {
		a.Logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	wg.Wait()
	return serveErr
}

func (a *App) Close() error {
	return a.Store.Close()
}
