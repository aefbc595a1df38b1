package worker

import (
	"context"
	"errors"
	"time"

	"feedpipe/internal/model"
	"feedpipe/internal/store"

	"go.uber.org/zap"
)

// Labeler assigns a category to an article. *categorize.Categorizer
// satisfies it; tests use a stub.
type Labeler interface {
	Categorize(ctx context.Context, title, description string) model.Category
}

// Worker polls the store for uncategorized articles and labels each once.
type Worker struct {
	store    store.ArticleStore
	labeler  Labeler
	logger   *zap.Logger
	interval time.Duration
	batch    int
}

func NewWorker(s store.ArticleStore, labeler Labeler, logger *zap.Logger, interval time.Duration, batch int) *Worker {
	if batch <= 0 {
		batch = 50
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		store:    s,
		labeler:  labeler,
		logger:   logger,
		interval: interval,
		batch:    batch,
	}
}

// Start runs the worker loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started. Waiting for articles...", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		n, err := w.RunOnce(ctx, w.batch)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("Categorization pass failed", zap.Error(err))
		} else if n > 0 {
			w.logger.Info("Categorization pass complete", zap.Int("labelled", n))
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Worker shutting down")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce labels up to limit uncategorized articles and returns how many
// labels were applied.
func (w *Worker) RunOnce(ctx context.Context, limit int) (int, error) {
	articles, err := w.store.ListUncategorized(ctx, limit)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, a := range articles {
		if ctx.Err() != nil {
			return applied, ctx.Err()
		}
		if w.processJob(ctx, a) {
			applied++
		}
	}
	return applied, nil
}

func (w *Worker) processJob(ctx context.Context, a model.Article) bool {
	logger := w.logger.With(zap.String("url", a.URL))

	category := w.labeler.Categorize(ctx, a.Title, a.Description)

	err := w.store.SetCategory(ctx, a.URL, category)
	switch {
	case errors.Is(err, store.ErrAlreadyCategorized):
		logger.Debug("Already categorized by another writer")
		return false
	case err != nil:
		logger.Error("Failed to save category", zap.Error(err))
		return false
	}

	logger.Info("Categorized", zap.String("category", string(category)))
	return true
}
