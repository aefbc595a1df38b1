package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"feedpipe/internal/model"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrFeedExists         = errors.New("feed already registered")
	ErrAlreadyCategorized = errors.New("article already categorized")
)

// FeedRegistry owns feed records. Feeds are created out-of-band and never
// deleted by the pipeline.
type FeedRegistry interface {
	ListActiveFeeds(ctx context.Context) ([]model.Feed, error)
	ListFeeds(ctx context.Context) ([]model.Feed, error)
	GetFeed(ctx context.Context, id string) (*model.Feed, error)
	AddFeed(ctx context.Context, feed model.Feed) error
	UpdateFeed(ctx context.Context, id string, u model.FeedUpdate) error
}

// ArticleStore persists articles keyed by canonical URL. Inserts never
// overwrite: the first write for a URL wins.
type ArticleStore interface {
	UpsertMany(ctx context.Context, feedID string, articles []model.Article) (UpsertResult, error)
	GetArticle(ctx context.Context, url string) (*model.Article, error)
	ListArticles(ctx context.Context, limit int) ([]model.Article, error)
	ListUncategorized(ctx context.Context, limit int) ([]model.Article, error)
	SetCategory(ctx context.Context, url string, category model.Category) error
}

type Store interface {
	FeedRegistry
	ArticleStore
	Close() error
}

// UpsertResult counts what happened to each row of a batch.
type UpsertResult struct {
	Inserted   int
	Duplicates int
	Failed     int
}

// PersistenceError collects row-level failures from a batch. The rows that did
// not fail were still written.
type PersistenceError struct {
	FeedID string
	Errs   []error
}

func (e *PersistenceError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("persist %d article(s) for feed %s: %s", len(e.Errs), e.FeedID, strings.Join(msgs, "; "))
}

func (e *PersistenceError) Unwrap() []error { return e.Errs }

func (e *PersistenceError) add(err error) { e.Errs = append(e.Errs, err) }

func (e *PersistenceError) orNil() error {
	if e == nil || len(e.Errs) == 0 {
		return nil
	}
	return e
}
