package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feedpipe/internal/feed"
	"feedpipe/internal/metrics"
	"feedpipe/internal/model"
	"feedpipe/internal/store"

	"go.uber.org/zap"
)

// FeedParser turns a fetched document into entries.
type FeedParser interface {
	Parse(data []byte) (*feed.ParsedFeed, error)
}

// PipelineDeps wires the collaborators of the ingestion run.
type PipelineDeps struct {
	Registry   store.FeedRegistry
	Articles   store.ArticleStore
	Fetcher    feed.Fetcher
	Parser     FeedParser
	Normalizer *feed.Normalizer
	Tracker    *StatusTracker
	Logger     *zap.Logger
}

// Pipeline runs fetch, parse, normalize and persist for every active feed,
// one feed at a time. A failing feed never affects the others.
type Pipeline struct {
	registry   store.FeedRegistry
	articles   store.ArticleStore
	fetcher    feed.Fetcher
	parser     FeedParser
	normalizer *feed.Normalizer
	tracker    *StatusTracker
	logger     *zap.Logger
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		registry:   deps.Registry,
		articles:   deps.Articles,
		fetcher:    deps.Fetcher,
		parser:     deps.Parser,
		normalizer: deps.Normalizer,
		tracker:    deps.Tracker,
		logger:     deps.Logger,
	}
	if p.parser == nil {
		p.parser = feed.NewParser()
	}
	if p.normalizer == nil {
		p.normalizer = feed.NewNormalizer()
	}
	if p.tracker == nil {
		p.tracker = NewStatusTracker(deps.Registry)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

type stage int

const (
	stagePending stage = iota
	stageFetching
	stageParsing
	stageNormalizing
	stagePersisting
	stageDone
)

func (s stage) String() string {
	switch s {
	case stagePending:
		return "pending"
	case stageFetching:
		return "fetching"
	case stageParsing:
		return "parsing"
	case stageNormalizing:
		return "normalizing"
	case stagePersisting:
		return "persisting"
	case stageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Run processes every active feed and returns one result per feed, in
// selection order. The only error is a *SetupError.
func (p *Pipeline) Run(ctx context.Context) (model.RunReport, error) {
	start := time.Now()
	metrics.IngestRunsTotal.Inc()
	defer func() { metrics.IngestRunDuration.Observe(time.Since(start).Seconds()) }()

	feeds, err := p.registry.ListActiveFeeds(ctx)
	if err != nil {
		p.logger.Error("Failed to load active feeds", zap.Error(err))
		return nil, &SetupError{Err: err}
	}

	p.logger.Info("Ingestion run started", zap.Int("feeds", len(feeds)))

	report := make(model.RunReport, 0, len(feeds))
	for _, f := range feeds {
		report = append(report, p.processFeed(ctx, f))
	}

	p.logger.Info("Ingestion run finished",
		zap.Int("feeds", len(report)),
		zap.Int("failed", report.Failures()),
		zap.Duration("took", time.Since(start)),
	)
	return report, nil
}

// RunFeed processes a single feed regardless of its status.
func (p *Pipeline) RunFeed(ctx context.Context, feedID string) (model.FeedResult, error) {
	f, err := p.registry.GetFeed(ctx, feedID)
	if err != nil {
		return model.FeedResult{}, fmt.Errorf("load feed %s: %w", feedID, err)
	}
	return p.processFeed(ctx, *f), nil
}

func (p *Pipeline) processFeed(ctx context.Context, f model.Feed) (result model.FeedResult) {
	logger := p.logger.With(zap.String("feed_id", f.ID), zap.String("url", f.URL))
	current := stagePending

	fail := func(err error) model.FeedResult {
		msg := err.Error()
		logger.Warn("Feed failed", zap.Stringer("stage", current), zap.Error(err))
		metrics.FeedsProcessed.WithLabelValues("failure", current.String()).Inc()
		if tErr := p.tracker.RecordFailure(ctx, f.ID, msg); tErr != nil {
			logger.Error("Failed to record feed failure", zap.Error(tErr))
		}
		return model.Failed(f.ID, msg)
	}

	defer func() {
		if r := recover(); r != nil {
			result = fail(fmt.Errorf("panic while %s: %v", current, r))
		}
	}()

	current = stageFetching
	body, err := p.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		return fail(err)
	}

	current = stageParsing
	parsed, err := p.parser.Parse(body)
	if err != nil {
		return fail(err)
	}

	current = stageNormalizing
	articles := p.normalizer.NormalizeAll(f.ID, parsed.Entries)
	for _, a := range articles {
		if a.URL == "" {
			logger.Warn("Entry has no link or id", zap.String("title", a.Title))
		}
	}

	current = stagePersisting
	if len(articles) > 0 {
		res, err := p.articles.UpsertMany(ctx, f.ID, articles)
		metrics.ArticlesUpserted.WithLabelValues("inserted").Add(float64(res.Inserted))
		metrics.ArticlesUpserted.WithLabelValues("duplicate").Add(float64(res.Duplicates))
		metrics.ArticlesUpserted.WithLabelValues("failed").Add(float64(res.Failed))
		if err != nil {
			var perr *store.PersistenceError
			if errors.As(err, &perr) {
				logger.Error("Some articles were not stored",
					zap.Int("inserted", res.Inserted),
					zap.Int("failed", res.Failed),
				)
			}
			return fail(err)
		}
		logger.Debug("Articles stored",
			zap.Int("inserted", res.Inserted),
			zap.Int("duplicates", res.Duplicates),
		)
	}

	if err := p.tracker.RecordSuccess(ctx, f, parsed.Title); err != nil {
		logger.Error("Failed to record feed success", zap.Error(err))
		metrics.FeedsProcessed.WithLabelValues("failure", current.String()).Inc()
		return model.Failed(f.ID, err.Error())
	}

	current = stageDone
	metrics.FeedsProcessed.WithLabelValues("success", current.String()).Inc()
	logger.Info("Feed processed", zap.Int("articles", len(articles)))
	return model.Succeeded(f.ID, len(articles))
}
