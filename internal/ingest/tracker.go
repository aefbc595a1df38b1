package ingest

import (
	"context"
	"fmt"
	"time"

	"feedpipe/internal/model"
	"feedpipe/internal/store"
)

// StatusTracker records the outcome of each fetch attempt on the feed record.
// Only the most recent attempt determines a feed's status.
type StatusTracker struct {
	registry store.FeedRegistry
	now      func() time.Time
}

func NewStatusTracker(registry store.FeedRegistry) *StatusTracker {
	return &StatusTracker{registry: registry, now: time.Now}
}

// RecordSuccess marks the feed active, stamps last_fetched and clears any
// previous error. The title is updated only when the parsed title is
// non-empty and differs from the stored one.
func (t *StatusTracker) RecordSuccess(ctx context.Context, f model.Feed, parsedTitle string) error {
	now := t.now().UTC()
	u := model.FeedUpdate{
		Status:      model.FeedStatusActive,
		LastFetched: &now,
	}
	if parsedTitle != "" && parsedTitle != f.Title {
		u.Title = &parsedTitle
	}
	if err := t.registry.UpdateFeed(ctx, f.ID, u); err != nil {
		return fmt.Errorf("record success for feed %s: %w", f.ID, err)
	}
	return nil
}

// RecordFailure marks the feed errored. last_fetched is left as it was.
func (t *StatusTracker) RecordFailure(ctx context.Context, feedID, message string) error {
	u := model.FeedUpdate{
		Status:       model.FeedStatusError,
		ErrorMessage: message,
	}
	if err := t.registry.UpdateFeed(ctx, feedID, u); err != nil {
		return fmt.Errorf("record failure for feed %s: %w", feedID, err)
	}
	return nil
}
