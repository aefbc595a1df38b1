package feed

import (
	"strings"
	"time"

	"feedpipe/internal/model"
)

// UntitledTitle is used when an entry carries no usable title.
const UntitledTitle = "Untitled"

// extractor pulls one candidate value out of an entry. ok=false means absent.
type extractor[T any] func(RawEntry) (T, bool)

// firstOf evaluates extractors in order and returns the first present value.
func firstOf[T any](e RawEntry, chain ...extractor[T]) (T, bool) {
	for _, ex := range chain {
		if v, ok := ex(e); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func text(get func(RawEntry) string) extractor[string] {
	return func(e RawEntry) (string, bool) {
		v := strings.TrimSpace(get(e))
		return v, v != ""
	}
}

func timestamp(get func(RawEntry) *time.Time) extractor[time.Time] {
	return func(e RawEntry) (time.Time, bool) {
		t := get(e)
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	}
}

var (
	entryTitle       = text(func(e RawEntry) string { return e.Title })
	entryID          = text(func(e RawEntry) string { return e.ID })
	entryDescription = text(func(e RawEntry) string { return e.Description })
	entryContent     = text(func(e RawEntry) string { return e.Content })
	entryPublished   = timestamp(func(e RawEntry) *time.Time { return e.Published })
	entryUpdated     = timestamp(func(e RawEntry) *time.Time { return e.Updated })
)

var entryLink extractor[string] = func(e RawEntry) (string, bool) {
	for _, l := range e.Links {
		if l = strings.TrimSpace(l); l != "" {
			return l, true
		}
	}
	return "", false
}

// Normalizer maps raw entries onto canonical Articles. It has no side effects
// other than reading its clock.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerWithClock is used by tests that need a fixed "now".
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize applies the per-field fallback chains. The returned URL may be
// empty when the entry has neither a link nor an id.
func (n *Normalizer) Normalize(feedID string, e RawEntry) model.Article {
	now := n.now().UTC()

	title, ok := firstOf(e, entryTitle)
	if !ok {
		title = UntitledTitle
	}
	url, _ := firstOf(e, entryLink, entryID)
	description, _ := firstOf(e, entryDescription, entryContent)
	guid, _ := firstOf(e, entryID, entryLink)

	published, ok := firstOf(e, entryPublished, entryUpdated)
	if !ok {
		published = now
	}

	return model.Article{
		URL:         url,
		FeedID:      feedID,
		Title:       title,
		GUID:        guid,
		Description: description,
		PublishedAt: published.UTC(),
		CreatedAt:   now,
	}
}

// NormalizeAll normalizes entries in document order.
func (n *Normalizer) NormalizeAll(feedID string, entries []RawEntry) []model.Article {
	out := make([]model.Article, 0, len(entries))
	for _, e := range entries {
		out = append(out, n.Normalize(feedID, e))
	}
	return out
}
