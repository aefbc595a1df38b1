package model

import (
	"time"
)

// Article is the canonical, deduplicated representation of a feed entry.
// URL is the natural key: at most one Article exists per URL.
type Article struct {
	URL         string    `json:"url"`
	FeedID      string    `json:"feed_id"`
	Title       string    `json:"title"`
	GUID        string    `json:"guid"`
	Description string    `json:"description,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
	Category    Category  `json:"category,omitempty"`
}

// Categorized reports whether a label has already been applied.
func (a Article) Categorized() bool {
	return a.Category != ""
}
