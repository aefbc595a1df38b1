package model

import (
	"time"

	"github.com/google/uuid"
)

type FeedStatus string

const (
	FeedStatusActive FeedStatus = "active"
	FeedStatusError  FeedStatus = "error"
)

// Feed is a registered syndication source.
type Feed struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Status       FeedStatus `json:"status"`
	LastFetched  *time.Time `json:"last_fetched,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewFeed creates an active Feed with a fresh ID.
func NewFeed(rawURL, title string) Feed {
	return Feed{
		ID:        uuid.NewString(),
		URL:       rawURL,
		Title:     title,
		Status:    FeedStatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

// FeedUpdate is the registry write contract. Status and ErrorMessage are
// always written (an empty message clears the column); nil pointers leave the
// corresponding column untouched.
type FeedUpdate struct {
	Status       FeedStatus
	ErrorMessage string
	Title        *string
	LastFetched  *time.Time
}

// Apply mutates f according to u. Used by stores that keep whole records.
func (u FeedUpdate) Apply(f *Feed) {
	f.Status = u.Status
	f.ErrorMessage = u.ErrorMessage
	if u.Title != nil {
		f.Title = *u.Title
	}
	if u.LastFetched != nil {
		t := *u.LastFetched
		f.LastFetched = &t
	}
}
