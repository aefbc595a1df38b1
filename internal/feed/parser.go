package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// RawEntry is a single feed item as it appears in the source document,
// before any fallback is applied. Links lists the primary link first.
type RawEntry struct {
	ID          string
	Title       string
	Links       []string
	Description string
	Content     string
	Published   *time.Time
	Updated     *time.Time
}

// ParsedFeed is the result of parsing one feed document.
type ParsedFeed struct {
	Title   string
	Entries []RawEntry
}

// ParseError means the document is not a recognizable RSS or Atom feed.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse feed: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Parser turns feed documents into entries. RSS 0.9x/2.0, RSS 1.0 and Atom
// are accepted.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// Parse is pure: it performs no I/O. A feed with zero items is valid.
func (p *Parser) Parse(data []byte) (*ParsedFeed, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("empty document")}
	}

	// gofeed parsers hold decoding state, so one per call.
	fp := gofeed.NewParser()
	f, err := fp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	parsed := &ParsedFeed{
		Title:   strings.TrimSpace(f.Title),
		Entries: make([]RawEntry, 0, len(f.Items)),
	}
	for _, item := range f.Items {
		if item == nil {
			continue
		}
		parsed.Entries = append(parsed.Entries, RawEntry{
			ID:          item.GUID,
			Title:       item.Title,
			Links:       itemLinks(item),
			Description: item.Description,
			Content:     item.Content,
			Published:   item.PublishedParsed,
			Updated:     item.UpdatedParsed,
		})
	}
	return parsed, nil
}

func itemLinks(item *gofeed.Item) []string {
	links := make([]string, 0, len(item.Links)+1)
	seen := make(map[string]struct{}, len(item.Links)+1)
	add := func(l string) {
		l = strings.TrimSpace(l)
		if l == "" {
			return
		}
		if _, ok := seen[l]; ok {
			return
		}
		seen[l] = struct{}{}
		links = append(links, l)
	}
	add(item.Link)
	for _, l := range item.Links {
		add(l)
	}
	return links
}
