package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example News</title>
    <link>https://news.example.com</link>
    <item>
      <title>First story</title>
      <link>https://news.example.com/a</link>
      <guid>urn:story:a</guid>
      <description>&lt;p&gt;Hello &lt;b&gt;world&lt;/b&gt;&lt;/p&gt;</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
    </item>
    <item>
      <title>Second story</title>
      <link>https://news.example.com/b</link>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Example</title>
  <id>urn:feed</id>
  <updated>2024-03-01T10:00:00Z</updated>
  <entry>
    <title>Atom entry</title>
    <id>urn:entry:1</id>
    <link rel="alternate" href="https://atom.example.com/1"/>
    <updated>2024-03-01T10:00:00Z</updated>
    <content type="html">Body text</content>
  </entry>
</feed>`

const emptyFixture = `<?xml version="1.0"?><rss version="2.0"><channel><title>Quiet</title></channel></rss>`

func TestParser_RSS(t *testing.T) {
	parsed, err := NewParser().Parse([]byte(rssFixture))
	require.NoError(t, err)

	assert.Equal(t, "Example News", parsed.Title)
	require.Len(t, parsed.Entries, 2)

	first := parsed.Entries[0]
	assert.Equal(t, "First story", first.Title)
	assert.Equal(t, "urn:story:a", first.ID)
	require.NotEmpty(t, first.Links)
	assert.Equal(t, "https://news.example.com/a", first.Links[0])
	require.NotNil(t, first.Published)
	assert.Equal(t, 2006, first.Published.Year())
	assert.Contains(t, first.Description, "Hello")

	assert.Nil(t, parsed.Entries[1].Published)
}

func TestParser_Atom(t *testing.T) {
	parsed, err := NewParser().Parse([]byte(atomFixture))
	require.NoError(t, err)

	assert.Equal(t, "Atom Example", parsed.Title)
	require.Len(t, parsed.Entries, 1)
	e := parsed.Entries[0]
	assert.Equal(t, "urn:entry:1", e.ID)
	assert.Equal(t, []string{"https://atom.example.com/1"}, e.Links)
	assert.Equal(t, "Body text", e.Content)
	require.NotNil(t, e.Updated)
}

func TestParser_EmptyFeedIsValid(t *testing.T) {
	parsed, err := NewParser().Parse([]byte(emptyFixture))
	require.NoError(t, err)
	assert.Equal(t, "Quiet", parsed.Title)
	assert.Empty(t, parsed.Entries)
}

func TestParser_Malformed(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":      "",
		"html":       "<html><body>not a feed</body></html>",
		"plain text": "just some words",
		"whitespace": "   \n ",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewParser().Parse([]byte(doc))
			require.Error(t, err)

			var pe *ParseError
			assert.True(t, errors.As(err, &pe), "expected *ParseError, got %T", err)
		})
	}
}

func TestNormalizer_FallbackChains(t *testing.T) {
	fixed := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	n := NewNormalizerWithClock(func() time.Time { return fixed })
	pub := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	upd := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("all fields present", func(t *testing.T) {
		a := n.Normalize("f1", RawEntry{
			ID:          "guid-1",
			Title:       "Title",
			Links:       []string{"https://x/1", "https://x/alt"},
			Description: "desc",
			Content:     "content",
			Published:   &pub,
			Updated:     &upd,
		})
		assert.Equal(t, "f1", a.FeedID)
		assert.Equal(t, "Title", a.Title)
		assert.Equal(t, "https://x/1", a.URL)
		assert.Equal(t, "guid-1", a.GUID)
		assert.Equal(t, "desc", a.Description)
		assert.Equal(t, pub, a.PublishedAt)
		assert.Equal(t, fixed, a.CreatedAt)
	})

	t.Run("no link falls back to id", func(t *testing.T) {
		a := n.Normalize("f1", RawEntry{ID: "urn:x"})
		assert.Equal(t, "urn:x", a.URL)
		assert.Equal(t, "urn:x", a.GUID)
	})

	t.Run("no id falls back to link for guid", func(t *testing.T) {
		a := n.Normalize("f1", RawEntry{Links: []string{"https://x/2"}})
		assert.Equal(t, "https://x/2", a.GUID)
	})

	t.Run("nothing present", func(t *testing.T) {
		a := n.Normalize("f1", RawEntry{})
		assert.Equal(t, UntitledTitle, a.Title)
		assert.Empty(t, a.URL)
		assert.Empty(t, a.GUID)
		assert.Empty(t, a.Description)
		assert.Equal(t, fixed, a.PublishedAt)
	})

	t.Run("description falls back to content", func(t *testing.T) {
		a := n.Normalize("f1", RawEntry{Content: "body"})
		assert.Equal(t, "body", a.Description)
	})

	t.Run("updated used when published missing", func(t *testing.T) {
		a := n.Normalize("f1", RawEntry{Updated: &upd})
		assert.Equal(t, upd, a.PublishedAt)
	})

	t.Run("whitespace counts as absent", func(t *testing.T) {
		a := n.Normalize("f1", RawEntry{
			Title:       "   ",
			Links:       []string{" "},
			ID:          "\t",
			Description: "\n",
			Content:     "real",
		})
		assert.Equal(t, UntitledTitle, a.Title)
		assert.Empty(t, a.URL)
		assert.Equal(t, "real", a.Description)
	})
}

func TestNormalizer_ParsedFixture(t *testing.T) {
	parsed, err := NewParser().Parse([]byte(rssFixture))
	require.NoError(t, err)

	articles := NewNormalizer().NormalizeAll("feed-1", parsed.Entries)
	require.Len(t, articles, 2)
	assert.Equal(t, "https://news.example.com/a", articles[0].URL)
	assert.Equal(t, "https://news.example.com/b", articles[1].URL)
	assert.Equal(t, "https://news.example.com/b", articles[1].GUID)
	assert.False(t, articles[1].PublishedAt.IsZero())
}

func TestHTTPFetcher_SendsUserAgent(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	body, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, rssFixture, string(body))
	assert.Equal(t, UserAgent, gotUA)
	assert.Contains(t, gotAccept, "application/rss+xml")
}

func TestHTTPFetcher_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(0).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPFetcher_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), url)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
}

func TestHTTPFetcher_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(time.Second)
	f.maxBody = 16
	_, err := f.Fetch(context.Background(), srv.URL)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "exceeds")
}
