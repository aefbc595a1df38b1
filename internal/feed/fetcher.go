package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// UserAgent identifies the aggregator to feed publishers.
	UserAgent = "feedpipe/1.0 (+https://github.com/feedpipe/feedpipe)"

	acceptHeader = "application/rss+xml, application/atom+xml, application/rdf+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

	// MaxBodyBytes caps how much of a feed document is read.
	MaxBodyBytes = 10 << 20
)

// Fetcher retrieves the raw bytes of a feed document.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]byte, error)
}

// FetchError is returned when the transport fails or the server answers
// outside the 2xx range. StatusCode is zero for transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPFetcher performs a single GET per call. It never retries.
type HTTPFetcher struct {
	client  *http.Client
	maxBody int64
}

// NewHTTPFetcher builds a fetcher. A zero timeout leaves the transport default
// in place, which means no overall deadline.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		maxBody: MaxBodyBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			URL:        feedURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.maxBody {
		return nil, &FetchError{URL: feedURL, Err: fmt.Errorf("body exceeds %d bytes", f.maxBody)}
	}
	return body, nil
}
