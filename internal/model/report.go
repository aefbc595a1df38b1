package model

// FeedResult is the outcome of one feed's attempt within a run.
type FeedResult struct {
	FeedID        string `json:"feedId"`
	Success       bool   `json:"success"`
	ArticlesCount *int   `json:"articlesCount,omitempty"`
	Error         string `json:"error,omitempty"`
}

// RunReport preserves the iteration order of the feed selection.
type RunReport []FeedResult

func Succeeded(feedID string, count int) FeedResult {
	return FeedResult{FeedID: feedID, Success: true, ArticlesCount: &count}
}

func Failed(feedID, msg string) FeedResult {
	return FeedResult{FeedID: feedID, Success: false, Error: msg}
}

// Failures counts unsuccessful outcomes.
func (r RunReport) Failures() int {
	n := 0
	for _, res := range r {
		if !res.Success {
			n++
		}
	}
	return n
}
