package ingest

import "fmt"

// SetupError means a run could not start, typically because the feed list
// could not be read. It is the only error Run returns.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return fmt.Sprintf("ingest setup: %v", e.Err) }

func (e *SetupError) Unwrap() error { return e.Err }
