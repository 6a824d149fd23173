package scanner

import (
	"errors"
	"fmt"
)

// ErrNotAuthorized means the platform session is not logged in.
// The keyword's scan stops before contacting search.
var ErrNotAuthorized = errors.New("telegram client not authorized")

// SearchError wraps a failed platform search
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search %q failed: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// ChannelFetchError wraps a failed message fetch for one channel.
// It is recovered locally and never terminates a keyword scan.
type ChannelFetchError struct {
	PlatformID int64
	Err        error
}

func (e *ChannelFetchError) Error() string {
	return fmt.Sprintf("fetching messages for channel %d: %v", e.PlatformID, e.Err)
}

func (e *ChannelFetchError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure during a scan
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
