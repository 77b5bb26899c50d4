package sitedata

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the pipeline. Match them with errors.Is.
var (
	ErrUpstreamUnreachable = errors.New("spreadsheet endpoint unreachable")
	ErrMalformedResponse   = errors.New("malformed spreadsheet response")
	ErrUpstreamReported    = errors.New("spreadsheet endpoint reported an error")
	ErrMissingTab          = errors.New("required tab missing")
	ErrCacheUnavailable    = errors.New("site cache unavailable")
	ErrCacheMiss           = errors.New("site cache miss")
	ErrSiteNotFound        = errors.New("site not found")
	ErrSiteExists          = errors.New("site already exists")
	ErrQueueClosed         = errors.New("refresh queue closed")
	ErrQueueFull           = errors.New("refresh queue full")
	ErrNoSpreadsheetID     = errors.New("spreadsheet id is required")
)

// TabError attributes a fetch or parse failure to a tab.
type TabError struct {
	Tab TabName
	Err error
}

func (e *TabError) Error() string {
	return fmt.Sprintf("tab %q: %v", e.Tab, e.Err)
}

func (e *TabError) Unwrap() error {
	return e.Err
}

// FailedTab returns the tab named by the first TabError in err's chain.
func FailedTab(err error) (TabName, bool) {
	var tabErr *TabError
	if errors.As(err, &tabErr) {
		return tabErr.Tab, true
	}
	return "", false
}

// Retryable reports whether a refresh failing with err may succeed on a later attempt.
// Malformed payloads and errors reported by the spreadsheet itself are permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrUpstreamReported) ||
		errors.Is(err, ErrSiteNotFound) || errors.Is(err, ErrNoSpreadsheetID) {
		return false
	}
	return true
}
