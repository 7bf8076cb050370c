package entity

import (
	"errors"
	"time"
)

// ErrQuotaExceeded signals that the upstream service reported its daily
// request quota as exhausted. Callers must persist the daily limit flag and
// stop fetching until the next calendar day.
var ErrQuotaExceeded = errors.New("daily service quota exceeded")

// ErrStopped signals that a shutdown was requested while a fetch or sync was
// in flight. It is a stop value, not a failure.
var ErrStopped = errors.New("stopped by shutdown signal")

// FetchMeta describes one successful WFS response.
type FetchMeta struct {
	URL          string
	HTTPStatus   int
	ResponseSize int
	Duration     time.Duration
	FeatureCount int
}

// FetchResult carries the raw response body of one page together with its
// metadata.
type FetchResult struct {
	Body []byte
	Meta FetchMeta
}
