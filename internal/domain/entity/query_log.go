package entity

import "time"

// QueryLog is one append-only audit row per WFS fetch attempt. Rows are never
// mutated after insertion and are not consulted by control flow.
type QueryLog struct {
	ID                uint
	TypeName          string
	URL               string
	FeatureCount      int
	IsEmpty           bool
	IsSuccessful      bool
	ErrorMessage      string
	HTTPStatusCode    int
	ResponseSize      int
	ExecutionDuration time.Duration
	Notes             string
	QueryTime         time.Time
}
