package entity

import "time"

// Failed record statuses.
const (
	FailedStatusFailed   = "failed"
	FailedStatusResolved = "resolved"
)

// FailedRecord is a dead-letter row for an entity that failed decoding,
// transformation or persistence. The tuple (EntityType, EntityID, Status) is
// unique; re-failing the same entity updates the existing row.
type FailedRecord struct {
	ID           uint
	EntityType   string
	EntityID     string
	RawData      []byte
	ErrorType    string
	ErrorMessage string
	RetryCount   int
	LastRetryAt  *time.Time
	Status       string
	ResolvedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
