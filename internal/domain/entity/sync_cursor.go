package entity

import "time"

// Sync modes. Each mode owns one cursor row; ModeDailyLimitReached is a flag
// row whose QueryDate marks the day the upstream quota was exhausted.
const (
	ModeDailySync         = "daily_sync"
	ModeDailyInactiveSync = "daily_inactive_sync"
	ModeFullySync         = "fully_sync"
	ModeDailyLimitReached = "daily_limit_reached"
)

// EntityType values used by the failed-record store.
const (
	EntityTypeParcel        = "parcel"
	EntityTypeDistrict      = "district"
	EntityTypeNeighbourhood = "neighbourhood"
)

// SyncCursor is the persisted resumption point for one sync mode: a calendar
// date marking progress through the date-partitioned dataset and a row offset
// within that date. StartIndex is reset to 0 whenever QueryDate advances.
type SyncCursor struct {
	QueryDate  time.Time
	StartIndex int
	UpdatedAt  time.Time
}

// NextDay advances the cursor to the following calendar day and resets the
// row offset.
func (c *SyncCursor) NextDay() {
	c.QueryDate = c.QueryDate.AddDate(0, 0, 1)
	c.StartIndex = 0
}

// Advance moves the row offset forward within the current day.
func (c *SyncCursor) Advance(pageSize int) {
	c.StartIndex += pageSize
}
