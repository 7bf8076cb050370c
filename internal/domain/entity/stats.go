package entity

import "time"

// DBStats is a point-in-time row count snapshot across the cadastre tables.
type DBStats struct {
	Parcels        int64
	Districts      int64
	Neighbourhoods int64
	FailedOpen     int64
	FailedResolved int64
	QueryLogs      int64
	CollectedAt    time.Time
}
