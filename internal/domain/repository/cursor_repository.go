package repository

import (
	"context"
	"time"

	"tkgm-sync-service/internal/domain/entity"
)

// CursorRepository defines the interface for the per-mode sync cursor and the
// daily quota flag.
type CursorRepository interface {
	// Load returns the cursor for the given sync mode, or a cursor positioned
	// at defaultDate with index 0 when no row exists yet.
	Load(ctx context.Context, mode string, defaultDate time.Time) (*entity.SyncCursor, error)

	// Save upserts the cursor row for the given mode. Date and index are
	// written atomically; it is safe to call after every page.
	Save(ctx context.Context, mode string, cursor *entity.SyncCursor) error

	// IsDailyLimitReached reports whether the quota flag was set today.
	IsDailyLimitReached(ctx context.Context) (bool, error)

	// SetDailyLimitReached stamps the quota flag with today's date.
	SetDailyLimitReached(ctx context.Context) error

	// ClearDailyLimit removes the quota flag (manual intervention).
	ClearDailyLimit(ctx context.Context) error
}
