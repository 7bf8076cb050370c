package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/pkg/logger"
)

func TestDispatcherPick(t *testing.T) {
	newDispatcher := func(t *testing.T) (*Dispatcher, *fakeCursorRepo) {
		t.Helper()
		f := newSyncFixture(t, nil)
		return NewDispatcher(f.service, f.cursors, logger.NewLogger()), f.cursors
	}

	t.Run("daily sync while behind", func(t *testing.T) {
		d, cursors := newDispatcher(t)
		cursors.cursors[entity.ModeDailySync] = entity.SyncCursor{
			QueryDate: time.Now().AddDate(0, 0, -3),
		}

		mode, sync := d.pick(context.Background())
		assert.Equal(t, entity.ModeDailySync, mode)
		require.NotNil(t, sync)
	})

	t.Run("inactive sync once caught up", func(t *testing.T) {
		d, cursors := newDispatcher(t)
		cursors.cursors[entity.ModeDailySync] = entity.SyncCursor{
			QueryDate: time.Now(),
		}

		mode, _ := d.pick(context.Background())
		assert.Equal(t, entity.ModeDailyInactiveSync, mode)
	})

	t.Run("inactive sync when cursor is ahead", func(t *testing.T) {
		d, cursors := newDispatcher(t)
		cursors.cursors[entity.ModeDailySync] = entity.SyncCursor{
			QueryDate: time.Now().AddDate(0, 0, 1),
		}

		mode, _ := d.pick(context.Background())
		assert.Equal(t, entity.ModeDailyInactiveSync, mode)
	})

	t.Run("no cursor row defaults to daily sync", func(t *testing.T) {
		d, _ := newDispatcher(t)

		mode, _ := d.pick(context.Background())
		assert.Equal(t, entity.ModeDailySync, mode)
	})
}
