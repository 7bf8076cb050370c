package repository

import "context"

// NotifierRepository defines the interface for push notifications. All sends
// are best-effort; a notification failure must never abort the sync loop.
type NotifierRepository interface {
	IsConfigured() bool
	SendMessage(ctx context.Context, text string) error
}
