// Package state holds per-conversation relay state: the target a sender is
// about to message, plus the last target they messaged (for "send again").
// A slot is owned by exactly one conversation; nothing here is shared
// between chats.
package state

import "context"

// Store is the ephemeral conversation-state backend. SetPending also
// records the target as the chat's last target; Clear removes only the
// pending slot so "send again" keeps working after a delivery.
type Store interface {
	SetPending(ctx context.Context, chatID, target int64) error
	Pending(ctx context.Context, chatID int64) (target int64, ok bool, err error)
	Clear(ctx context.Context, chatID int64) error
	LastTarget(ctx context.Context, chatID int64) (target int64, ok bool, err error)
}
