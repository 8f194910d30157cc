package domain

import (
	"context"
	"time"

	"github.com/carelink/platform/internal/shared/types"
)

// SessionRepository persists intake sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id types.ID) (*Session, error)
	GetByConnectionID(ctx context.Context, connectionID types.ID) (*Session, error)
	Update(ctx context.Context, session *Session) error

	// Reset rewinds the session and deletes its messages in one
	// transaction, writing the doctor notification in the same
	// transaction when notify is non-nil.
	Reset(ctx context.Context, session *Session, notify *ResetNotification) error
}

// ResetNotification is the transactional notification row written
// alongside a reset.
type ResetNotification struct {
	RecipientUserID types.ID
	Type            string
	Payload         []byte
}

// MessageRepository persists conversation turns.
type MessageRepository interface {
	Create(ctx context.Context, msg *ChatMessage) error
	ListBySession(ctx context.Context, sessionID types.ID, limit int) ([]*ChatMessage, error)

	// FindRecentByHash returns the newest admitted user message with the
	// given hash created after the cutoff, or nil when none exists.
	FindRecentByHash(ctx context.Context, sessionID types.ID, hash string, after time.Time) (*ChatMessage, error)
}
