package store

import (
	"context"
	"time"

	"github.com/designpipe/dp/internal/models"
)

// SessionRecord is the locally persisted view of a backend session: enough
// to list past work and resume polling, never authoritative over the
// backend.
type SessionRecord struct {
	ID         string
	ClientName string
	Status     models.SessionStatus
	Mode       string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// StatusChange is one observed status transition for a session.
type StatusChange struct {
	ID         string
	SessionID  string
	Status     models.SessionStatus
	ObservedAt time.Time
}

// Store defines the local persistence interface for dp.
type Store interface {
	// Sessions
	SaveSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error

	// Current session pointer
	SetCurrentSession(ctx context.Context, id string) error
	CurrentSession(ctx context.Context) (string, error)

	// Observed status history
	RecordStatus(ctx context.Context, sessionID string, status models.SessionStatus) error
	StatusHistory(ctx context.Context, sessionID string) ([]*StatusChange, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
