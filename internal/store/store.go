// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/callprep/internal/domain"
)

// SessionKey identifies one coaching session: an anonymous owner and the
// browser tab (or client) that opened it.
type SessionKey struct {
	OwnerID   string
	SessionID string
}

// Repository defines the interface for persisting coaching sessions.
type Repository interface {
	// GetSession retrieves a session. It returns nil, nil when none exists.
	GetSession(ctx context.Context, key SessionKey) (*domain.Session, error)

	// CreateSession stores a new session unless one already exists for its
	// key. It reports whether the session was inserted.
	CreateSession(ctx context.Context, session *domain.Session) (bool, error)

	// SaveSession creates or replaces a session.
	SaveSession(ctx context.Context, session *domain.Session) error

	// DeleteSession removes a session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, key SessionKey) error

	// ExpiredSessions lists sessions not updated within ttl.
	ExpiredSessions(ctx context.Context, ttl time.Duration) ([]SessionKey, error)

	// CountSessions returns the number of stored sessions.
	CountSessions(ctx context.Context) (int, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
