// Package store provides session state and turn journal implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/pcdoctor/internal/domain"
)

// SessionStore owns live sessions. Callers only ever see copies; the live
// session is reachable solely inside Mutate.
type SessionStore interface {
	// Get returns a snapshot of the session, or false if the id is unknown.
	Get(id string) (domain.Session, bool)

	// GetOrCreate returns the session for id. When id is empty or unknown it
	// creates a session under a fresh id; callers read the id from the result.
	GetOrCreate(id string) domain.Session

	// Mutate runs fn with exclusive access to the session. Calls for the same
	// id are serialized; calls for different ids do not block each other.
	// Returns domain.ErrSessionNotFound if the id is unknown.
	Mutate(id string, fn func(*domain.Session)) error

	// Delete removes the session. Unknown ids are ignored.
	Delete(id string)

	// Len returns the number of live sessions.
	Len() int
}

// Journal is an append-only audit log of completed turns.
type Journal interface {
	// RecordTurn appends a completed turn.
	RecordTurn(ctx context.Context, rec domain.TurnRecord) error

	// RecordClear notes that a session was cleared.
	RecordClear(ctx context.Context, sessionID string) error

	// ListTurns returns the recorded turns for a session in insertion order.
	ListTurns(ctx context.Context, sessionID string) ([]domain.TurnRecord, error)

	// DeleteOlderThan removes records older than ttl and returns the count.
	DeleteOlderThan(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
