// Package dedup guards outward notifications: a deal id reserved here must
// never trigger a second notification, even across process restarts.
package dedup

import (
	"context"
	"time"
)

// Record is one durable reservation.
type Record struct {
	DealID     string
	NotifiedAt time.Time
}

// Store persists reservations. Implementations are not required to be
// concurrency-safe; the Gatekeeper serializes all access.
type Store interface {
	// Load returns every reservation. Called once at startup.
	Load(ctx context.Context) ([]Record, error)

	// Reserve durably records a reservation. Writing an already-reserved
	// deal id is a no-op, not an error.
	Reserve(ctx context.Context, dealID string, at time.Time) error

	Migrate(ctx context.Context) error
	Close() error
}
