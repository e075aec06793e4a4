package dedup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/resilience"
)

// Gatekeeper is the single owner of the reservation set. TryReserve is the
// only point of true mutual exclusion in the process: the in-memory check and
// the durable write happen under one lock, so no two callers can both win a
// deal id, and a crash-restart reloads history from the store.
type Gatekeeper struct {
	mu       sync.Mutex
	reserved map[string]time.Time
	store    Store
	now      func() time.Time
	retry    resilience.RetryConfig
}

// NewGatekeeper loads all prior reservations from the store.
func NewGatekeeper(ctx context.Context, store Store) (*Gatekeeper, error) {
	records, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	reserved := make(map[string]time.Time, len(records))
	for _, r := range records {
		reserved[r.DealID] = r.NotifiedAt
	}

	zap.L().Info("dedup: loaded reservations",
		zap.Int("count", len(reserved)),
	)

	return &Gatekeeper{
		reserved: reserved,
		store:    store,
		now:      time.Now,
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     time.Second,
			OnRetry:        resilience.RetryLogger("dedup", "reserve"),
		},
	}, nil
}

// TryReserve returns true and durably records the reservation iff dealID was
// not previously reserved. A false return means the deal already triggered a
// notification; callers log and skip, it is not an error.
//
// If the durable write fails the in-memory reservation is rolled back and the
// error returned: better a rare duplicate message after a crash than a deal
// silently marked sent with no durable trace.
func (g *Gatekeeper) TryReserve(ctx context.Context, dealID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.reserved[dealID]; exists {
		return false, nil
	}

	// Reserve is idempotent, so a transient store failure (a locked sqlite
	// file, a dropped connection) is retried rather than failing the deal.
	at := g.now().UTC()
	err := resilience.Do(ctx, g.retry, func(ctx context.Context) error {
		return g.store.Reserve(ctx, dealID, at)
	})
	if err != nil {
		return false, err
	}
	g.reserved[dealID] = at

	return true, nil
}

// Reserved reports whether a deal id holds a reservation.
func (g *Gatekeeper) Reserved(dealID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.reserved[dealID]
	return ok
}

// Size returns the number of reservations held.
func (g *Gatekeeper) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reserved)
}
