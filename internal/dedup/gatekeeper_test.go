package dedup

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteGatekeeper(t *testing.T) *Gatekeeper {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "dedup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	gk, err := NewGatekeeper(context.Background(), store)
	require.NoError(t, err)
	return gk
}

func TestTryReserveTwiceSequential(t *testing.T) {
	gk := newSQLiteGatekeeper(t)
	ctx := context.Background()

	first, err := gk.TryReserve(ctx, "deal-1")
	require.NoError(t, err)
	second, err := gk.TryReserve(ctx, "deal-1")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestTryReserveConcurrentExactlyOneWins(t *testing.T) {
	gk := newSQLiteGatekeeper(t)
	ctx := context.Background()

	const n = 50
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			ok, err := gk.TryReserve(ctx, "deal-contested")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, gk.Reserved("deal-contested"))
}

func TestReservationsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dedup.db")

	store, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	gk, err := NewGatekeeper(ctx, store)
	require.NoError(t, err)
	ok, err := gk.TryReserve(ctx, "deal-restart")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Close())

	// Reopen: reservation must still hold.
	store2, err := NewSQLite(path)
	require.NoError(t, err)
	defer store2.Close()
	require.NoError(t, store2.Migrate(ctx))

	gk2, err := NewGatekeeper(ctx, store2)
	require.NoError(t, err)
	assert.Equal(t, 1, gk2.Size())

	ok, err = gk2.TryReserve(ctx, "deal-restart")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndependentDealsBothReserve(t *testing.T) {
	gk := newSQLiteGatekeeper(t)
	ctx := context.Background()

	a, err := gk.TryReserve(ctx, "deal-a")
	require.NoError(t, err)
	b, err := gk.TryReserve(ctx, "deal-b")
	require.NoError(t, err)

	assert.True(t, a)
	assert.True(t, b)
	assert.Equal(t, 2, gk.Size())
}

// failingStore fails every Reserve to exercise the rollback path.
type failingStore struct{}

func (failingStore) Load(context.Context) ([]Record, error)             { return nil, nil }
func (failingStore) Reserve(context.Context, string, time.Time) error  { return eris.New("disk full") }
func (failingStore) Migrate(context.Context) error                     { return nil }
func (failingStore) Close() error                                      { return nil }

func TestTryReserveStoreFailureRollsBack(t *testing.T) {
	gk, err := NewGatekeeper(context.Background(), failingStore{})
	require.NoError(t, err)

	ok, err := gk.TryReserve(context.Background(), "deal-x")
	assert.False(t, ok)
	require.Error(t, err)

	// The failed write must not leave an in-memory reservation behind.
	assert.False(t, gk.Reserved("deal-x"))
}

func TestSQLiteReserveIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "dedup.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(ctx))

	now := time.Now()
	require.NoError(t, store.Reserve(ctx, "deal-1", now))
	require.NoError(t, store.Reserve(ctx, "deal-1", now.Add(time.Hour)))

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "deal-1", records[0].DealID)
	// First write wins.
	assert.WithinDuration(t, now.UTC(), records[0].NotifiedAt, time.Second)
}

// lockedOnceStore fails the first Reserve the way a contended sqlite file
// does, then recovers.
type lockedOnceStore struct {
	calls int
}

func (s *lockedOnceStore) Load(context.Context) ([]Record, error) { return nil, nil }

func (s *lockedOnceStore) Reserve(context.Context, string, time.Time) error {
	s.calls++
	if s.calls == 1 {
		return eris.New("database is locked")
	}
	return nil
}

func (s *lockedOnceStore) Migrate(context.Context) error { return nil }
func (s *lockedOnceStore) Close() error                  { return nil }

func TestTryReserveRetriesTransientStoreFailure(t *testing.T) {
	store := &lockedOnceStore{}
	gk, err := NewGatekeeper(context.Background(), store)
	require.NoError(t, err)
	gk.retry.InitialBackoff = time.Millisecond

	ok, err := gk.TryReserve(context.Background(), "deal-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, store.calls)
	assert.True(t, gk.Reserved("deal-1"))
}
