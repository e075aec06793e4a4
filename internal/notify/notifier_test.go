package notify

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualifier/internal/dedup"
	"github.com/sells-group/lead-qualifier/pkg/slack"
)

type fakeSlack struct {
	posted []slack.MessageRequest
	err    error
}

func (f *fakeSlack) PostMessage(ctx context.Context, req slack.MessageRequest) (*slack.MessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.posted = append(f.posted, req)
	return &slack.MessageResponse{OK: true, Channel: req.Channel, TS: "1756600000.000100"}, nil
}

type fakeResults struct {
	payloads map[string]string
	err      error
}

func (f *fakeResults) WriteResult(ctx context.Context, dealID, payload string) error {
	if f.err != nil {
		return f.err
	}
	if f.payloads == nil {
		f.payloads = make(map[string]string)
	}
	f.payloads[dealID] = payload
	return nil
}

func testGatekeeper(t *testing.T) *dedup.Gatekeeper {
	t.Helper()
	store, err := dedup.NewSQLite(filepath.Join(t.TempDir(), "dedup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	gk, err := dedup.NewGatekeeper(context.Background(), store)
	require.NoError(t, err)
	return gk
}

func TestDispatchPostsOnceAndPersistsAudit(t *testing.T) {
	sc := &fakeSlack{}
	results := &fakeResults{}
	n := NewNotifier(testGatekeeper(t), sc, results, "C123", "26230674")

	err := n.Dispatch(context.Background(), reportDeal(), reportRecord(), reportScore())

	require.NoError(t, err)
	require.Len(t, sc.posted, 1)
	assert.Equal(t, "C123", sc.posted[0].Channel)

	payload, ok := results.payloads["1001"]
	require.True(t, ok)
	assert.Contains(t, payload, "qualify_automated")
	assert.Contains(t, payload, "app-eu1.hubspot.com/contacts/26230674/record/0-3/1001")
}

func TestDispatchSuppressesDuplicate(t *testing.T) {
	sc := &fakeSlack{}
	n := NewNotifier(testGatekeeper(t), sc, &fakeResults{}, "C123", "")

	require.NoError(t, n.Dispatch(context.Background(), reportDeal(), reportRecord(), reportScore()))
	require.NoError(t, n.Dispatch(context.Background(), reportDeal(), reportRecord(), reportScore()))

	// The second dispatch is a logged success with no second message.
	assert.Len(t, sc.posted, 1)
}

func TestDispatchPostFailureIsAnError(t *testing.T) {
	sc := &fakeSlack{err: eris.New("channel_not_found")}
	n := NewNotifier(testGatekeeper(t), sc, &fakeResults{}, "C123", "")

	err := n.Dispatch(context.Background(), reportDeal(), reportRecord(), reportScore())
	require.Error(t, err)
}

func TestDispatchAuditFailureIsNotFatal(t *testing.T) {
	sc := &fakeSlack{}
	results := &fakeResults{err: eris.New("crm down")}
	n := NewNotifier(testGatekeeper(t), sc, results, "C123", "")

	err := n.Dispatch(context.Background(), reportDeal(), reportRecord(), reportScore())
	require.NoError(t, err)
	assert.Len(t, sc.posted, 1)
}
