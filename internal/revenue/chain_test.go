package revenue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualifier/internal/fetcher"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/vies"
)

type fakeRegistry struct {
	result *vies.CheckResult
	err    error
}

func (f *fakeRegistry) CheckVAT(ctx context.Context, countryCode, vatNumber string) (*vies.CheckResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSource struct {
	name      string
	candidate *Candidate
	err       error
	calls     int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Lookup(ctx context.Context, q Query) (*Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidate, nil
}

func eur(amount int64) *model.Money {
	return &model.Money{Amount: amount * 100, Currency: "EUR"}
}

func validRegistry() *fakeRegistry {
	return &fakeRegistry{result: &vies.CheckResult{
		CountryCode: "IT", VATNumber: "00139110076", Valid: true, Name: "GRIVEL S.R.L.",
	}}
}

func TestChainStopsAtFirstHighConfidence(t *testing.T) {
	first := &fakeSource{name: "tier-a", candidate: &Candidate{
		Value: eur(3_815_456), FiscalYear: 2024, Confidence: model.ConfidenceHigh, IdentityBound: true,
	}}
	second := &fakeSource{name: "tier-b"}

	chain := NewChain(validRegistry(), &Validator{}, first, second)
	est := chain.Resolve(context.Background(), "Grivel Srl", "IT00139110076")

	require.True(t, est.Determined())
	assert.Equal(t, int64(381545600), est.Value.Amount)
	assert.Equal(t, "tier-a", est.SourceName)
	assert.Equal(t, model.ConfidenceHigh, est.Confidence)
	assert.True(t, est.Validated)
	assert.Equal(t, "GRIVEL S.R.L.", est.RegisteredName)
	assert.Equal(t, 0, second.calls, "chain must short-circuit on high confidence")
}

func TestChainKeepsBestLowAndExhaustsTiers(t *testing.T) {
	// An unvalidated free-text candidate never keeps high confidence, so the
	// chain keeps going and retains the first (downgraded) result.
	first := &fakeSource{name: "tier-a", candidate: &Candidate{
		Value:      eur(1_000_000),
		Confidence: model.ConfidenceHigh,
		FoundName:  "Unrelated SpA",
		Evidence:   "no identifiers",
	}}
	second := &fakeSource{name: "tier-b", err: ErrNotFound}

	chain := NewChain(validRegistry(), &Validator{}, first, second)
	est := chain.Resolve(context.Background(), "Grivel Srl", "IT00139110076")

	require.True(t, est.Determined())
	assert.Equal(t, "tier-a", est.SourceName)
	assert.Equal(t, model.ConfidenceLow, est.Confidence)
	assert.False(t, est.Validated)
	assert.Equal(t, 1, second.calls, "chain must exhaust tiers when no high candidate appears")
}

func TestChainSkipsItalianTiersForForeignVAT(t *testing.T) {
	tier := &fakeSource{name: "tier-a"}
	registry := &fakeRegistry{result: &vies.CheckResult{
		CountryCode: "DE", VATNumber: "123456789", Valid: true, Name: "Beispiel GmbH",
	}}

	chain := NewChain(registry, &Validator{}, tier)
	est := chain.Resolve(context.Background(), "Beispiel GmbH", "DE123456789")

	assert.False(t, est.Determined())
	assert.Equal(t, 0, tier.calls)
	assert.Equal(t, "Beispiel GmbH", est.RegisteredName)
	requireDiagnosticContaining(t, est, "Italian revenue sources skipped")
}

func TestChainRecordsBlockAsDiagnostic(t *testing.T) {
	blocked := &fakeSource{name: "tier-a", err: &BlockedError{Kind: fetcher.BlockCloudflare}}
	second := &fakeSource{name: "tier-b", candidate: &Candidate{
		Value: eur(500_000), Confidence: model.ConfidenceHigh, IdentityBound: true,
	}}

	chain := NewChain(validRegistry(), &Validator{}, blocked, second)
	est := chain.Resolve(context.Background(), "Grivel Srl", "IT00139110076")

	require.True(t, est.Determined())
	assert.Equal(t, "tier-b", est.SourceName)
	requireDiagnosticContaining(t, est, "blocked by anti-bot protection (cloudflare)")
}

func TestChainUsesRegisteredNameForLookups(t *testing.T) {
	var seenName string
	tier := &capturingSource{name: "tier-a", onLookup: func(q Query) {
		seenName = q.Name
	}}

	chain := NewChain(validRegistry(), &Validator{}, tier)
	chain.Resolve(context.Background(), "grivel", "IT00139110076")

	assert.Equal(t, "GRIVEL S.R.L.", seenName)
}

func TestChainDisabledTier(t *testing.T) {
	tier := &fakeSource{name: "tier-a", candidate: &Candidate{
		Value: eur(100), Confidence: model.ConfidenceHigh, IdentityBound: true,
	}}

	chain := NewChain(validRegistry(), &Validator{}, tier)
	chain.Disable("tier-a")
	est := chain.Resolve(context.Background(), "Grivel Srl", "IT00139110076")

	assert.False(t, est.Determined())
	assert.Equal(t, 0, tier.calls)
	requireDiagnosticContaining(t, est, "tier-a: disabled")
}

// stallingSource blocks until its context expires.
type stallingSource struct {
	name string
}

func (s *stallingSource) Name() string { return s.name }

func (s *stallingSource) Lookup(ctx context.Context, _ Query) (*Candidate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestChainTierTimeoutBoundsSlowSource(t *testing.T) {
	slow := &stallingSource{name: "tier-slow"}
	fast := &fakeSource{name: "tier-fast", candidate: &Candidate{
		Value: eur(2_000_000), FiscalYear: 2024, Confidence: model.ConfidenceHigh, IdentityBound: true,
	}}

	chain := NewChain(validRegistry(), &Validator{}, slow, fast).
		WithTierTimeout(10 * time.Millisecond)
	est := chain.Resolve(context.Background(), "Grivel Srl", "IT00139110076")

	// The stalled tier burns only its own budget; the chain moves on.
	require.True(t, est.Determined())
	assert.Equal(t, "tier-fast", est.SourceName)
	requireDiagnosticContaining(t, est, "tier-slow: lookup failed")
}

func TestChainNoVATSkipsRegistry(t *testing.T) {
	tier := &fakeSource{name: "tier-a", err: ErrNotFound}

	chain := NewChain(&fakeRegistry{}, &Validator{}, tier)
	est := chain.Resolve(context.Background(), "Grivel Srl", "")

	assert.False(t, est.Determined())
	requireDiagnosticContaining(t, est, "VAT number not provided")
	assert.Equal(t, 1, tier.calls, "Italian tiers still run for a bare company name")
}

type capturingSource struct {
	name     string
	onLookup func(Query)
}

func (c *capturingSource) Name() string { return c.name }

func (c *capturingSource) Lookup(ctx context.Context, q Query) (*Candidate, error) {
	c.onLookup(q)
	return nil, ErrNotFound
}

func requireDiagnosticContaining(t *testing.T, est *model.RevenueEstimate, want string) {
	t.Helper()
	for _, d := range est.Diagnostics {
		if strings.Contains(d, want) {
			return
		}
	}
	t.Fatalf("no diagnostic containing %q in %v", want, est.Diagnostics)
}
