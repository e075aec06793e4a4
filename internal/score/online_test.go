package score

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/anthropic"
)

type fakeLLM struct {
	text string
	err  error
	last anthropic.MessageRequest
}

func (f *fakeLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}},
	}, nil
}

func onlineRecord() *model.EnrichmentRecord {
	return &model.EnrichmentRecord{
		Revenue: model.RevenueEstimate{
			Value:      &model.Money{Amount: 350_000_000, Currency: "EUR"},
			Confidence: model.ConfidenceHigh,
			Validated:  true,
		},
		Payments: model.PaymentDetectionResult{Processors: []string{"Stripe"}},
		Tech:     model.TechStackResult{Storefront: []string{"Shopify"}},
	}
}

func scoredDeal() *model.Deal {
	return &model.Deal{
		ID:        "1001",
		Name:      "Grivel Srl",
		Domain:    "grivel.com",
		StoreType: model.StoreTypeOnline,
	}
}

func TestOnlineScoreAllGatesPass(t *testing.T) {
	llm := &fakeLLM{text: `{"score": 9, "rationale": "strong fit", "is_ecommerce": true, "has_bnpl_competitor": false, "aov_estimated": "EUR 180"}`}
	s := NewOnlineScorer(llm, "test-model")

	res := s.Score(context.Background(), scoredDeal(), onlineRecord())

	assert.Equal(t, 9, res.Score)
	assert.False(t, res.Clamped)
	assert.True(t, res.Gates.AllPassed())
	assert.True(t, res.Flags.IsEcommerce)
	assert.Contains(t, llm.last.Messages[0].Content, "DEAL: Grivel Srl")
	assert.Contains(t, llm.last.Messages[0].Content, "STOREFRONT: Shopify")
}

func TestOnlineScoreClampedOnFailedGate(t *testing.T) {
	// Scorer claims top band but estimates a low order value.
	llm := &fakeLLM{text: `{"score": 9, "rationale": "looks great", "is_ecommerce": true, "has_bnpl_competitor": false, "aov_estimated": "EUR 80"}`}
	s := NewOnlineScorer(llm, "test-model")

	res := s.Score(context.Background(), scoredDeal(), onlineRecord())

	assert.Equal(t, 6, res.Score)
	assert.True(t, res.Clamped)
	assert.False(t, res.Gates[model.GateOrderValue])
	assert.True(t, res.Gates[model.GateRevenue])
}

func TestOnlineScoreFencedResponse(t *testing.T) {
	llm := &fakeLLM{text: "```json\n{\"score\": 7, \"rationale\": \"ok\", \"is_ecommerce\": true, \"has_bnpl_competitor\": true, \"aov_estimated\": \"EUR 150\"}\n```"}
	s := NewOnlineScorer(llm, "test-model")

	res := s.Score(context.Background(), scoredDeal(), onlineRecord())

	assert.Equal(t, 7, res.Score)
	assert.True(t, res.Flags.HasCompetitorPaymentMethod)
}

func TestOnlineScoreFallbackOnMalformedOutput(t *testing.T) {
	llm := &fakeLLM{text: "I think this deal deserves a solid 9 out of 10."}
	s := NewOnlineScorer(llm, "test-model")

	res := s.Score(context.Background(), scoredDeal(), onlineRecord())

	// Three deterministic gates pass: 2 + 2*3 = 8, clamped out of the top
	// band because the order-value gate is unknown.
	assert.Equal(t, 6, res.Score)
	assert.True(t, res.Clamped)
	assert.Contains(t, res.Rationale, "fallback")
}

func TestOnlineScoreFallbackOnError(t *testing.T) {
	llm := &fakeLLM{err: eris.New("api down")}
	s := NewOnlineScorer(llm, "test-model")

	rec := &model.EnrichmentRecord{
		Revenue: model.RevenueEstimate{Value: &model.Money{Amount: 50_000_000, Currency: "EUR"}},
	}
	res := s.Score(context.Background(), scoredDeal(), rec)

	// Revenue below 1M and no processor/storefront: base score only.
	assert.Equal(t, 2, res.Score)
	assert.False(t, res.Clamped)
}

func TestStorefrontGateRequiresQualifyingPlatform(t *testing.T) {
	rec := onlineRecord()
	rec.Tech.Storefront = []string{"Magento"}
	assert.False(t, hasQualifyingStorefront(rec))

	rec.Tech.Storefront = []string{"Magento", "WooCommerce"}
	assert.True(t, hasQualifyingStorefront(rec))
}

func TestProcessorGateUsesBothSources(t *testing.T) {
	rec := &model.EnrichmentRecord{
		Tech: model.TechStackResult{Payments: []string{"Nexi"}},
	}
	assert.True(t, hasQualifyingProcessor(rec))

	rec = &model.EnrichmentRecord{
		Payments: model.PaymentDetectionResult{Processors: []string{"Satispay"}},
	}
	assert.False(t, hasQualifyingProcessor(rec))
}

func TestParseOrderValue(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"EUR 150", 150},
		{"€150", 150},
		{"€50-200", 50},
		{"120,50", 120.5},
		{"N/D", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseOrderValue(tt.raw), tt.raw)
	}
}
