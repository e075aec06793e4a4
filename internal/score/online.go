package score

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/anthropic"
)

// minOrderValue is the average-order-value gate threshold in euros.
const minOrderValue = 120

// qualifyingProcessors pass the payment-stack gate. Niche or legacy
// processors do not.
var qualifyingProcessors = map[string]bool{
	"Stripe": true,
	"PayPal": true,
	"Adyen":  true,
	"Nexi":   true,
}

// qualifyingStorefronts pass the tech-stack gate.
var qualifyingStorefronts = map[string]bool{
	"Shopify":     true,
	"WooCommerce": true,
}

const onlineSystemPrompt = `You are a BNPL deal analyst. Score an e-commerce company's installment-payments potential from 1 to 10 using only the data provided. A score of 7 or above requires ALL four criteria: revenue above EUR 1M, a modern payment stack, average order value of EUR 120 or more (estimate it from category and brand), and a modern storefront platform. Respond with a single JSON object and no other text:
{"score": <1-10>, "rationale": "<2-3 sentences>", "is_ecommerce": <bool>, "has_bnpl_competitor": <bool>, "aov_estimated": "<euro amount like 'EUR 150' or 'N/D'>"}`

// OnlineScorer runs the gated external scoring path for online stores.
type OnlineScorer struct {
	llm       anthropic.Client
	model     string
	maxTokens int64
	log       *zap.Logger
}

// NewOnlineScorer builds an OnlineScorer on the given model.
func NewOnlineScorer(llm anthropic.Client, modelName string) *OnlineScorer {
	return &OnlineScorer{
		llm:       llm,
		model:     modelName,
		maxTokens: 512,
		log:       zap.L().With(zap.String("component", "score.online")),
	}
}

type onlineResponse struct {
	Score             int    `json:"score"`
	Rationale         string `json:"rationale"`
	IsEcommerce       bool   `json:"is_ecommerce"`
	HasBNPLCompetitor bool   `json:"has_bnpl_competitor"`
	AOVEstimated      string `json:"aov_estimated"`
}

// Score evaluates the four gates, consults the external scorer, and returns
// the final result. The external score never survives a failed gate into the
// top band, and malformed scorer output falls back to a deterministic
// gate-count score.
func (s *OnlineScorer) Score(ctx context.Context, deal *model.Deal, rec *model.EnrichmentRecord) *model.ScoreResult {
	gates := model.GateOutcomes{
		model.GateRevenue:    rec.Revenue.Determined() && rec.Revenue.Value.Units() > 1_000_000,
		model.GateProcessor:  hasQualifyingProcessor(rec),
		model.GateStorefront: hasQualifyingStorefront(rec),
	}

	resp, err := s.ask(ctx, deal, rec, gates)
	if err != nil {
		s.log.Warn("external scorer unusable, using gate-count fallback",
			zap.String("deal_id", deal.ID),
			zap.Error(err),
		)
		return s.fallback(rec, gates)
	}

	gates[model.GateOrderValue] = parseOrderValue(resp.AOVEstimated) >= minOrderValue

	result := &model.ScoreResult{
		Score:     resp.Score,
		Rationale: resp.Rationale,
		Gates:     gates,
		Flags: model.CategoryFlags{
			IsEcommerce:                resp.IsEcommerce,
			HasCompetitorPaymentMethod: resp.HasBNPLCompetitor || rec.Payments.HasCompetitor(),
		},
	}

	if result.Score >= 8 && !gates.AllPassed() {
		s.log.Info("top-band score clamped: gate failed",
			zap.String("deal_id", deal.ID),
			zap.Int("scorer_score", result.Score),
		)
		result.Score = 6
		result.Clamped = true
	}
	return result
}

func (s *OnlineScorer) ask(ctx context.Context, deal *model.Deal, rec *model.EnrichmentRecord, gates model.GateOutcomes) (*onlineResponse, error) {
	resp, err := s.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    onlineSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildDealContext(deal, rec, gates)},
		},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogUsage(s.model, "score")

	var out onlineResponse
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &out); err != nil {
		return nil, err
	}
	if out.Score < 1 || out.Score > 10 {
		return nil, fmt.Errorf("score %d out of range", out.Score)
	}
	return &out, nil
}

// fallback scores from the deterministic gates alone: two points each on a
// base of two. The order-value gate is unknown here and counts as failed,
// which keeps the fallback out of the top band via the clamp rule.
func (s *OnlineScorer) fallback(rec *model.EnrichmentRecord, gates model.GateOutcomes) *model.ScoreResult {
	passed := 0
	for _, g := range []model.Gate{model.GateRevenue, model.GateProcessor, model.GateStorefront} {
		if gates[g] {
			passed++
		}
	}
	score := 2 + 2*passed
	clamped := false
	if score >= 8 {
		score = 6
		clamped = true
	}
	return &model.ScoreResult{
		Score:     score,
		Rationale: "deterministic fallback: external scorer output unusable",
		Gates:     gates,
		Clamped:   clamped,
		Flags: model.CategoryFlags{
			IsEcommerce:                true,
			HasCompetitorPaymentMethod: rec.Payments.HasCompetitor(),
		},
	}
}

func buildDealContext(deal *model.Deal, rec *model.EnrichmentRecord, gates model.GateOutcomes) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DEAL: %s\n", deal.Name)
	fmt.Fprintf(&b, "DOMAIN: %s\n", orND(deal.Domain))
	fmt.Fprintf(&b, "CATEGORY: %s\n", orND(deal.Category))

	if rec.Revenue.Determined() {
		fmt.Fprintf(&b, "REVENUE: %s (confidence %s)\n", rec.Revenue.Value, rec.Revenue.Confidence)
	} else {
		b.WriteString("REVENUE: N/D\n")
	}
	if len(rec.Payments.Processors) > 0 {
		fmt.Fprintf(&b, "PAYMENT PROCESSORS: %s\n", strings.Join(rec.Payments.Processors, ", "))
	}
	if len(rec.Payments.Competitors) > 0 {
		fmt.Fprintf(&b, "BNPL COMPETITORS: %s\n", strings.Join(rec.Payments.Competitors, ", "))
	}
	if rec.Traffic.VisitsAvailable {
		fmt.Fprintf(&b, "MONTHLY VISITS: %d (YoY %+.0f%%)\n", rec.Traffic.Visits, rec.Traffic.VisitsYoY*100)
	}
	if rec.Traffic.SearchAvailable {
		fmt.Fprintf(&b, "SEARCH TRAFFIC: %d organic, %d paid per month\n", rec.Traffic.OrganicMonthly, rec.Traffic.PaidMonthly)
	}
	if len(rec.Tech.Storefront) > 0 {
		fmt.Fprintf(&b, "STOREFRONT: %s\n", strings.Join(rec.Tech.Storefront, ", "))
	}

	fmt.Fprintf(&b, "\nGATE CHECKS: revenue>1M=%t, processor=%t, storefront=%t (order value: estimate yourself)\n",
		gates[model.GateRevenue], gates[model.GateProcessor], gates[model.GateStorefront])
	return b.String()
}

func hasQualifyingProcessor(rec *model.EnrichmentRecord) bool {
	for _, p := range rec.Payments.Processors {
		if qualifyingProcessors[p] {
			return true
		}
	}
	for _, p := range rec.Tech.Payments {
		if qualifyingProcessors[p] {
			return true
		}
	}
	return false
}

func hasQualifyingStorefront(rec *model.EnrichmentRecord) bool {
	for _, t := range rec.Tech.Storefront {
		if qualifyingStorefronts[t] {
			return true
		}
	}
	return false
}

var orderValueRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)

// parseOrderValue extracts the lower bound of an estimated order value like
// "EUR 150", "€50-200" or "N/D". Unparseable input yields zero.
func parseOrderValue(raw string) float64 {
	m := orderValueRe.FindStringSubmatch(raw)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func orND(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/D"
	}
	return s
}

// cleanJSON strips markdown code fences and trims to the outermost JSON
// object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
