package model

// Gate identifies one of the four mandatory conditions for an online-store
// deal to reach the top score band.
type Gate string

const (
	GateRevenue    Gate = "revenue_above_minimum"
	GateProcessor  Gate = "qualifying_processor"
	GateOrderValue Gate = "average_order_value"
	GateStorefront Gate = "qualifying_storefront"
)

// GateOutcomes maps each gate to its evaluation.
type GateOutcomes map[Gate]bool

// AllPassed reports whether every gate evaluated true.
func (g GateOutcomes) AllPassed() bool {
	for _, gate := range []Gate{GateRevenue, GateProcessor, GateOrderValue, GateStorefront} {
		if !g[gate] {
			return false
		}
	}
	return true
}

// CategoryFlags are the categorical outputs attached to a score.
type CategoryFlags struct {
	IsEcommerce                bool `json:"is_ecommerce"`
	HasCompetitorPaymentMethod bool `json:"has_competitor_payment_method"`
}

// ScoreResult is the final 1-10 potential score with its explanation, one per
// successful processing attempt. It is embedded in the notification and
// written back onto the deal as an opaque audit blob.
type ScoreResult struct {
	Score     int           `json:"score"`
	Rationale string        `json:"rationale"`
	Flags     CategoryFlags `json:"flags"`
	Gates     GateOutcomes  `json:"gates,omitempty"`
	Clamped   bool          `json:"clamped,omitempty"`
}
