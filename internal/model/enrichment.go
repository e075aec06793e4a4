package model

import "fmt"

// Confidence is the two-level trust label attached to a revenue estimate.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Money is an amount in minor units of an ISO 4217 currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Units returns the amount in major units (euros, not cents).
func (m Money) Units() float64 {
	return float64(m.Amount) / 100
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Units(), m.Currency)
}

// RevenueEstimate is the outcome of the tiered revenue lookup. A nil Value
// means no figure could be determined. Diagnostics carries one line per tier
// attempted, in order, and survives total failure: it is the audit trail for
// why a number was or wasn't trusted.
type RevenueEstimate struct {
	Value          *Money     `json:"value,omitempty"`
	FiscalYear     int        `json:"fiscal_year,omitempty"`
	SourceName     string     `json:"source_name,omitempty"`
	RegisteredName string     `json:"registered_name,omitempty"`
	Confidence     Confidence `json:"confidence,omitempty"`
	Validated      bool       `json:"validated"`
	Diagnostics    []string   `json:"diagnostics"`
}

// Determined reports whether a revenue figure was found.
func (r *RevenueEstimate) Determined() bool {
	return r != nil && r.Value != nil
}

// ProbeStage identifies how deep the payment probe got.
type ProbeStage string

const (
	StageHomepage ProbeStage = "homepage"
	StageProduct  ProbeStage = "product"
	StageCheckout ProbeStage = "checkout"
)

// PaymentDetectionResult reports competitor (BNPL) and payment-processor
// identifiers found on the company's storefront.
type PaymentDetectionResult struct {
	Competitors []string   `json:"competitors,omitempty"`
	Processors  []string   `json:"processors,omitempty"`
	Stage       ProbeStage `json:"stage,omitempty"`
	StagesRun   int        `json:"stages_run"`
	Blocked     bool       `json:"blocked"`
	BlockKind   string     `json:"block_kind,omitempty"`
	Score       int        `json:"score"`
	Label       string     `json:"label,omitempty"`
}

// HasCompetitor reports whether a competing BNPL provider was confirmed.
func (p *PaymentDetectionResult) HasCompetitor() bool {
	return p != nil && len(p.Competitors) > 0
}

// TrafficStats merges search-engine and site-analytics estimates. The two
// providers are independent; Available flags record which ones answered.
type TrafficStats struct {
	OrganicMonthly   int64    `json:"organic_monthly,omitempty"`
	PaidMonthly      int64    `json:"paid_monthly,omitempty"`
	Visits           int64    `json:"visits,omitempty"`
	VisitsYoY        float64  `json:"visits_yoy,omitempty"`
	TopChannels      []string `json:"top_channels,omitempty"`
	SearchAvailable  bool     `json:"search_available"`
	VisitsAvailable  bool     `json:"visits_available"`
	CountryDatabase  string   `json:"country_database,omitempty"`
}

// TechStackResult groups detected storefront technologies.
type TechStackResult struct {
	Storefront []string `json:"storefront,omitempty"`
	Analytics  []string `json:"analytics,omitempty"`
	Payments   []string `json:"payments,omitempty"`
}

// HasStorefront reports whether a qualifying storefront platform was found.
func (t *TechStackResult) HasStorefront() bool {
	return t != nil && len(t.Storefront) > 0
}

// DegradeReason explains why an enrichment field came back undetermined.
type DegradeReason string

const (
	DegradeTimeout     DegradeReason = "timeout"
	DegradeBlocked     DegradeReason = "blocked"
	DegradeUnavailable DegradeReason = "unavailable"
	DegradeNotFound    DegradeReason = "not_found"
)

// EnrichmentRecord is the per-attempt aggregate of all enrichment fields.
// It lives only for the duration of one processing attempt and inside the
// final notification payload.
type EnrichmentRecord struct {
	Revenue  RevenueEstimate          `json:"revenue"`
	Payments PaymentDetectionResult   `json:"payments"`
	Traffic  TrafficStats             `json:"traffic"`
	Tech     TechStackResult          `json:"tech"`
	Degraded map[string]DegradeReason `json:"degraded,omitempty"`
}
