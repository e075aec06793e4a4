// Package revenue resolves a company's annual revenue through a tiered
// fallback chain of Italian registry aggregators, gated by an EU VAT registry
// lookup and validated against the company's identity.
package revenue

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualifier/internal/fetcher"
	"github.com/sells-group/lead-qualifier/internal/model"
)

// ErrNotFound means a tier has no record for the company. The chain treats
// it as a normal miss and moves on.
var ErrNotFound = eris.New("revenue: company not found")

// BlockedError means a tier's site refused the fetch with anti-bot
// protection. Recorded as a diagnostic, never aborts the chain.
type BlockedError struct {
	Kind fetcher.BlockType
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("revenue: fetch blocked (%s)", e.Kind)
}

// Query identifies the company a tier should look up. VATNumber is the bare
// 11-digit Italian VAT without country prefix.
type Query struct {
	Name      string
	VATNumber string
}

// Candidate is one tier's revenue finding, pre-validation.
type Candidate struct {
	Value      *model.Money
	FiscalYear int
	Confidence model.Confidence
	// Evidence is the page text the figure was extracted from, used by the
	// validator for tax-id matching.
	Evidence string
	// FoundName is the company name scraped from the page, if any.
	FoundName string
	// IdentityBound marks candidates located through an identity-keyed URL
	// (slug built from the VAT number). They skip validation.
	IdentityBound bool
}

// Source is one tier of the fallback chain.
type Source interface {
	Name() string
	Lookup(ctx context.Context, q Query) (*Candidate, error)
}
