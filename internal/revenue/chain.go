package revenue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/vies"
)

// Chain runs the registry lookup and the Italian aggregator tiers in
// priority order, validating every candidate and stopping at the first
// post-validation high-confidence figure.
type Chain struct {
	registry    vies.Client
	tiers       []Source
	validator   *Validator
	disabled    map[string]bool
	tierTimeout time.Duration
	log         *zap.Logger
}

// NewChain builds the fallback chain. Tiers run in the given order.
func NewChain(registry vies.Client, validator *Validator, tiers ...Source) *Chain {
	return &Chain{
		registry:  registry,
		tiers:     tiers,
		validator: validator,
		disabled:  make(map[string]bool),
		log:       zap.L().With(zap.String("component", "revenue.chain")),
	}
}

// WithTierTimeout bounds each registry and tier lookup individually, so one
// slow source cannot eat the whole enrichment window.
func (c *Chain) WithTierTimeout(d time.Duration) *Chain {
	c.tierTimeout = d
	return c
}

// Disable skips the named tiers during Resolve.
func (c *Chain) Disable(names ...string) {
	for _, n := range names {
		c.disabled[n] = true
	}
}

// boundedCtx derives the per-lookup context.
func (c *Chain) boundedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.tierTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.tierTimeout)
}

// countryPrefix extracts the two-letter country code from a raw VAT string,
// defaulting to IT for bare digits.
func countryPrefix(rawVAT string) string {
	s := strings.ToUpper(strings.TrimSpace(rawVAT))
	if len(s) >= 2 && s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z' {
		return s[:2]
	}
	return "IT"
}

// Resolve walks the chain for one company. It always returns an estimate;
// total failure is an estimate with no value and a full diagnostic trail.
func (c *Chain) Resolve(ctx context.Context, companyName, rawVAT string) *model.RevenueEstimate {
	est := &model.RevenueEstimate{}

	lookupName := companyName
	country := countryPrefix(rawVAT)
	italian := country == "IT"

	vat, vatOK := vies.NormalizeItalian(rawVAT)
	if !vatOK && country == "IT" {
		vat = ""
	}

	// Tier 0: registry lookup. Authoritative for the legal name and for
	// which jurisdiction the company sits in.
	switch {
	case strings.TrimSpace(rawVAT) == "":
		est.Diagnostics = append(est.Diagnostics, "registry: VAT number not provided, lookup skipped")
	default:
		number := vat
		if number == "" {
			number = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(rawVAT)), country)
		}
		rctx, cancel := c.boundedCtx(ctx)
		res, err := c.registry.CheckVAT(rctx, country, number)
		cancel()
		switch {
		case err != nil:
			c.log.Warn("registry lookup failed", zap.Error(err))
			est.Diagnostics = append(est.Diagnostics, fmt.Sprintf("registry: lookup failed (%v)", err))
		case !res.Valid:
			est.Diagnostics = append(est.Diagnostics, fmt.Sprintf("registry: VAT %s%s not found in the EU registry", country, number))
		default:
			if res.Name != "" {
				lookupName = res.Name
				est.RegisteredName = res.Name
			}
			est.Diagnostics = append(est.Diagnostics, fmt.Sprintf("registry: VAT valid (%s), registered name %q", country, res.Name))
		}
	}

	if !italian {
		est.Diagnostics = append(est.Diagnostics,
			fmt.Sprintf("country %s: Italian revenue sources skipped", country))
		return est
	}

	q := Query{Name: lookupName, VATNumber: vat}

	var (
		best          *Candidate
		bestSource    string
		bestConf      model.Confidence
		bestValidated bool
	)

	for _, tier := range c.tiers {
		if c.disabled[tier.Name()] {
			est.Diagnostics = append(est.Diagnostics, fmt.Sprintf("%s: disabled", tier.Name()))
			continue
		}

		tctx, cancel := c.boundedCtx(ctx)
		cand, err := tier.Lookup(tctx, q)
		cancel()
		if err != nil {
			var blocked *BlockedError
			switch {
			case errors.As(err, &blocked):
				est.Diagnostics = append(est.Diagnostics, fmt.Sprintf("%s: blocked by anti-bot protection (%s)", tier.Name(), blocked.Kind))
			case errors.Is(err, ErrNotFound):
				est.Diagnostics = append(est.Diagnostics, fmt.Sprintf("%s: no record found", tier.Name()))
			default:
				c.log.Warn("tier lookup failed", zap.String("tier", tier.Name()), zap.Error(err))
				est.Diagnostics = append(est.Diagnostics, fmt.Sprintf("%s: lookup failed (%v)", tier.Name(), err))
			}
			continue
		}

		validated, conf := c.validator.Validate(cand, lookupName, vat)
		marker := "identity not verified"
		if validated {
			marker = "identity verified"
		}
		est.Diagnostics = append(est.Diagnostics,
			fmt.Sprintf("%s: found %s (confidence %s, %s)", tier.Name(), cand.Value, conf, marker))

		if conf == model.ConfidenceHigh {
			est.Value = cand.Value
			est.FiscalYear = cand.FiscalYear
			est.SourceName = tier.Name()
			est.Confidence = conf
			est.Validated = validated
			c.log.Info("revenue resolved",
				zap.String("source", tier.Name()),
				zap.String("value", cand.Value.String()),
			)
			return est
		}

		if best == nil {
			best = cand
			bestSource = tier.Name()
			bestConf = conf
			bestValidated = validated
		}
	}

	if best != nil {
		est.Value = best.Value
		est.FiscalYear = best.FiscalYear
		est.SourceName = bestSource
		est.Confidence = bestConf
		est.Validated = bestValidated
	} else {
		est.Diagnostics = append(est.Diagnostics, "no source returned a revenue figure")
	}
	return est
}
