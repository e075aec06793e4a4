// Package enrich fans out the per-deal enrichment sub-tasks and folds their
// results into one record. A sub-task failing, timing out or getting blocked
// degrades its own field; it never fails the record.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-qualifier/internal/fetcher"
	"github.com/sells-group/lead-qualifier/internal/model"
)

// BlockedError reports that a source refused the request with anti-bot
// protection.
type BlockedError struct {
	Kind fetcher.BlockType
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("enrich: blocked (%s)", e.Kind)
}

// RevenueResolver runs the tiered revenue lookup.
type RevenueResolver interface {
	Resolve(ctx context.Context, companyName, rawVAT string) *model.RevenueEstimate
}

// PaymentProber runs the storefront payment probe.
type PaymentProber interface {
	Detect(ctx context.Context, domain string) *model.PaymentDetectionResult
}

// TrafficLookup queries the traffic providers.
type TrafficLookup interface {
	Lookup(ctx context.Context, domain string) *model.TrafficStats
}

// TechLookup scans the homepage for storefront technology.
type TechLookup interface {
	Scan(ctx context.Context, domain string) (*model.TechStackResult, error)
}

// DefaultFieldTimeout bounds each enrichment sub-task. The revenue chain is
// the slowest path (registry plus up to four scraped tiers).
const DefaultFieldTimeout = 2 * time.Minute

// Coordinator runs the four enrichment sub-tasks concurrently.
type Coordinator struct {
	revenue RevenueResolver
	payment PaymentProber
	traffic TrafficLookup
	tech    TechLookup
	timeout time.Duration
	log     *zap.Logger
}

// NewCoordinator wires the four sub-task collaborators.
func NewCoordinator(rev RevenueResolver, pay PaymentProber, traffic TrafficLookup, tech TechLookup) *Coordinator {
	return &Coordinator{
		revenue: rev,
		payment: pay,
		traffic: traffic,
		tech:    tech,
		timeout: DefaultFieldTimeout,
		log:     zap.L().With(zap.String("component", "enrich")),
	}
}

// WithFieldTimeout overrides the per-sub-task timeout.
func (c *Coordinator) WithFieldTimeout(d time.Duration) *Coordinator {
	c.timeout = d
	return c
}

// Enrich runs all sub-tasks for one deal and returns the merged record. The
// record is always complete in shape; undetermined fields carry a reason in
// Degraded.
func (c *Coordinator) Enrich(ctx context.Context, deal *model.Deal) *model.EnrichmentRecord {
	rec := &model.EnrichmentRecord{Degraded: make(map[string]model.DegradeReason)}
	var mu sync.Mutex

	degrade := func(field string, reason model.DegradeReason) {
		mu.Lock()
		rec.Degraded[field] = reason
		mu.Unlock()
		c.log.Info("enrichment field degraded",
			zap.String("deal_id", deal.ID),
			zap.String("field", field),
			zap.String("reason", string(reason)),
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	g.Go(func() error {
		tctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		est := c.revenue.Resolve(tctx, deal.Name, deal.VATNumber)
		rec.Revenue = *est
		if !est.Determined() {
			if tctx.Err() != nil {
				degrade("revenue", model.DegradeTimeout)
			} else {
				degrade("revenue", model.DegradeNotFound)
			}
		}
		return nil
	})

	g.Go(func() error {
		if deal.Domain == "" {
			degrade("payments", model.DegradeNotFound)
			return nil
		}
		tctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		res := c.payment.Detect(tctx, deal.Domain)
		rec.Payments = *res
		if res.Blocked && !res.HasCompetitor() {
			degrade("payments", model.DegradeBlocked)
		}
		return nil
	})

	g.Go(func() error {
		if deal.Domain == "" {
			degrade("traffic", model.DegradeNotFound)
			return nil
		}
		tctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		stats := c.traffic.Lookup(tctx, deal.Domain)
		rec.Traffic = *stats
		if !stats.SearchAvailable && !stats.VisitsAvailable {
			if tctx.Err() != nil {
				degrade("traffic", model.DegradeTimeout)
			} else {
				degrade("traffic", model.DegradeUnavailable)
			}
		}
		return nil
	})

	g.Go(func() error {
		if deal.Domain == "" {
			degrade("tech", model.DegradeNotFound)
			return nil
		}
		tctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		res, err := c.tech.Scan(tctx, deal.Domain)
		if err != nil {
			var blocked *BlockedError
			switch {
			case errors.As(err, &blocked):
				degrade("tech", model.DegradeBlocked)
			case tctx.Err() != nil:
				degrade("tech", model.DegradeTimeout)
			default:
				c.log.Warn("tech scan failed", zap.String("deal_id", deal.ID), zap.Error(err))
				degrade("tech", model.DegradeUnavailable)
			}
			return nil
		}
		rec.Tech = *res
		return nil
	})

	_ = g.Wait()

	if len(rec.Degraded) == 0 {
		rec.Degraded = nil
	}
	return rec
}
