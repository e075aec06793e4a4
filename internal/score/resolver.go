package score

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/model"
)

// Resolver picks the scoring path by store type.
type Resolver struct {
	online *OnlineScorer
	log    *zap.Logger
}

// NewResolver builds a Resolver around the online scorer. The physical path
// needs no collaborators.
func NewResolver(online *OnlineScorer) *Resolver {
	return &Resolver{
		online: online,
		log:    zap.L().With(zap.String("component", "score")),
	}
}

// Resolve returns the final score for one deal. It never fails: the online
// path degrades to its deterministic fallback internally, and the physical
// path is a pure table.
func (r *Resolver) Resolve(ctx context.Context, deal *model.Deal, rec *model.EnrichmentRecord) *model.ScoreResult {
	var result *model.ScoreResult
	if deal.Online() {
		result = r.online.Score(ctx, deal, rec)
	} else {
		result = PhysicalResult(&rec.Revenue)
	}
	r.log.Info("deal scored",
		zap.String("deal_id", deal.ID),
		zap.String("store_type", string(deal.StoreType)),
		zap.Int("score", result.Score),
		zap.Bool("clamped", result.Clamped),
	)
	return result
}
