// Package score resolves the 1-10 potential score for a deal. Physical
// stores get a deterministic table over the revenue estimate; online stores
// go through the gated external scorer.
package score

import (
	"fmt"

	"github.com/sells-group/lead-qualifier/internal/model"
)

// Physical returns the deterministic physical-store score from the revenue
// estimate alone.
func Physical(est *model.RevenueEstimate) int {
	if !est.Determined() {
		return 2
	}
	rev := est.Value.Units()
	switch {
	case rev < 500_000:
		return 3
	case rev < 1_000_000:
		return 5
	case rev <= 5_000_000:
		return 6
	default:
		// One point per full million above five, capped.
		s := 6 + int((rev-5_000_000)/1_000_000)
		if s > 10 {
			s = 10
		}
		return s
	}
}

// PhysicalResult wraps Physical into a full ScoreResult.
func PhysicalResult(est *model.RevenueEstimate) *model.ScoreResult {
	s := Physical(est)
	rationale := "physical store, revenue not determined"
	if est.Determined() {
		rationale = fmt.Sprintf("physical store, revenue %s", est.Value)
	}
	return &model.ScoreResult{
		Score:     s,
		Rationale: rationale,
		Flags:     model.CategoryFlags{IsEcommerce: false},
	}
}
