package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/dedup"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/slack"
)

// ResultWriter persists the report payload onto the deal record.
type ResultWriter interface {
	WriteResult(ctx context.Context, dealID, payload string) error
}

// Notifier dispatches at most one report per deal, ever.
type Notifier struct {
	gate     *dedup.Gatekeeper
	slack    slack.Client
	results  ResultWriter
	channel  string
	portalID string
	log      *zap.Logger
}

// NewNotifier wires the dispatch path. portalID builds the deal record link;
// empty omits the link button.
func NewNotifier(gate *dedup.Gatekeeper, sc slack.Client, results ResultWriter, channel, portalID string) *Notifier {
	return &Notifier{
		gate:     gate,
		slack:    sc,
		results:  results,
		channel:  channel,
		portalID: portalID,
		log:      zap.L().With(zap.String("component", "notify")),
	}
}

// Dispatch reserves the deal's notification slot and posts the report. A
// deal that was already notified — in this run or any earlier one — is a
// logged success, so the caller still finalizes the deal as done. The report
// JSON is also written back onto the deal; a failure there is logged, not
// fatal, because the message is already out.
func (n *Notifier) Dispatch(ctx context.Context, deal *model.Deal, rec *model.EnrichmentRecord, score *model.ScoreResult) error {
	ok, err := n.gate.TryReserve(ctx, deal.ID)
	if err != nil {
		return eris.Wrapf(err, "notify: reserve dispatch for deal %s", deal.ID)
	}
	if !ok {
		n.log.Info("notification already sent, skipping",
			zap.String("deal_id", deal.ID),
		)
		return nil
	}

	msg := BuildMessage(n.channel, deal, rec, score, n.recordURL(deal.ID))
	resp, err := n.slack.PostMessage(ctx, msg)
	if err != nil {
		return eris.Wrapf(err, "notify: post report for deal %s", deal.ID)
	}
	n.log.Info("report dispatched",
		zap.String("deal_id", deal.ID),
		zap.String("ts", resp.TS),
		zap.Int("score", score.Score),
	)

	payload, err := json.Marshal(msg)
	if err != nil {
		n.log.Warn("report payload marshal failed", zap.String("deal_id", deal.ID), zap.Error(err))
		return nil
	}
	if err := n.results.WriteResult(ctx, deal.ID, string(payload)); err != nil {
		n.log.Warn("report audit write failed", zap.String("deal_id", deal.ID), zap.Error(err))
	}
	return nil
}

func (n *Notifier) recordURL(dealID string) string {
	if n.portalID == "" {
		return ""
	}
	return fmt.Sprintf("https://app-eu1.hubspot.com/contacts/%s/record/0-3/%s", n.portalID, dealID)
}
