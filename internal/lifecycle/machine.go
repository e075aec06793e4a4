package lifecycle

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/resilience"
)

// CRM is the subset of the deal-record API the lifecycle needs. The CRM owns
// the canonical record; status writes go through it so concurrent pollers
// observe claims.
type CRM interface {
	Get(ctx context.Context, dealID string) (*model.Deal, error)
	Pending(ctx context.Context, limit int) ([]*model.Deal, error)
	SetStatus(ctx context.Context, dealID string, status model.ProcessingStatus) error
}

// Enricher produces the per-deal enrichment record.
type Enricher interface {
	Enrich(ctx context.Context, deal *model.Deal) *model.EnrichmentRecord
}

// Scorer resolves the final 1-10 score for a deal.
type Scorer interface {
	Resolve(ctx context.Context, deal *model.Deal, rec *model.EnrichmentRecord) *model.ScoreResult
}

// Dispatcher sends the qualification report, at most once per deal.
type Dispatcher interface {
	Dispatch(ctx context.Context, deal *model.Deal, rec *model.EnrichmentRecord, score *model.ScoreResult) error
}

// Machine drives deals through to_start -> in_progress -> done|failed.
// Both entry points (webhook event and recovery scan) converge on Process,
// so the claim rules apply identically regardless of how a deal arrived.
type Machine struct {
	crm           CRM
	enrich        Enricher
	score         Scorer
	notify        Dispatcher
	intake        config.IntakeConfig
	finalizeRetry resilience.RetryConfig
	log           *zap.Logger
}

// NewMachine wires the lifecycle over its collaborators.
func NewMachine(crm CRM, enrich Enricher, score Scorer, notify Dispatcher, intake config.IntakeConfig) *Machine {
	return &Machine{
		crm:    crm,
		enrich: enrich,
		score:  score,
		notify: notify,
		intake: intake,
		finalizeRetry: resilience.RetryConfig{
			MaxAttempts:    4,
			InitialBackoff: time.Second,
			MaxBackoff:     15 * time.Second,
			// The terminal write is idempotent and a deal left in_progress is
			// invisible to the recovery scan, so every error is worth retrying.
			ShouldRetry: resilience.RetryAlways,
			OnRetry:     resilience.RetryLogger("hubspot", "finalize_status"),
		},
		log: zap.L().With(zap.String("component", "lifecycle")),
	}
}

// HandleEvent processes a deal-creation notification. Events for deals
// outside the pipeline/source allow-list are acknowledged and ignored, as are
// deals already done or being handled by another path.
func (m *Machine) HandleEvent(ctx context.Context, dealID string) error {
	deal, err := m.crm.Get(ctx, dealID)
	if err != nil {
		return eris.Wrapf(err, "lifecycle: reading deal %s", dealID)
	}

	if !m.accepts(deal) {
		m.log.Info("event ignored: deal outside intake filter",
			zap.String("deal_id", deal.ID),
			zap.String("pipeline", deal.Pipeline),
			zap.String("source", deal.Source),
		)
		return nil
	}

	switch deal.Status {
	case model.StatusDone:
		m.log.Info("event ignored: deal already done", zap.String("deal_id", deal.ID))
		return nil
	case model.StatusInProgress:
		m.log.Info("event ignored: deal already in progress", zap.String("deal_id", deal.ID))
		return nil
	}

	return m.Process(ctx, deal)
}

// accepts applies the intake allow-list. An empty list allows everything,
// so a minimal config still processes deals.
func (m *Machine) accepts(deal *model.Deal) bool {
	if len(m.intake.Pipelines) > 0 && !slices.Contains(m.intake.Pipelines, deal.Pipeline) {
		return false
	}
	if len(m.intake.Sources) > 0 && !slices.Contains(m.intake.Sources, deal.Source) {
		return false
	}
	return true
}

// Process runs one full attempt for a deal: claim, enrich, score, dispatch,
// finalize. A declined claim is a no-op, not an error. For a single deal no
// two attempts run concurrently: a second trigger sees in_progress on the
// canonical record and declines.
func (m *Machine) Process(ctx context.Context, deal *model.Deal) error {
	claimed, err := m.claim(ctx, deal)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	rec := m.enrich.Enrich(ctx, deal)
	score := m.score.Resolve(ctx, deal, rec)

	if err := m.notify.Dispatch(ctx, deal, rec, score); err != nil {
		m.finalize(ctx, deal.ID, model.StatusFailed)
		return eris.Wrapf(err, "lifecycle: dispatching deal %s", deal.ID)
	}

	m.finalize(ctx, deal.ID, model.StatusDone)
	return nil
}

// claim moves the deal to in_progress. The search index that produced the
// candidate is eventually consistent, so the status is re-checked against
// the record itself; any mismatch with the expected pre-claim state aborts
// the claim as a no-op.
func (m *Machine) claim(ctx context.Context, deal *model.Deal) (bool, error) {
	if !deal.Status.Claimable() {
		m.log.Info("claim declined: status not claimable",
			zap.String("deal_id", deal.ID),
			zap.String("status", string(deal.Status)),
		)
		return false, nil
	}

	fresh, err := m.crm.Get(ctx, deal.ID)
	if err != nil {
		return false, eris.Wrapf(err, "lifecycle: re-reading deal %s before claim", deal.ID)
	}
	if fresh.Status != deal.Status {
		m.log.Info("claim declined: record status moved since candidate was read",
			zap.String("deal_id", deal.ID),
			zap.String("expected", string(deal.Status)),
			zap.String("actual", string(fresh.Status)),
		)
		return false, nil
	}
	if !model.CanTransition(fresh.Status, model.StatusInProgress) {
		return false, nil
	}

	if err := m.crm.SetStatus(ctx, deal.ID, model.StatusInProgress); err != nil {
		return false, eris.Wrapf(err, "lifecycle: claiming deal %s", deal.ID)
	}

	m.log.Info("deal claimed",
		zap.String("deal_id", deal.ID),
		zap.String("previous_status", string(deal.Status)),
	)
	return true, nil
}

// finalize records the terminal status, retrying hard: the scan only queries
// to_start and failed, so a deal left in_progress by a lost write would never
// be retried by anything.
func (m *Machine) finalize(ctx context.Context, dealID string, status model.ProcessingStatus) {
	err := resilience.Do(ctx, m.finalizeRetry, func(ctx context.Context) error {
		return m.crm.SetStatus(ctx, dealID, status)
	})
	if err != nil {
		m.log.Error("terminal status lost after retries: deal stranded in_progress until operator reset",
			zap.String("deal_id", dealID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	m.log.Info("deal finalized",
		zap.String("deal_id", dealID),
		zap.String("status", string(status)),
	)
}
