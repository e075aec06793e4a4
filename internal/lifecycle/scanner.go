package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
)

// Scanner is the recovery path: it periodically queries the CRM for deals
// still in to_start or failed and re-drives each through the normal claim and
// process path. Deals another worker holds in_progress never appear in the
// query, so the scan cannot steal live work.
type Scanner struct {
	machine *Machine
	cfg     config.ScanConfig
}

// NewScanner creates the periodic recovery scanner.
func NewScanner(machine *Machine, cfg config.ScanConfig) *Scanner {
	return &Scanner{machine: machine, cfg: cfg}
}

// Run executes one scan immediately, then repeats on the configured interval.
// It blocks until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	interval := s.cfg.Interval()

	log := zap.L().With(zap.String("component", "lifecycle.scanner"))
	log.Info("starting recovery scanner",
		zap.Duration("interval", interval),
		zap.Int("batch_limit", s.cfg.BatchLimit),
	)

	s.Scan(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("recovery scanner stopped")
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan runs a single recovery pass. Failures on individual deals are logged
// and do not stop the batch; the deal lands in failed and is retried on the
// next pass.
func (s *Scanner) Scan(ctx context.Context) {
	log := zap.L().With(zap.String("component", "lifecycle.scanner"))

	deals, err := s.machine.crm.Pending(ctx, s.cfg.BatchLimit)
	if err != nil {
		log.Error("recovery scan: query failed", zap.Error(err))
		return
	}
	if len(deals) == 0 {
		log.Debug("recovery scan: nothing pending")
		return
	}

	processed, failed := 0, 0
	for _, deal := range deals {
		if ctx.Err() != nil {
			return
		}
		if err := s.machine.Process(ctx, deal); err != nil {
			failed++
			log.Error("recovery scan: deal processing failed",
				zap.String("deal_id", deal.ID),
				zap.Error(err),
			)
			continue
		}
		processed++
	}

	log.Info("recovery scan complete",
		zap.Int("candidates", len(deals)),
		zap.Int("processed", processed),
		zap.Int("failed", failed),
	)
}
