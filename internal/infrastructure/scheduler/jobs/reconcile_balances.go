package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/alem-hub/alem-economy/internal/domain/ledger"
)

// BalanceReconciler recomputes the cached balances of one account.
// *command.ReconcileHandler implements it.
type BalanceReconciler interface {
	Handle(ctx context.Context, accountID string) ([]ledger.Reconciliation, error)
}

// ReconcileBalancesStats extends SweepStats with the number of corrected caches.
type ReconcileBalancesStats struct {
	SweepStats
	Drifted int
}

// ReconcileBalancesJob rebuilds every balance cache from the ledger entries.
// Any drift it finds is corrected and logged by the reconciler.
type ReconcileBalancesJob struct {
	pager      AccountPager
	reconciler BalanceReconciler
	observer   SweepObserver
	logger     *slog.Logger
	config     SweepConfig

	lastStats atomic.Pointer[ReconcileBalancesStats]
}

// NewReconcileBalancesJob creates the job. observer may be nil.
func NewReconcileBalancesJob(
	pager AccountPager,
	reconciler BalanceReconciler,
	observer SweepObserver,
	logger *slog.Logger,
	config SweepConfig,
) *ReconcileBalancesJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileBalancesJob{
		pager:      pager,
		reconciler: reconciler,
		observer:   observer,
		logger:     logger.With(slog.String("job", "reconcile_balances")),
		config:     config.withDefaults(),
	}
}

// Name returns the job name.
func (j *ReconcileBalancesJob) Name() string {
	return "reconcile_balances"
}

// Description returns a human-readable description.
func (j *ReconcileBalancesJob) Description() string {
	return "Recomputes cached balances from ledger entries for every account"
}

// Run executes the sweep.
func (j *ReconcileBalancesJob) Run(ctx context.Context) error {
	j.logger.Info("starting reconcile_balances job")

	var drifted atomic.Int64
	sweepStats, pageErr := sweep(ctx, j.pager, j.config, j.logger, func(ctx context.Context, accountID string) error {
		recs, err := j.reconciler.Handle(ctx, accountID)
		if err != nil {
			return err
		}
		for _, r := range recs {
			if r.Drifted() {
				drifted.Add(1)
			}
		}
		return nil
	})

	stats := &ReconcileBalancesStats{SweepStats: *sweepStats, Drifted: int(drifted.Load())}
	j.lastStats.Store(stats)
	if j.observer != nil {
		j.observer.SweepCompleted(j.Name(), stats.Processed, stats.Failed, stats.CompletedAt)
	}

	level := slog.LevelInfo
	if stats.Drifted > 0 {
		level = slog.LevelWarn
	}
	j.logger.Log(ctx, level, "reconcile_balances job completed",
		"duration", stats.Duration.String(),
		"processed", stats.Processed,
		"drifted", stats.Drifted,
		"failed", stats.Failed,
	)
	return verdict(j.Name(), &stats.SweepStats, pageErr, j.config.MaxFailureRate)
}

// LastStats returns statistics from the last run, or nil.
func (j *ReconcileBalancesJob) LastStats() *ReconcileBalancesStats {
	return j.lastStats.Load()
}
