package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/alem-hub/alem-economy/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE ACHIEVEMENTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// AccountEvaluator evaluates the achievement catalog for one account.
// *command.EvaluateAccountHandler implements it.
type AccountEvaluator interface {
	Handle(ctx context.Context, accountID string) (*command.EvaluateAccountResult, error)
}

// EvaluateAchievementsStats extends SweepStats with evaluation counters.
type EvaluateAchievementsStats struct {
	SweepStats
	Skipped  int
	Unlocked int
}

// EvaluateAchievementsJob re-evaluates every account against the catalog so
// that new or re-activated achievements are granted without waiting for the
// account's next ledger activity.
type EvaluateAchievementsJob struct {
	pager     AccountPager
	evaluator AccountEvaluator
	observer  SweepObserver
	logger    *slog.Logger
	config    SweepConfig

	lastStats atomic.Pointer[EvaluateAchievementsStats]
}

// NewEvaluateAchievementsJob creates the job. observer may be nil.
func NewEvaluateAchievementsJob(
	pager AccountPager,
	evaluator AccountEvaluator,
	observer SweepObserver,
	logger *slog.Logger,
	config SweepConfig,
) *EvaluateAchievementsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluateAchievementsJob{
		pager:     pager,
		evaluator: evaluator,
		observer:  observer,
		logger:    logger.With(slog.String("job", "evaluate_achievements")),
		config:    config.withDefaults(),
	}
}

// Name returns the job name.
func (j *EvaluateAchievementsJob) Name() string {
	return "evaluate_achievements"
}

// Description returns a human-readable description.
func (j *EvaluateAchievementsJob) Description() string {
	return "Evaluates the achievement catalog for every unlocked account"
}

// Run executes the sweep.
func (j *EvaluateAchievementsJob) Run(ctx context.Context) error {
	j.logger.Info("starting evaluate_achievements job")

	var skipped, unlocked atomic.Int64
	sweepStats, pageErr := sweep(ctx, j.pager, j.config, j.logger, func(ctx context.Context, accountID string) error {
		res, err := j.evaluator.Handle(ctx, accountID)
		if err != nil {
			return err
		}
		if res.Skipped {
			skipped.Add(1)
		}
		if n := len(res.Unlocked); n > 0 {
			unlocked.Add(int64(n))
			j.logger.Debug("achievements unlocked by sweep",
				"account_id", accountID,
				"count", n,
			)
		}
		return nil
	})

	stats := &EvaluateAchievementsStats{
		SweepStats: *sweepStats,
		Skipped:    int(skipped.Load()),
		Unlocked:   int(unlocked.Load()),
	}
	j.lastStats.Store(stats)
	if j.observer != nil {
		j.observer.SweepCompleted(j.Name(), stats.Processed, stats.Failed, stats.CompletedAt)
	}

	j.logger.Info("evaluate_achievements job completed",
		"duration", stats.Duration.String(),
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"unlocked", stats.Unlocked,
		"failed", stats.Failed,
		"cancelled", stats.Cancelled,
	)
	return verdict(j.Name(), &stats.SweepStats, pageErr, j.config.MaxFailureRate)
}

// LastStats returns statistics from the last run, or nil.
func (j *EvaluateAchievementsJob) LastStats() *EvaluateAchievementsStats {
	return j.lastStats.Load()
}
