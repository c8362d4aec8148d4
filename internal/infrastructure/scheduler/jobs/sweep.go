// Package jobs contains the scheduled jobs of the economy worker. Every job
// walks all accounts page by page and handles each account in its own lock
// and transaction, so one bad account never aborts the sweep.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alem-hub/alem-economy/internal/application/uow"
)

// AccountPager lists account IDs in ascending order.
type AccountPager interface {
	ListIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}

// UnitOfWorkPager reads account pages through a unit of work, one short
// transaction per page.
type UnitOfWorkPager struct {
	Unit uow.UnitOfWork
}

// ListIDs implements AccountPager.
func (p UnitOfWorkPager) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	var ids []string
	err := p.Unit.Do(ctx, func(ctx context.Context, tx uow.Tx) error {
		var err error
		ids, err = tx.Accounts().ListIDs(ctx, afterID, limit)
		return err
	})
	return ids, err
}

// SweepObserver receives the outcome of every finished sweep.
type SweepObserver interface {
	SweepCompleted(job string, processed, failed int, finishedAt time.Time)
}

// SweepConfig contains configuration shared by sweep jobs.
type SweepConfig struct {
	// Concurrency is the number of accounts handled in parallel.
	Concurrency int

	// BatchSize is the number of account IDs fetched per page.
	BatchSize int

	// Timeout is the maximum duration for the entire sweep.
	Timeout time.Duration

	// MaxFailureRate fails the run when more than this share of accounts failed.
	MaxFailureRate float64
}

// DefaultSweepConfig returns sensible defaults.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Concurrency:    4,
		BatchSize:      200,
		Timeout:        30 * time.Minute,
		MaxFailureRate: 0.5,
	}
}

func (c SweepConfig) withDefaults() SweepConfig {
	d := DefaultSweepConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxFailureRate <= 0 {
		c.MaxFailureRate = d.MaxFailureRate
	}
	return c
}

// SweepStats contains statistics from a sweep run.
type SweepStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Processed   int
	Failed      int
	Cancelled   bool
	Errors      []AccountError
}

// AccountError records one account that could not be handled.
type AccountError struct {
	AccountID  string
	Error      error
	OccurredAt time.Time
}

// maxRecordedErrors caps SweepStats.Errors; the Failed count stays exact.
const maxRecordedErrors = 100

// sweep calls handle for every account. Cancellation is checked between
// accounts; handle errors are logged and counted, never returned.
func sweep(
	ctx context.Context,
	pager AccountPager,
	config SweepConfig,
	logger *slog.Logger,
	handle func(ctx context.Context, accountID string) error,
) (*SweepStats, error) {
	stats := &SweepStats{StartedAt: time.Now()}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		semaphore = make(chan struct{}, config.Concurrency)
		after     string
		pageErr   error
	)

pages:
	for {
		if ctx.Err() != nil {
			break
		}
		ids, err := pager.ListIDs(ctx, after, config.BatchSize)
		if err != nil {
			if ctx.Err() == nil {
				pageErr = fmt.Errorf("failed to list accounts after %q: %w", after, err)
			}
			break
		}

		for _, id := range ids {
			select {
			case <-ctx.Done():
				break pages
			case semaphore <- struct{}{}:
			}

			wg.Add(1)
			go func(accountID string) {
				defer wg.Done()
				defer func() { <-semaphore }()

				err := handle(ctx, accountID)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					stats.Failed++
					if len(stats.Errors) < maxRecordedErrors {
						stats.Errors = append(stats.Errors, AccountError{
							AccountID:  accountID,
							Error:      err,
							OccurredAt: time.Now(),
						})
					}
					logger.Error("account failed during sweep",
						"account_id", accountID,
						"error", err,
					)
					return
				}
				stats.Processed++
			}(id)
		}

		if len(ids) < config.BatchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	wg.Wait()
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	if err := ctx.Err(); err != nil {
		stats.Cancelled = true
		if pageErr == nil {
			pageErr = fmt.Errorf("sweep interrupted after %d accounts: %w", stats.Processed+stats.Failed, err)
		}
	}
	return stats, pageErr
}

// verdict turns a finished sweep into the job's error.
func verdict(name string, stats *SweepStats, pageErr error, maxFailureRate float64) error {
	if pageErr != nil {
		return fmt.Errorf("%s: %w", name, pageErr)
	}
	total := stats.Processed + stats.Failed
	if total > 0 && float64(stats.Failed)/float64(total) > maxFailureRate {
		return fmt.Errorf("%s failed for %d of %d accounts", name, stats.Failed, total)
	}
	return nil
}
