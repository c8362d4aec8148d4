package app

import (
	"fmt"

	"github.com/alem-hub/alem-economy/internal/infrastructure/scheduler"
	"github.com/alem-hub/alem-economy/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/alem-economy/pkg/logger"
)

// NewScheduler registers the periodic sweeps. Job outcomes feed the metrics
// collector.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	sc := a.Config.Scheduler

	s, err := scheduler.New(scheduler.Config{
		Logger:         a.Logger,
		Timezone:       a.Config.App.Location,
		MaxHistorySize: 500,
		StopTimeout:    a.Config.App.ShutdownTimeout,
	})
	if err != nil {
		return nil, err
	}

	sweepCfg := jobs.SweepConfig{
		Concurrency:    sc.Concurrency,
		BatchSize:      sc.BatchSize,
		Timeout:        sc.JobTimeout,
		MaxFailureRate: sc.MaxFailureRate,
	}
	pager := jobs.UnitOfWorkPager{Unit: a.Unit}
	jobLog := a.Logger.With(logger.Component("jobs"))

	evaluate := jobs.NewEvaluateAchievementsJob(pager, a.Commands.Evaluate, a.Metrics, jobLog, sweepCfg)
	reconcile := jobs.NewReconcileBalancesJob(pager, a.Commands.Reconcile, a.Metrics, jobLog, sweepCfg)

	for _, reg := range []struct {
		job  scheduler.Job
		spec string
	}{
		{evaluate, sc.EvaluateSchedule},
		{reconcile, sc.ReconcileSchedule},
	} {
		schedule, err := scheduler.ParseSchedule(reg.spec)
		if err != nil {
			return nil, fmt.Errorf("schedule for %s: %w", reg.job.Name(), err)
		}
		if err := s.Register(reg.job, schedule); err != nil {
			return nil, err
		}
	}

	s.OnJobComplete(func(r scheduler.JobResult) {
		a.Metrics.JobCompleted(r.JobName, r.Duration, r.Error)
	})
	return s, nil
}
