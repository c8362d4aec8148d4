package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Schedule defines when a job should run.
type Schedule interface {
	// Definition returns the gocron job definition.
	Definition() gocron.JobDefinition

	// String returns a human-readable representation of the schedule.
	String() string
}

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Definition implements Schedule.
func (s *IntervalSchedule) Definition() gocron.JobDefinition {
	return gocron.DurationJob(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// CronSchedule schedules a job with a standard 5-field cron expression,
// e.g. "0 3 * * *" for every day at 03:00 in the scheduler's timezone.
type CronSchedule struct {
	Expression string
}

// NewCronSchedule creates a new CronSchedule. The expression is validated
// when the job is registered.
func NewCronSchedule(expr string) *CronSchedule {
	return &CronSchedule{Expression: expr}
}

// Definition implements Schedule.
func (s *CronSchedule) Definition() gocron.JobDefinition {
	return gocron.CronJob(s.Expression, false)
}

func (s *CronSchedule) String() string {
	return s.Expression
}

// ParseSchedule accepts either a Go duration ("15m") or a cron expression.
func ParseSchedule(spec string) (Schedule, error) {
	if spec == "" {
		return nil, ErrNilSchedule
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("interval must be positive, got %s", spec)
		}
		return NewIntervalSchedule(d), nil
	}
	return NewCronSchedule(spec), nil
}
