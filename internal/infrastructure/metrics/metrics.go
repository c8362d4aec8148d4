// Package metrics exposes ledger, achievement, command and job metrics to
// Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alem-hub/alem-economy/internal/domain/ledger"
	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

const namespace = "economy"

// Collector implements command.Metrics and the job observers.
type Collector struct {
	entries       *prometheus.CounterVec
	volume        *prometheus.CounterVec
	unlocks       *prometheus.CounterVec
	commands      *prometheus.HistogramVec
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	sweepAccounts *prometheus.GaugeVec
	sweepLastRun  *prometheus.GaugeVec
}

// New registers all metrics with reg. Passing prometheus.DefaultRegisterer
// exposes them on promhttp.Handler().
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		entries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entries appended, by currency and kind.",
		}, []string{"currency", "kind"}),
		volume: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "volume_total",
			Help:      "Absolute amount moved in smallest units, by currency and kind.",
		}, []string{"currency", "kind"}),
		unlocks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "achievements",
			Name:      "unlocked_total",
			Help:      "Achievements unlocked, by code and whether awarded by hand.",
		}, []string{"code", "manual"}),
		commands: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "duration_seconds",
			Help:      "Command latency including lock wait and retries.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"command", "outcome"}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job executions, by job and outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Scheduled job duration.",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"job"}),
		sweepAccounts: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "accounts",
			Help:      "Accounts handled by the last sweep, by job and status.",
		}, []string{"job", "status"}),
		sweepLastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix time the last sweep finished.",
		}, []string{"job"}),
	}
}

// EntryRecorded counts an appended ledger entry.
func (c *Collector) EntryRecorded(e *ledger.Entry) {
	if e == nil {
		return
	}
	labels := prometheus.Labels{"currency": string(e.Currency), "kind": string(e.Kind)}
	c.entries.With(labels).Inc()
	amount := e.Amount
	if amount < 0 {
		amount = -amount
	}
	c.volume.With(labels).Add(float64(amount))
}

// AchievementUnlocked counts an unlock.
func (c *Collector) AchievementUnlocked(code string, manual bool) {
	m := "false"
	if manual {
		m = "true"
	}
	c.unlocks.WithLabelValues(code, m).Inc()
}

// CommandCompleted observes command latency.
func (c *Collector) CommandCompleted(name string, err error, elapsed time.Duration) {
	c.commands.WithLabelValues(name, Outcome(err)).Observe(elapsed.Seconds())
}

// JobCompleted observes a scheduled job run.
func (c *Collector) JobCompleted(job string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.jobRuns.WithLabelValues(job, outcome).Inc()
	c.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// SweepCompleted records the account counts of a finished sweep.
func (c *Collector) SweepCompleted(job string, processed, failed int, finishedAt time.Time) {
	c.sweepAccounts.WithLabelValues(job, "processed").Set(float64(processed))
	c.sweepAccounts.WithLabelValues(job, "failed").Set(float64(failed))
	c.sweepLastRun.WithLabelValues(job).Set(float64(finishedAt.Unix()))
}

// Outcome classifies a command error for labelling: ok, rejected for caller
// or business-rule errors, conflict for exhausted retries, error otherwise.
func Outcome(err error) string {
	var de *shared.DomainError
	switch {
	case err == nil:
		return "ok"
	case shared.IsRetryable(err):
		return "conflict"
	case errors.As(err, &de):
		return "rejected"
	default:
		return "error"
	}
}
