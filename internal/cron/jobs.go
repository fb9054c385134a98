package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ContextStore is the subset of the convo store the sweep job needs.
// Defined here so the package depends on behavior, not on convo.
type ContextStore interface {
	Sweep(now time.Time) int
	Len() int
}

// DefaultSweepSchedule runs the TTL sweep every 15 minutes, a quarter of
// the default context TTL.
const DefaultSweepSchedule = "*/15 * * * *"

// ContextSweepJob expires stale thread contexts on a fixed cadence,
// independent of request traffic.
type ContextSweepJob struct {
	Store        ContextStore
	Logger       *slog.Logger       // nil = slog.Default()
	Evictions    prometheus.Counter // optional
	ScheduleExpr string             // empty = DefaultSweepSchedule
}

// Compile-time interface check.
var _ Job = (*ContextSweepJob)(nil)

// Name implements Job.
func (j *ContextSweepJob) Name() string { return "context_sweep" }

// Schedule implements Job.
func (j *ContextSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultSweepSchedule
}

// Run sweeps expired thread contexts.
func (j *ContextSweepJob) Run(_ context.Context) error {
	removed := j.Store.Sweep(time.Now())
	if j.Evictions != nil {
		j.Evictions.Add(float64(removed))
	}
	if removed > 0 {
		logger := j.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info("swept expired thread contexts", "removed", removed, "remaining", j.Store.Len())
	}
	return nil
}
