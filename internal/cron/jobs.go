package cron

import (
	"context"
	"log/slog"
	"time"
)

// SessionPruner is the subset of the session store needed by cleanup jobs.
// Declared here so the cron package does not depend on internal/session.
type SessionPruner interface {
	Prune(maxIdle time.Duration) int
}

// SessionCleanupJob drops review sessions that have been idle longer than
// MaxIdle. Pruned sessions lose their in-memory transcript and history; the
// audit archive, when configured, keeps the approval records.
type SessionCleanupJob struct {
	Store        SessionPruner
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*SessionCleanupJob)(nil)

// Name implements Job.
func (j *SessionCleanupJob) Name() string { return "session_cleanup" }

// Schedule implements Job.
func (j *SessionCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run implements Job.
func (j *SessionCleanupJob) Run(_ context.Context) error {
	if pruned := j.Store.Prune(j.MaxIdle); pruned > 0 && j.Logger != nil {
		j.Logger.Info("cron: pruned idle sessions", "count", pruned)
	}
	return nil
}
