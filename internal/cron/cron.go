// Package cron schedules periodic background maintenance, currently the
// pruning of idle review sessions.
package cron

import "context"

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier for the job, used for logging and
	// duplicate registration checks.
	Name() string

	// Schedule returns a 5-field cron expression (e.g. "*/5 * * * *").
	Schedule() string

	// Run executes the job. Implementations should honor ctx cancellation.
	Run(ctx context.Context) error
}
