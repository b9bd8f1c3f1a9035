package structs

import (
	"time"
)

// Options tune the lifecycle manager and its background sweeps.
// Zero sweep frequencies disable the corresponding background loop
// (the usual setup for pure API serving processes).
type Options struct {
	// Retention is how long a job & its artifacts are kept after
	// completion (or after submission, if the job never completes).
	Retention time.Duration

	// SweepFrequency is how often the expiry sweeper runs.
	SweepFrequency time.Duration

	// ReconcileFrequency is how often the reconciliation sweep looks for
	// under-dispatched or stuck jobs.
	ReconcileFrequency time.Duration

	// DispatchGrace is how old a PENDING job must be before the
	// reconciliation sweep considers its dispatch lost.
	DispatchGrace time.Duration

	// MaxJobRuntime is the absolute maximum a job may sit in RUNNING.
	// Past this the reconciliation sweep force-fails it with a timeout.
	MaxJobRuntime time.Duration

	// MaxDispatchAttempts bounds how many times a job is handed to the
	// queue before the reconciliation sweep gives up and fails it.
	MaxDispatchAttempts int64

	// OrphanAge is the minimum age (by store mtime) for artifacts with no
	// job record before the fallback sweep removes them.
	OrphanAge time.Duration

	// StrictConfig rejects unrecognized configuration sections at
	// submission instead of ignoring them.
	StrictConfig bool
}
