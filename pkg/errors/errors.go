package errors

import (
	"fmt"
)

var (
	// ErrValidation covers malformed or missing submission input. Never retried.
	ErrValidation = fmt.Errorf("validation failed")

	// ErrNotFound means the job doesn't exist, or exists but is past its expiry.
	ErrNotFound = fmt.Errorf("not found")

	// ErrNotReady means the job exists but its result isn't available yet.
	ErrNotReady = fmt.Errorf("not ready")

	// ErrStorage means the artifact store or job repository was unavailable.
	ErrStorage = fmt.Errorf("storage unavailable")

	// ErrDispatch means the queue rejected an enqueue. The job stays PENDING
	// and is recovered by the reconciliation sweep.
	ErrDispatch = fmt.Errorf("dispatch failed")

	// ErrEngine means the discovery engine raised during execution.
	// This is a job outcome, not a system fault.
	ErrEngine = fmt.Errorf("engine error")

	// ErrNotification means a callback delivery failed. Logged only.
	ErrNotification = fmt.Errorf("notification failed")

	ErrInvalidState = fmt.Errorf("invalid state")
	ErrETagMismatch = fmt.Errorf("etag mismatch")
	ErrInvalidArg   = fmt.Errorf("invalid arg")
)
