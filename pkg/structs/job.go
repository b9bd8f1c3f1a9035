package structs

// Job is one discovery request: an uploaded event log (plus optional
// configuration) working its way through PENDING -> RUNNING -> some end state,
// until the sweeper removes it after its retention window.
type Job struct {
	// ID is a unique identifier for this job, generated at submission.
	ID string `json:"id"`

	// Status is the current lifecycle state of this job.
	Status Status `json:"status"`

	// ETag is used when updating a job for optimistic locking.
	ETag string `json:"etag"`

	// Attempts is the number of times this job has been handed to the queue.
	// Bumped by the reconciliation sweep on re-dispatch.
	Attempts int64 `json:"attempts"`

	// SubmittedAt is when the job record was created, unix time in seconds.
	SubmittedAt int64 `json:"submitted_at"`

	// StartedAt is when a worker picked the job up (0 until then).
	StartedAt int64 `json:"started_at,omitempty"`

	// CompletedAt is when the job reached SUCCEEDED or FAILED (0 until then).
	CompletedAt int64 `json:"completed_at,omitempty"`

	// ExpiresAt is when the job and its artifacts become eligible for
	// deletion. Always set: computed at submission, recomputed at completion.
	ExpiresAt int64 `json:"expires_at"`

	// UpdatedAt is the time of the last transition, unix time in seconds.
	UpdatedAt int64 `json:"updated_at"`

	// InputLogPath is the stored event log, owned by this job.
	InputLogPath string `json:"input_log_path"`

	// InputConfigPath is the stored configuration, if one was uploaded.
	InputConfigPath string `json:"input_config_path,omitempty"`

	// OutputPath is the produced artifact. Set iff Status == SUCCEEDED.
	OutputPath string `json:"output_path,omitempty"`

	// ErrorDetail is a captured engine error summary. Set iff Status == FAILED.
	ErrorDetail string `json:"error_detail,omitempty"`

	// CallbackURL, if set, gets a single best-effort POST on terminal state.
	CallbackURL string `json:"callback_url,omitempty"`

	// QueueTaskID is the ID the queue gave us when the job was enqueued.
	QueueTaskID string `json:"queue_task_id,omitempty"`

	// Notified records that the callback was attempted (at most once).
	Notified bool `json:"notified,omitempty"`

	// StatusURL and ArchiveURL are API links filled in by the server when a
	// job goes over the wire. Never persisted; ArchiveURL only on SUCCEEDED.
	StatusURL  string `json:"status_url,omitempty"`
	ArchiveURL string `json:"archive_url,omitempty"`
}

// SubmitRequest carries a parsed submission into the lifecycle manager.
// Log is mandatory; Config is the raw uploaded configuration (may be nil).
type SubmitRequest struct {
	LogName     string
	Log         []byte
	Config      []byte
	CallbackURL string
}

// Outcome is what a worker reports back for a job it ran.
// Exactly one of OutputPath / ErrorDetail should be set, matching Status.
type Outcome struct {
	Status      Status `json:"status"`
	OutputPath  string `json:"output_path,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}
