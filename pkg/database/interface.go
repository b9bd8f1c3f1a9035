package database

import (
	"context"

	"github.com/minesim/minesim/pkg/structs"
)

// IDTag pins the exact record & version an update applies to.
type IDTag struct {
	ID   string
	ETag string
}

// JobUpdate is a partial update applied to a job record. Nil fields are
// left untouched.
type JobUpdate struct {
	Status      *structs.Status
	Attempts    *int64
	StartedAt   *int64
	CompletedAt *int64
	ExpiresAt   *int64
	OutputPath  *string
	ErrorDetail *string
	QueueTaskID *string
	Notified    *bool
}

// Database is the job repository. Every update is a single atomic
// compare-and-set keyed on (id, etag) or (id, current status), so
// concurrent writers can't race a record into an inconsistent state.
type Database interface {
	// InsertJob creates the job record. The id must be unused.
	InsertJob(ctx context.Context, j *structs.Job) error

	// Jobs returns jobs matching the given query.
	Jobs(ctx context.Context, q *structs.Query) ([]*structs.Job, error)

	// UpdateJob applies upd to the job iff its etag still matches tag.ETag,
	// writing newTag as the new version. Returns rows altered (0 or 1).
	UpdateJob(ctx context.Context, tag *IDTag, newTag string, upd *JobUpdate) (int64, error)

	// TransitionJob applies upd to the job iff its current status is one of
	// from. This is the status CAS used for lifecycle transitions; a
	// duplicate or late transition simply alters 0 rows.
	TransitionJob(ctx context.Context, id string, from []structs.Status, newTag string, upd *JobUpdate) (int64, error)

	// DeleteJobs removes the given job records. Absent ids are not an error.
	DeleteJobs(ctx context.Context, ids []string) (int64, error)

	Close() error
}
