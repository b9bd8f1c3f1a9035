package structs

const (
	queryLimitDefault = 1000
	queryLimitMax     = 10000
)

type Query struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Filters
	JobIDs   []string `json:"job_ids,omitempty"`
	Statuses []Status `json:"statuses,omitempty"`

	// ExpiresBefore matches jobs whose expires_at is at or before the given
	// unix time. Used by the expiry sweeper.
	ExpiresBefore int64 `json:"expires_before,omitempty"`

	// UpdatedBefore matches jobs whose last transition was at or before the
	// given unix time. Used by the reconciliation sweep to find stale jobs.
	UpdatedBefore int64 `json:"updated_before,omitempty"`
}

func (q *Query) Sanitize() {
	if q.Limit <= 0 {
		q.Limit = queryLimitDefault
	}
	if q.Limit > queryLimitMax {
		q.Limit = queryLimitMax
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if len(q.JobIDs) == 0 {
		q.JobIDs = nil
	}
	if len(q.Statuses) == 0 {
		q.Statuses = nil
	}
}
