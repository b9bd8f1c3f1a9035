package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/minesim/minesim/pkg/errors"
	"github.com/minesim/minesim/pkg/structs"
)

// Notifier delivers the single completion callback for a job.
type Notifier interface {
	Notify(ctx context.Context, job *structs.Job) error
}

// CallbackPayload is the body POSTed to a submitter's callback URL when
// their job reaches a terminal state.
type CallbackPayload struct {
	JobID       string         `json:"job_id"`
	Status      structs.Status `json:"status"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// RestyNotifier POSTs callbacks over plain HTTP. One attempt, no retry;
// whatever scheme & auth the caller baked into their URL is all there is.
type RestyNotifier struct {
	cli *resty.Client
}

func NewRestyNotifier() *RestyNotifier {
	cli := resty.New()
	cli.SetTimeout(15 * time.Second)
	cli.SetRetryCount(0)
	return &RestyNotifier{cli: cli}
}

func (n *RestyNotifier) Notify(ctx context.Context, job *structs.Job) error {
	resp, err := n.cli.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(&CallbackPayload{
			JobID:       job.ID,
			Status:      job.Status,
			ErrorDetail: job.ErrorDetail,
		}).
		Post(job.CallbackURL)
	if err != nil {
		return fmt.Errorf("%w %v", errors.ErrNotification, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w callback returned %d", errors.ErrNotification, resp.StatusCode())
	}
	return nil
}
