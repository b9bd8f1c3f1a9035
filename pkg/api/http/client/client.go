package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/minesim/minesim/pkg/api/http/common"
	"github.com/minesim/minesim/pkg/errors"
	"github.com/minesim/minesim/pkg/structs"
)

// Client is a typed HTTP client for the discovery API.
type Client struct {
	http *resty.Client
}

func New(address string) *Client {
	return &Client{
		http: resty.New().SetBaseURL(strings.TrimRight(address, "/")),
	}
}

// Submit uploads an event log (and optional configuration) and returns the
// accepted job. The discovery runs asynchronously; poll Get or pass a
// callback URL to hear about completion.
func (c *Client) Submit(ctx context.Context, req *structs.SubmitRequest) (*structs.Job, error) {
	out := &structs.Job{}
	r := c.http.R().SetContext(ctx).SetResult(out).
		SetFileReader(common.FieldEventLog, req.LogName, bytes.NewReader(req.Log))
	if len(req.Config) > 0 {
		r = r.SetFileReader(common.FieldConfiguration, "configuration.yaml", bytes.NewReader(req.Config))
	}
	if req.CallbackURL != "" {
		r = r.SetFormData(map[string]string{common.FieldCallbackURL: req.CallbackURL})
	}

	resp, err := r.Post(common.API_DISCOVERIES)
	if err != nil {
		return nil, err
	}
	return out, checkStatus(resp)
}

func (c *Client) Get(ctx context.Context, id string) (*structs.Job, error) {
	out := &structs.Job{}
	resp, err := c.http.R().SetContext(ctx).SetResult(out).
		SetPathParam("id", id).
		Get(common.API_DISCOVERY)
	if err != nil {
		return nil, err
	}
	return out, checkStatus(resp)
}

func (c *Client) Jobs(ctx context.Context, q *structs.Query) ([]*structs.Job, error) {
	q.Sanitize()
	out := []*structs.Job{}
	r := c.http.R().SetContext(ctx).SetResult(&out).
		SetQueryParam("limit", strconv.Itoa(q.Limit)).
		SetQueryParam("offset", strconv.Itoa(q.Offset))
	for _, id := range q.JobIDs {
		r = r.SetQueryParamsFromValues(map[string][]string{"job_ids": {id}})
	}
	for _, s := range q.Statuses {
		r = r.SetQueryParamsFromValues(map[string][]string{"statuses": {string(s)}})
	}

	resp, err := r.Get(common.API_DISCOVERIES)
	if err != nil {
		return nil, err
	}
	return out, checkStatus(resp)
}

// Result streams the result archive of a finished discovery to w.
func (c *Client) Result(ctx context.Context, id string, w io.Writer) error {
	resp, err := c.http.R().SetContext(ctx).SetDoNotParseResponse(true).
		SetPathParam("id", id).
		Get(common.API_RESULT)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()

	err = checkStatus(resp)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, body)
	return err
}

// Configuration returns a job's stored configuration file bytes.
func (c *Client) Configuration(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).
		SetPathParam("id", id).
		Get(common.API_CONFIGURATION)
	if err != nil {
		return nil, err
	}
	return resp.Body(), checkStatus(resp)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).
		SetPathParam("id", id).
		Delete(common.API_DISCOVERY)
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

func (c *Client) DeleteAll(ctx context.Context) (int64, error) {
	out := &common.DeleteResponse{}
	resp, err := c.http.R().SetContext(ctx).SetResult(out).
		Delete(common.API_DISCOVERIES)
	if err != nil {
		return 0, err
	}
	return out.Deleted, checkStatus(resp)
}

func (c *Client) Schema(ctx context.Context) ([]string, error) {
	out := &common.SchemaResponse{}
	resp, err := c.http.R().SetContext(ctx).SetResult(out).
		Get(common.API_SCHEMA)
	if err != nil {
		return nil, err
	}
	return out.Sections, checkStatus(resp)
}

// checkStatus maps error responses back onto the service's sentinel errors
// so callers can errors.Is against the same set server-side code uses.
func checkStatus(resp *resty.Response) error {
	switch {
	case resp.StatusCode() < 400:
		return nil
	case resp.StatusCode() == 404:
		return fmt.Errorf("%w %s", errors.ErrNotFound, resp.String())
	case resp.StatusCode() == 425:
		return fmt.Errorf("%w %s", errors.ErrNotReady, resp.String())
	case resp.StatusCode() == 400:
		return fmt.Errorf("%w %s", errors.ErrValidation, resp.String())
	case resp.StatusCode() == 409:
		return fmt.Errorf("%w %s", errors.ErrInvalidState, resp.String())
	default:
		return fmt.Errorf("bad status code %d, returned %s", resp.StatusCode(), resp.String())
	}
}
