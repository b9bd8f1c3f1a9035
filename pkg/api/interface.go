package api

import (
	"context"
	"io"

	"github.com/minesim/minesim/pkg/structs"
)

// API represents the functions a minesim server exposes.
type API interface {
	// Implemented in minesim/internal/core.Service

	Submit(ctx context.Context, req *structs.SubmitRequest) (*structs.Job, error)

	Get(ctx context.Context, id string) (*structs.Job, error)
	Jobs(ctx context.Context, q *structs.Query) ([]*structs.Job, error)
	Result(ctx context.Context, id string) (io.ReadCloser, error)
	Configuration(ctx context.Context, id string) (io.ReadCloser, error)

	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)

	// Worker-side lifecycle; not exposed over HTTP.
	Start(ctx context.Context, id string) error
	ReportOutcome(ctx context.Context, id string, out *structs.Outcome) error

	Close() error
}

type Server interface {
	ServeForever(api API) error
	Close() error
}
