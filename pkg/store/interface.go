package store

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one stored artifact.
type ObjectInfo struct {
	// Path of the artifact within the store namespace.
	Path string

	// Size in bytes.
	Size int64

	// ModTime is when the artifact was last written.
	ModTime time.Time
}

// Store persists job artifacts (input logs, input configurations, output
// archives) under a job-scoped path namespace. A job's artifacts all live
// under one prefix so they can be removed together.
type Store interface {
	// Put writes the artifact at path, replacing any previous content.
	Put(ctx context.Context, path string, r io.Reader, size int64) error

	// Get returns a reader over the artifact bytes. The caller closes it.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Stat returns info for a single artifact.
	Stat(ctx context.Context, path string) (*ObjectInfo, error)

	// Delete removes one artifact. Removing an absent artifact is not an error.
	Delete(ctx context.Context, path string) error

	// DeletePrefix removes every artifact under the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// List returns artifacts under the given prefix.
	List(ctx context.Context, prefix string) ([]*ObjectInfo, error)

	Close() error
}
