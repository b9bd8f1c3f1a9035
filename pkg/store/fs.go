package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minesim/minesim/pkg/errors"
)

// Filesystem is a Store keeping artifacts as plain files under a root
// directory. Artifact paths map directly onto relative file paths.
type Filesystem struct {
	root string
}

// NewFilesystem returns a filesystem store rooted at the given directory,
// creating it if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("%w store path not set", errors.ErrInvalidArg)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) abs(path string) (string, error) {
	// artifact paths are store-relative; refuse anything escaping the root
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", fmt.Errorf("%w empty artifact path", errors.ErrInvalidArg)
	}
	return filepath.Join(f.root, clean), nil
}

func (f *Filesystem) Put(ctx context.Context, path string, r io.Reader, size int64) error {
	dst, err := f.abs(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}

	// write to a temp name then rename so readers never see partial content
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return nil
}

func (f *Filesystem) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	src, err := f.abs(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(src)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w artifact %s", errors.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return fh, nil
}

func (f *Filesystem) Stat(ctx context.Context, path string) (*ObjectInfo, error) {
	src, err := f.abs(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(src)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w artifact %s", errors.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return &ObjectInfo{Path: path, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (f *Filesystem) Delete(ctx context.Context, path string) error {
	src, err := f.abs(path)
	if err != nil {
		return err
	}
	err = os.Remove(src)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return nil
}

func (f *Filesystem) DeletePrefix(ctx context.Context, prefix string) error {
	src, err := f.abs(prefix)
	if err != nil {
		return err
	}
	if err = os.RemoveAll(src); err != nil {
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return nil
}

func (f *Filesystem) List(ctx context.Context, prefix string) ([]*ObjectInfo, error) {
	src, err := f.abs(prefix)
	if err != nil {
		return nil, err
	}
	out := []*ObjectInfo{}
	err = filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		out = append(out, &ObjectInfo{
			Path:    filepath.ToSlash(rel),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return out, nil
}

func (f *Filesystem) Close() error {
	return nil
}

// JobPrefix is the store namespace a job's artifacts live under.
func JobPrefix(jobID string) string {
	return "jobs/" + strings.TrimSpace(jobID)
}
