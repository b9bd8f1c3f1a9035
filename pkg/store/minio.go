package store

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/minesim/minesim/pkg/errors"
)

// S3 is a Store backed by any S3 compatible object storage (minio, AWS).
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 returns an S3 store for the given endpoint and bucket, creating
// the bucket if it doesn't exist.
func NewS3(ctx context.Context, opts *Options) (*S3, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}

	s := &S3{client: client, bucket: opts.Bucket}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	if !exists {
		err = client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
		}
	}

	return s, nil
}

func (s *S3) Put(ctx context.Context, path string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, path, r, size, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	// GetObject is lazy; Stat forces the first request so missing objects
	// surface here rather than on first Read
	if _, err = obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w artifact %s", errors.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return obj, nil
}

func (s *S3) Stat(ctx context.Context, path string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w artifact %s", errors.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return &ObjectInfo{Path: path, Size: info.Size, ModTime: info.LastModified}, nil
}

func (s *S3) Delete(ctx context.Context, path string) error {
	err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return nil
}

func (s *S3) DeletePrefix(ctx context.Context, prefix string) error {
	objs := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objs {
		if obj.Err != nil {
			return fmt.Errorf("%w %v", errors.ErrStorage, obj.Err)
		}
		err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{})
		if err != nil {
			return fmt.Errorf("%w %v", errors.ErrStorage, err)
		}
	}
	return nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]*ObjectInfo, error) {
	out := []*ObjectInfo{}
	objs := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objs {
		if obj.Err != nil {
			return nil, fmt.Errorf("%w %v", errors.ErrStorage, obj.Err)
		}
		out = append(out, &ObjectInfo{Path: obj.Key, Size: obj.Size, ModTime: obj.LastModified})
	}
	return out, nil
}

func (s *S3) Close() error {
	return nil
}

// New builds a Store from Options: filesystem when Path is set, otherwise S3.
func New(ctx context.Context, opts *Options) (Store, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w store options not set", errors.ErrInvalidArg)
	}
	if opts.Path != "" {
		return NewFilesystem(opts.Path)
	}
	return NewS3(ctx, opts)
}
