// Package storage moves servable bundles between a local directory and a
// remote location, either a filesystem path or an s3 bucket prefix.
package storage

import (
	"context"
	"io"
	"time"
)

type ObjectMeta struct {
	Name         string
	Size         int64
	LastModified time.Time
}

type Content struct {
	ContentType   string
	ContentLength int64
	Content       io.ReadCloser
}

func (c Content) Read(p []byte) (int, error) {
	return c.Content.Read(p)
}

func (c Content) Close() error {
	if c.Content != nil {
		return c.Content.Close()
	}
	return nil
}

// Provider stores objects by slash separated path.
type Provider interface {
	Put(ctx context.Context, path string, content Content) error
	Get(ctx context.Context, path string) (Content, error)
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, path string, recursive bool) ([]ObjectMeta, error)
	Remove(ctx context.Context, path string, recursive bool) error
}
