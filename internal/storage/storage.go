// Package storage keeps rendered outputs on local disk and optionally
// publishes them to S3.
package storage

import (
	"context"
	"io"
)

// Storage defines where rendered outputs are written.
type Storage interface {
	// Save writes data to a new local file and returns its path. The name is
	// used as a hint; its extension is preserved.
	Save(ctx context.Context, name string, data io.Reader) (path string, err error)

	// Open returns a reader for a file written by Save.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Cleanup removes the specified files.
	// It continues even if some files fail to delete.
	Cleanup(ctx context.Context, paths []string) error

	// Publish uploads data under key and returns its public URL.
	// Returns ErrPublishNotConfigured when no remote store is configured.
	Publish(ctx context.Context, key string, data []byte) (url string, err error)
}
