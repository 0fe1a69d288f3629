package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// ErrPublishNotConfigured is returned when publishing is attempted
// without a remote store.
var ErrPublishNotConfigured = errors.New("publish target is not configured")

// DefaultDirName is the directory created under os.TempDir when no output
// directory is configured.
const DefaultDirName = "coverkit"

// LocalStorage implements Storage on local disk.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a new LocalStorage rooted at dir.
// If dir is empty, a "coverkit" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), DefaultDirName)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &LocalStorage{dir: dir}, nil
}

// Dir returns the output directory path.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Save writes data to a uniquely named file in the output directory.
func (s *LocalStorage) Save(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	f, err := os.CreateTemp(s.dir, stem+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write output file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close output file: %w", err)
	}

	return fileName, nil
}

// Open returns a reader for path.
func (s *LocalStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is produced by Save
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	return f, nil
}

// Cleanup removes the specified files, returning the first error encountered.
func (s *LocalStorage) Cleanup(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove output file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Publish is not supported by LocalStorage and returns ErrPublishNotConfigured.
func (s *LocalStorage) Publish(_ context.Context, _ string, _ []byte) (string, error) {
	return "", ErrPublishNotConfigured
}
