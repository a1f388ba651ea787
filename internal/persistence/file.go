package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	fileBackend = "file"

	// lockRetryDelay is the wait between attempts to take the save lock.
	lockRetryDelay = 10 * time.Millisecond

	// lockStaleAfter is the age at which a leftover lock from a crashed
	// process is broken.
	lockStaleAfter = 30 * time.Second
)

// FileStore persists the cache blob in a plaintext file. Saves write a
// temporary file in the same directory and rename it over the target, so
// readers always see a complete blob; cross-process saves are serialized
// through an exclusive lock file next to the target.
//
// The file is plaintext. It is a fallback for platforms without a secure
// store and is unsuitable for secrets that must survive local inspection.
type FileStore struct {
	path string
}

// NewFileStore resolves the storage location, creating parent directories
// as needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, &CreationError{Backend: fileBackend, Err: errors.New("path is required")}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, &CreationError{Backend: fileBackend, Err: err}
	}
	return &FileStore{path: path}, nil
}

// Load implements Persistence. Thanks to the rename-based save it is safe
// to run concurrently with another process's save without any lock.
func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // First run.
		}
		return nil, &ReadError{Backend: fileBackend, Err: err}
	}
	return blob, nil
}

// Save implements Persistence.
func (s *FileStore) Save(ctx context.Context, blob []byte) error {
	release, err := s.acquireLock(ctx)
	if err != nil {
		return &WriteError{Backend: fileBackend, Err: err}
	}
	defer release()

	if err := s.replace(blob); err != nil {
		return &WriteError{Backend: fileBackend, Err: err}
	}
	return nil
}

// replace writes blob to a temporary file in the target directory and
// renames it into place. Rename within one filesystem is atomic, which is
// what gives readers the all-old-or-all-new guarantee.
func (s *FileStore) replace(blob []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // No-op after a successful rename.
	}()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("restricting temp file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// acquireLock takes the exclusive save lock, waiting until it is free, the
// context is done, or a stale lock is broken.
func (s *FileStore) acquireLock(ctx context.Context) (func(), error) {
	lockPath := s.path + ".lock"
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			_ = os.Remove(lockPath)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock file: %w", ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}
}
