package fsstore

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

const lockPollInterval = 25 * time.Millisecond

// LockPathFor names the advisory lock guarding path: a hidden ".lock"
// sibling, so the lock lives and dies with the state directory.
func LockPathFor(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}
	base := filepath.Base(normalized)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %s is not a file path", ErrInvalidPath, path)
	}
	return filepath.Join(filepath.Dir(normalized), "."+base+".lock"), nil
}

// WithFileLock runs fn while holding the exclusive lock for the state file
// at path. Waiting for a busy lock gives up when ctx is done.
func WithFileLock(ctx context.Context, path string, fn func() error) error {
	if fn == nil {
		return nil
	}
	lockPath, err := LockPathFor(path)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := EnsureDir(filepath.Dir(lockPath), defaultDirPerm); err != nil {
		return err
	}
	return withLockFile(ctx, lockPath, fn)
}

// awaitLock sleeps one poll interval, or fails once ctx is done.
func awaitLock(ctx context.Context, lockPath string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrLockTimeout, lockPath, ctx.Err())
	case <-time.After(lockPollInterval):
		return nil
	}
}
