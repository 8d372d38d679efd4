//go:build windows

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// withLockFile treats the existence of lockPath as the lock. It is created
// exclusively and removed when fn returns.
func withLockFile(ctx context.Context, lockPath string, fn func() error) error {
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, defaultFilePerm)
		if err == nil {
			_ = f.Close()
			defer os.Remove(lockPath)
			return fn()
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: create %s: %v", ErrLockUnavailable, lockPath, err)
		}
		if err := awaitLock(ctx, lockPath); err != nil {
			return err
		}
	}
}
