package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
)

// DefaultLockTimeout bounds how long Lock waits for another process.
const DefaultLockTimeout = 10 * time.Minute

var flockFn = unix.Flock
var lockSleep = time.Sleep

var lockPollEvery = 100 * time.Millisecond

// Unlock releases a key lock.
type Unlock func() error

// LockPath returns the advisory lock file for key. Locks live outside the entry
// directory so removing an entry never races with its lock.
func (m *Manager) LockPath(key string) string {
	return filepath.Join(m.Root, locksDir, key+".lock")
}

// Lock takes the exclusive advisory lock for key, waiting up to LockTimeout.
// Locks for different keys are independent.
func (m *Manager) Lock(ctx context.Context, key string) (Unlock, error) {
	file, err := m.openLock(key)
	if err != nil {
		return nil, err
	}
	timeout := m.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if err := lockFile(ctx, file, timeout); err != nil {
		_ = file.Close()
		path := m.LockPath(key)
		return nil, ioError("lock cache entry", path, fmt.Errorf(messages.CacheLockFmt, path, err))
	}
	m.Logger.Trace("locked cache entry", "key", key)
	return releaser(file), nil
}

// TryLock takes the lock for key only if it is free right now.
func (m *Manager) TryLock(key string) (Unlock, bool, error) {
	file, err := m.openLock(key)
	if err != nil {
		return nil, false, err
	}
	err = flockFn(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return releaser(file), true, nil
	}
	_ = file.Close()
	if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
		return nil, false, nil
	}
	path := m.LockPath(key)
	return nil, false, ioError("lock cache entry", path, fmt.Errorf(messages.CacheLockFmt, path, err))
}

func (m *Manager) openLock(key string) (*os.File, error) {
	path := m.LockPath(key)
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &errs.Error{Kind: errs.IO, Op: "lock cache entry", Path: path, Err: fmt.Errorf(messages.CacheOpenLockFmt, path, err)}
	}
	return file, nil
}

func releaser(file *os.File) Unlock {
	return func() error {
		if err := flockFn(int(file.Fd()), unix.LOCK_UN); err != nil {
			_ = file.Close()
			return err
		}
		return file.Close()
	}
}

// lockFile polls for an exclusive advisory lock until timeout or cancellation.
func lockFile(ctx context.Context, file *os.File, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := flockFn(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf(messages.CacheLockTimeoutFmt, file.Name(), timeout)
		}
		lockSleep(lockPollEvery)
	}
}
