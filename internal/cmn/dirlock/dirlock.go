// Package dirlock provides an advisory lock on a directory so that only one
// training process writes checkpoints into it at a time.
package dirlock

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/pggan-go/pggan/internal/cmn/fileutil"
)

// LockFileName is the name of the lock file created inside the target directory.
const LockFileName = ".pggan.lock"

var (
	// ErrLockConflict indicates the lock is held by another process
	ErrLockConflict = errors.New("directory is locked by another process")

	// ErrNotLocked indicates unlock was called but lock is not held
	ErrNotLocked = errors.New("directory is not locked")
)

// DirLock represents a directory lock instance
type DirLock interface {
	// TryLock attempts to acquire lock without blocking.
	// Returns ErrLockConflict if lock is held by another process.
	TryLock() error

	// Lock acquires lock, blocking until available or context is cancelled
	Lock(ctx context.Context) error

	// Unlock releases the lock
	Unlock() error

	// IsHeldByMe checks if this instance holds the lock
	IsHeldByMe() bool
}

// LockOptions configures lock behavior
type LockOptions struct {
	// RetryInterval for lock acquisition attempts (default: 50ms)
	RetryInterval time.Duration
}

type dirLock struct {
	targetDir string
	fl        *flock.Flock
	opts      LockOptions
	mu        sync.Mutex
}

// New creates a new directory lock instance
func New(directory string, opts *LockOptions) (DirLock, error) {
	if directory == "" {
		return nil, errors.New("directory cannot be empty")
	}

	o := LockOptions{}
	if opts != nil {
		o = *opts
	}
	if o.RetryInterval == 0 {
		o.RetryInterval = 50 * time.Millisecond
	}

	return &dirLock{
		targetDir: directory,
		fl:        flock.New(filepath.Join(directory, LockFileName)),
		opts:      o,
	}, nil
}

func (l *dirLock) TryLock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fl.Locked() {
		return nil
	}

	if err := fileutil.EnsureDir(l.targetDir); err != nil {
		return err
	}

	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.targetDir, err)
	}
	if !ok {
		return ErrLockConflict
	}
	return nil
}

func (l *dirLock) Lock(ctx context.Context) error {
	if err := l.TryLock(); err == nil {
		return nil
	} else if !errors.Is(err, ErrLockConflict) {
		return err
	}

	ticker := time.NewTicker(l.opts.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := l.TryLock()
			if err == nil {
				return nil
			}
			if !errors.Is(err, ErrLockConflict) {
				return err
			}
		}
	}
}

func (l *dirLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.fl.Locked() {
		return ErrNotLocked
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", l.targetDir, err)
	}
	return nil
}

func (l *dirLock) IsHeldByMe() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fl.Locked()
}
