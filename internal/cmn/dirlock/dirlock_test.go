package dirlock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("EmptyDirectory", func(t *testing.T) {
		_, err := New("", nil)
		require.Error(t, err)
	})

	t.Run("DefaultOptions", func(t *testing.T) {
		lock, err := New(t.TempDir(), nil)
		require.NoError(t, err)

		dl := lock.(*dirLock)
		require.Equal(t, 50*time.Millisecond, dl.opts.RetryInterval)
	})
}

func TestTryLock(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("AcquireLockSuccessfully", func(t *testing.T) {
		lock, err := New(tmpDir, nil)
		require.NoError(t, err)

		require.NoError(t, lock.TryLock())
		require.True(t, lock.IsHeldByMe())
		require.FileExists(t, filepath.Join(tmpDir, LockFileName))

		require.NoError(t, lock.Unlock())
		require.False(t, lock.IsHeldByMe())
	})

	t.Run("LockConflict", func(t *testing.T) {
		lock1, err := New(tmpDir, nil)
		require.NoError(t, err)
		lock2, err := New(tmpDir, nil)
		require.NoError(t, err)

		require.NoError(t, lock1.TryLock())

		err = lock2.TryLock()
		require.ErrorIs(t, err, ErrLockConflict)
		require.False(t, lock2.IsHeldByMe())

		require.NoError(t, lock1.Unlock())
		require.NoError(t, lock2.TryLock())
		require.NoError(t, lock2.Unlock())
	})

	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		dir := filepath.Join(tmpDir, "model", "nested")
		lock, err := New(dir, nil)
		require.NoError(t, err)

		require.NoError(t, lock.TryLock())
		require.DirExists(t, dir)
		require.NoError(t, lock.Unlock())
	})
}

func TestUnlockNotHeld(t *testing.T) {
	lock, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.ErrorIs(t, lock.Unlock(), ErrNotLocked)
}

func TestLockContextCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	holder, err := New(tmpDir, nil)
	require.NoError(t, err)
	require.NoError(t, holder.TryLock())
	defer func() { _ = holder.Unlock() }()

	waiter, err := New(tmpDir, &LockOptions{RetryInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, waiter.Lock(ctx), context.DeadlineExceeded)
}
