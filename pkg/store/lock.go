package store

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/pricewatch/pkg/logger"
)

const (
	// DefaultLockTimeout bounds how long Update waits for another process.
	DefaultLockTimeout = 30 * time.Second

	lockRetryDelay  = 50 * time.Millisecond
	lockRetryJitter = 50 * time.Millisecond
)

// ErrLockTimeout is returned when the lock file stays held past the timeout.
var ErrLockTimeout = errors.New("timeout waiting for lock")

func jitteredDelay() time.Duration {
	return lockRetryDelay + time.Duration(rand.Int63n(int64(lockRetryJitter)))
}

// fileLock is an exclusive lock represented by the existence of a file.
type fileLock struct {
	path string
	file *os.File
}

// acquireLock creates path+".lock" exclusively, retrying with jitter until
// timeout or ctx is done. The holder's PID is written into the file.
func acquireLock(ctx context.Context, path string, timeout time.Duration) (*fileLock, error) {
	lockPath := path + ".lock"
	deadline := time.Now().Add(timeout)

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			return &fileLock{path: lockPath, file: f}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrap(err, "failed to create lock file")
		}
		if time.Now().After(deadline) {
			return nil, errors.Wrapf(ErrLockTimeout, "%s is held by another process", lockPath)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jitteredDelay()):
		}
	}
}

func (l *fileLock) release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	return err
}

// withLock runs fn while holding the lock for path.
func withLock(ctx context.Context, path string, timeout time.Duration, fn func() error) error {
	lock, err := acquireLock(ctx, path, timeout)
	if err != nil {
		return errors.Wrap(err, "failed to acquire lock")
	}
	defer func() {
		if err := lock.release(); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to release store lock")
		}
	}()

	return fn()
}
