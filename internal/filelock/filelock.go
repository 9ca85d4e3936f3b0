// Package filelock serializes access to files shared between tile workers.
// Goroutines of one process queue on a per-path mutex; other processes are
// excluded with an advisory lock on a "<path>.lock" companion file.
package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 25 * time.Millisecond

var (
	registryMu sync.Mutex
	mutexes    = map[string]*sync.Mutex{}
)

func mutexFor(path string) *sync.Mutex {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	m, ok := mutexes[abs]
	if !ok {
		m = &sync.Mutex{}
		mutexes[abs] = m
	}
	return m
}

// Release gives up a lock obtained from Acquire or AcquireShared.
type Release func() error

// Acquire takes the exclusive lock for path. The returned Release must be
// called on every exit path.
func Acquire(ctx context.Context, path string) (Release, error) {
	return acquire(ctx, path, false)
}

// AcquireShared takes the lock for reading. Other processes may hold shared
// locks at the same time; goroutines of this process still queue.
func AcquireShared(ctx context.Context, path string) (Release, error) {
	return acquire(ctx, path, true)
}

func acquire(ctx context.Context, path string, shared bool) (Release, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	m := mutexFor(path)
	m.Lock()

	fl := flock.New(path + ".lock")
	var ok bool
	var err error
	if shared {
		ok, err = fl.TryRLockContext(ctx, retryDelay)
	} else {
		ok, err = fl.TryLockContext(ctx, retryDelay)
	}
	if err != nil || !ok {
		m.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	var once sync.Once
	return func() error {
		var uerr error
		once.Do(func() {
			uerr = fl.Unlock()
			m.Unlock()
		})
		return uerr
	}, nil
}

// With runs fn while holding the exclusive lock for path.
func With(ctx context.Context, path string, fn func() error) (err error) {
	release, err := Acquire(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}
