package worker

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// runGuard admits one run at a time. The atomic flag covers this process and
// the file lock covers every other process using the same lock file.
type runGuard struct {
	running atomic.Bool
	path    string
}

func newRunGuard(path string) *runGuard {
	return &runGuard{path: path}
}

// acquire returns a release func, or ErrScanInProgress when the guard is
// held.
func (g *runGuard) acquire() (func(), error) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}

	if err := os.MkdirAll(filepath.Dir(g.path), 0755); err != nil {
		g.running.Store(false)
		return nil, errors.Wrap(err, "failed to create scan lock directory")
	}

	lock := flock.New(g.path)
	locked, err := lock.TryLock()
	if err != nil {
		g.running.Store(false)
		return nil, errors.Wrapf(err, "failed to lock %s", g.path)
	}
	if !locked {
		g.running.Store(false)
		return nil, ErrScanInProgress
	}

	return func() {
		_ = lock.Unlock()
		g.running.Store(false)
	}, nil
}

// Running reports whether a scan or rescan is in progress in this process.
func (w *Worker) Running() bool {
	return w.guard.running.Load()
}
