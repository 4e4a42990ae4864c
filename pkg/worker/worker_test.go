package worker

import (
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/namehu/pixishelf/internal/testgen"
	"github.com/namehu/pixishelf/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForIdle(t *testing.T, w *Worker) Status {
	t.Helper()
	require.Eventually(t, func() bool {
		return !w.Status().Running
	}, 5*time.Second, 10*time.Millisecond)
	return w.Status()
}

func TestWorker_GuardRejectsConcurrentRun(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	release, err := tc.worker.guard.acquire()
	require.NoError(t, err)
	assert.True(t, tc.worker.Running())

	result, err := tc.worker.Scan(tc.ctx, ScanOptions{})
	require.ErrorIs(t, err, ErrScanInProgress)
	assert.NotNil(t, result)

	_, err = tc.worker.Rescan(tc.ctx, "1", "")
	require.ErrorIs(t, err, ErrScanInProgress)

	release()
	assert.False(t, tc.worker.Running())
	tc.scan(ScanOptions{})
}

func TestWorker_GuardHonorsOtherProcessLock(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	other := flock.New(tc.cfg.LockFilePath())
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	_, err = tc.worker.Scan(tc.ctx, ScanOptions{})
	require.ErrorIs(t, err, ErrScanInProgress)
	assert.False(t, tc.worker.Running())

	require.NoError(t, other.Unlock())
	tc.scan(ScanOptions{})
}

func TestWorker_EnqueueRunsScan(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)
	tc.worker.Start()
	defer tc.worker.Shutdown()

	tc.artwork(tc.root, testgen.ArtworkOptions{ID: "1", User: "A", UserID: "10", Title: "One", PageSizes: []int{10}})

	runID, err := tc.worker.Enqueue(ScanOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	status := waitForIdle(t, tc.worker)
	assert.Equal(t, runID, status.RunID)
	assert.Empty(t, status.Error)
	require.NotNil(t, status.Result)
	assert.Equal(t, 1, status.Result.NewArtworks)
	require.NotNil(t, status.Progress)
	assert.Equal(t, PhaseComplete, status.Progress.Phase)
	assert.Equal(t, 1, tc.count((*models.Artwork)(nil)))
}

func TestWorker_EnqueueWhileRunning(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	release, err := tc.worker.guard.acquire()
	require.NoError(t, err)
	defer release()

	_, err = tc.worker.Enqueue(ScanOptions{})
	require.ErrorIs(t, err, ErrScanInProgress)
}

func TestWorker_CancelEnqueuedScan(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)
	tc.cfg.ScanBatchSize = 1
	tc.rebuild()
	tc.worker.Start()
	defer tc.worker.Shutdown()

	for _, id := range []string{"1", "2", "3"} {
		tc.artwork(tc.root, testgen.ArtworkOptions{ID: id, User: "A", UserID: "10", Title: "T" + id, PageSizes: []int{10}})
	}

	// Ask for cancellation from inside the first progress callback so the
	// scan is guaranteed to be running.
	cancelled := false
	_, err := tc.worker.Enqueue(ScanOptions{OnProgress: func(p Progress) {
		if !cancelled {
			cancelled = true
			assert.True(t, tc.worker.Cancel())
		}
	}})
	require.NoError(t, err)

	status := waitForIdle(t, tc.worker)
	assert.Equal(t, ErrScanCancelled.Error(), status.Error)
	require.NotNil(t, status.Result)
	assert.Equal(t, 0, status.Result.NewArtworks)
	assert.False(t, tc.worker.Cancel())
}

func TestWorker_ShutdownWithoutStart(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	tc.worker.Shutdown()
	assert.False(t, tc.worker.Running())
}

func TestWorker_EnqueueAfterShutdown(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)
	tc.worker.Start()
	tc.worker.Shutdown()

	_, err := tc.worker.Enqueue(ScanOptions{})
	require.ErrorIs(t, err, ErrScanCancelled)
	assert.False(t, tc.worker.Running())

	tc.scan(ScanOptions{})
}

func TestWorker_ShutdownReleasesUnstartedScan(t *testing.T) {
	t.Parallel()
	tc := newTestContext(t)

	_, err := tc.worker.Enqueue(ScanOptions{})
	require.NoError(t, err)
	assert.True(t, tc.worker.Running())

	tc.worker.Shutdown()
	tc.worker.Shutdown()

	assert.False(t, tc.worker.Running())
	status := tc.worker.Status()
	assert.False(t, status.Running)
	assert.Equal(t, ErrScanCancelled.Error(), status.Error)
	tc.scan(ScanOptions{})
}
