package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/namehu/pixishelf/pkg/artists"
	"github.com/namehu/pixishelf/pkg/artworks"
	"github.com/namehu/pixishelf/pkg/config"
	"github.com/namehu/pixishelf/pkg/media"
	"github.com/namehu/pixishelf/pkg/metrics"
	"github.com/namehu/pixishelf/pkg/settings"
	"github.com/namehu/pixishelf/pkg/tags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Worker runs scans and rescans. Only one runs at a time: the guard is an
// in-process flag backed by a file lock so separate processes sharing a
// database don't overlap either.
type Worker struct {
	config  *config.Config
	db      *bun.DB
	log     logger.Logger
	metrics *metrics.Metrics

	artistResolver  ArtistResolver
	tagResolver     TagResolver
	artworkService  *artworks.Service
	settingsService *settings.Service
	associator      *media.Associator

	guard *runGuard

	queueMu        sync.Mutex
	closed         bool
	queue          chan *queuedScan
	shutdown       chan struct{}
	doneProcessing chan struct{}
	startOnce      sync.Once
	started        atomic.Bool
	cancelQueued   atomic.Bool

	statusMu sync.RWMutex
	status   Status
}

// Status describes the scan started through Enqueue, if any.
type Status struct {
	RunID    string      `json:"run_id,omitempty"`
	Running  bool        `json:"running"`
	Progress *Progress   `json:"progress,omitempty"`
	Result   *ScanResult `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

type queuedScan struct {
	runID   string
	opts    ScanOptions
	release func()
}

// New creates a Worker. m may be nil.
func New(cfg *config.Config, db *bun.DB, m *metrics.Metrics) *Worker {
	artworkService := artworks.NewService(db)
	if cfg.ScanTransactionTimeout > 0 {
		artworkService.TransactionTimeout = cfg.ScanTransactionTimeout
	}

	return &Worker{
		config:  cfg,
		db:      db,
		log:     logger.New(),
		metrics: m,

		artistResolver:  artists.NewService(db),
		tagResolver:     tags.NewService(db),
		artworkService:  artworkService,
		settingsService: settings.NewService(db),
		associator:      media.NewAssociator(),

		guard: newRunGuard(cfg.LockFilePath()),

		queue:          make(chan *queuedScan, 1),
		shutdown:       make(chan struct{}),
		doneProcessing: make(chan struct{}),
	}
}

// Start launches the goroutine that runs scans submitted with Enqueue.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.processScans()
	})
}

// Enqueue starts a scan in the background and returns its run id. It fails
// with ErrScanInProgress while another run holds the guard. Start must have
// been called.
func (w *Worker) Enqueue(opts ScanOptions) (string, error) {
	release, err := w.guard.acquire()
	if err != nil {
		return "", err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		release()
		return "", err
	}

	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	if w.closed {
		release()
		return "", ErrScanCancelled
	}

	w.cancelQueued.Store(false)
	opts.ShouldCancel = chainCancel(opts.ShouldCancel, w.cancelQueued.Load)

	w.statusMu.Lock()
	w.status = Status{RunID: id.String(), Running: true}
	w.statusMu.Unlock()

	// The guard admits one run, so the single slot is always free here.
	w.queue <- &queuedScan{runID: id.String(), opts: opts, release: release}
	return id.String(), nil
}

// Cancel asks the scan started with Enqueue to stop before its next batch.
// It reports whether a scan was running.
func (w *Worker) Cancel() bool {
	w.statusMu.RLock()
	running := w.status.Running
	w.statusMu.RUnlock()
	if running {
		w.cancelQueued.Store(true)
	}
	return running
}

// Status returns a snapshot of the most recent enqueued scan.
func (w *Worker) Status() Status {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()
	s := w.status
	if s.Progress != nil {
		p := *s.Progress
		s.Progress = &p
	}
	return s
}

func (w *Worker) processScans() {
	defer close(w.doneProcessing)
	for {
		select {
		case <-w.shutdown:
			w.dropQueued()
			return
		case job := <-w.queue:
			w.runQueued(job)
		}
	}
}

func (w *Worker) runQueued(job *queuedScan) {
	defer job.release()

	log := w.log.ID(job.runID).Root(logger.Data{"run_id": job.runID, "force_update": job.opts.ForceUpdate})
	ctx := log.WithContext(context.Background())

	onProgress := job.opts.OnProgress
	job.opts.OnProgress = func(p Progress) {
		w.statusMu.Lock()
		w.status.Progress = &p
		w.statusMu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	}

	result, err := w.runScan(ctx, job.opts)

	w.statusMu.Lock()
	w.status.Running = false
	w.status.Result = result
	if err != nil {
		w.status.Error = err.Error()
	}
	w.statusMu.Unlock()
}

// Shutdown cancels any enqueued scan at its next batch boundary and waits for
// it to return. Enqueue fails once Shutdown has been called.
func (w *Worker) Shutdown() {
	w.queueMu.Lock()
	if w.closed {
		w.queueMu.Unlock()
		return
	}
	w.closed = true
	w.cancelQueued.Store(true)
	close(w.shutdown)
	w.queueMu.Unlock()

	if w.started.Load() {
		<-w.doneProcessing
		return
	}
	w.dropQueued()
}

// dropQueued releases the guard held by a scan that was queued but never ran.
func (w *Worker) dropQueued() {
	select {
	case job := <-w.queue:
		job.release()
		w.statusMu.Lock()
		w.status.Running = false
		w.status.Error = ErrScanCancelled.Error()
		w.statusMu.Unlock()
	default:
	}
}

func chainCancel(fns ...func() bool) func() bool {
	return func() bool {
		for _, fn := range fns {
			if fn != nil && fn() {
				return true
			}
		}
		return false
	}
}
