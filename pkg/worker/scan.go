package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/namehu/pixishelf/pkg/discovery"
	"github.com/namehu/pixishelf/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Scan discovers sidecars under the scan root and ingests them in batches.
// The returned result is never nil: when err is non-nil it holds everything
// committed before the failure. A cancelled run returns ErrScanCancelled.
func (w *Worker) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	release, err := w.guard.acquire()
	if err != nil {
		return newScanResult(), err
	}
	defer release()

	id, err := uuid.NewRandom()
	if err != nil {
		return newScanResult(), errors.WithStack(err)
	}
	log := logger.FromContext(ctx).ID(id.String()).Root(logger.Data{"run_id": id.String(), "force_update": opts.ForceUpdate})
	ctx = log.WithContext(ctx)

	return w.runScan(ctx, opts)
}

func (w *Worker) runScan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	mode := metrics.ModeIncremental
	if opts.ForceUpdate {
		mode = metrics.ModeForce
	}
	w.metrics.RunStarted()

	sc := newScanContext("", opts)
	err := w.scan(ctx, sc)

	sc.Result.ProcessingTimeMs = time.Since(start).Milliseconds()

	outcome := metrics.OutcomeCompleted
	switch {
	case errors.Is(err, ErrScanCancelled):
		outcome = metrics.OutcomeCancelled
		log.Warn("scan cancelled", logger.Data{"result": sc.Result})
	case err != nil:
		outcome = metrics.OutcomeFailed
		log.Err(err).Error("scan failed")
	default:
		log.Info("scan finished", logger.Data{
			"total_artworks":   sc.Result.TotalArtworks,
			"new_artworks":     sc.Result.NewArtworks,
			"new_images":       sc.Result.NewImages,
			"new_artists":      sc.Result.NewArtists,
			"new_tags":         sc.Result.NewTags,
			"skipped_artworks": sc.Result.SkippedArtworks,
			"errors":           len(sc.Result.Errors),
			"cache_hits":       sc.Cache.Hits(),
			"duration_ms":      sc.Result.ProcessingTimeMs,
		})
	}
	w.metrics.RunFinished(mode, outcome, time.Since(start))

	return sc.Result, err
}

func (w *Worker) scan(ctx context.Context, sc *ScanContext) error {
	log := logger.FromContext(ctx)

	root, err := w.resolveRoot(ctx, sc.Options.Root)
	if err != nil {
		return err
	}
	sc.Root = root

	if err := w.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "database unreachable")
	}

	log.Info("scan started", logger.Data{"root": root})

	if sc.Options.ForceUpdate {
		if err := w.resetLibrary(ctx, sc); err != nil {
			return err
		}
	}

	sc.progress(Progress{Phase: PhaseDiscovering, Message: "Discovering metadata files", Percentage: 10})

	candidates, err := w.discover(ctx, sc)
	if err != nil {
		return err
	}

	total := len(candidates)
	sc.progress(Progress{
		Phase:      PhaseDiscovering,
		Message:    fmt.Sprintf("Found %d metadata files to process", total),
		Total:      &total,
		Percentage: 20,
	})

	batchSize := w.config.BatchSize()
	for start := 0; start < total; start += batchSize {
		if sc.cancelled(ctx) {
			log.Info("cancellation requested", logger.Data{"processed": start, "total": total})
			return ErrScanCancelled
		}

		end := min(start+batchSize, total)
		w.processBatch(ctx, sc, candidates[start:end])

		current := end
		sc.progress(Progress{
			Phase:      PhaseScanning,
			Message:    fmt.Sprintf("Processed %d of %d metadata files", current, total),
			Current:    &current,
			Total:      &total,
			Percentage: 20 + 70*current/total,
		})
	}

	sc.progress(Progress{Phase: PhaseComplete, Message: "Scan complete", Percentage: 100})
	return nil
}

// resolveRoot picks the scan root: the explicit override, then the stored
// setting, then the config.
func (w *Worker) resolveRoot(ctx context.Context, override string) (string, error) {
	root := override
	if root == "" {
		var err error
		root, err = w.settingsService.ScanPath(ctx, w.config.ScanRoot)
		if err != nil {
			return "", errors.Wrap(err, "failed to read scan path")
		}
	}
	if root == "" {
		return "", ErrScanRootMissing
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", errors.Wrapf(err, "scan root %s is not accessible", root)
	}
	if !info.IsDir() {
		return "", errors.Errorf("scan root %s is not a directory", root)
	}
	return root, nil
}

func (w *Worker) resetLibrary(ctx context.Context, sc *ScanContext) error {
	log := logger.FromContext(ctx)

	sc.progress(Progress{Phase: PhaseCounting, Message: "Counting existing artworks", Percentage: 0})

	count, err := w.artworkService.CountArtworks(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to count artworks")
	}
	sc.progress(Progress{
		Phase:      PhaseCounting,
		Message:    fmt.Sprintf("Removing %d existing artworks", count),
		Total:      &count,
		Percentage: 5,
	})

	removed, err := w.artworkService.ResetLibrary(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to reset library")
	}
	sc.Result.RemovedArtworks = removed
	log.Warn("library reset", logger.Data{"removed_artworks": removed})
	return nil
}

func (w *Worker) provider() discovery.Provider {
	local := discovery.NewLocalProvider(w.config.ScanMaxDepth)
	if w.config.RemoteDiscoveryURL == "" {
		return local
	}
	return discovery.NewRemoteProvider(discovery.RemoteOptions{
		URL:         w.config.RemoteDiscoveryURL,
		MaxAttempts: w.config.RemoteDiscoveryMaxAttempts,
		MaxBackoff:  w.config.RemoteDiscoveryMaxBackoff,
		Timeout:     w.config.RemoteDiscoveryTimeout,
		MaxDepth:    w.config.ScanMaxDepth,
	}, local)
}

// discover lists the sidecars and narrows them to the candidates worth
// parsing: numeric ids only, first path per id, and in incremental mode only
// ids that aren't stored yet.
func (w *Worker) discover(ctx context.Context, sc *ScanContext) ([]discovery.Candidate, error) {
	log := logger.FromContext(ctx)

	var p discovery.Provider
	if len(sc.Options.MetadataPaths) > 0 {
		p = discovery.NewListProvider(sc.Options.MetadataPaths)
	} else {
		p = w.provider()
	}

	paths, err := p.Discover(ctx, sc.Root)
	if err != nil {
		return nil, errors.Wrap(err, "discovery failed")
	}

	set := discovery.Candidates(paths)
	for _, path := range set.Invalid {
		log.Warn("ignoring sidecar without a numeric id", logger.Data{"path": path})
	}
	w.metrics.Skipped("invalid_name", len(set.Invalid))
	for _, d := range set.Duplicates {
		log.Warn("duplicate external id", logger.Data{"external_id": d.ExternalID, "kept": d.Kept, "dropped": d.Dropped})
		sc.Result.addError(d.String())
	}
	w.metrics.Skipped("duplicate", len(set.Duplicates))

	candidates := set.Candidates
	if !sc.Options.ForceUpdate && len(candidates) > 0 {
		existing, err := w.artworkService.ExistingExternalIDs(ctx, discovery.ExternalIDs(candidates))
		if err != nil {
			return nil, errors.Wrap(err, "failed to look up existing artworks")
		}
		if len(existing) > 0 {
			fresh := candidates[:0]
			for _, c := range candidates {
				if _, ok := existing[c.ExternalID]; ok {
					continue
				}
				fresh = append(fresh, c)
			}
			skipped := len(candidates) - len(fresh)
			sc.Result.SkippedArtworks += skipped
			w.metrics.Skipped("existing", skipped)
			candidates = fresh
		}
	}

	log.Info("discovery finished", logger.Data{
		"found":      len(paths),
		"candidates": len(candidates),
		"duplicates": len(set.Duplicates),
		"invalid":    len(set.Invalid),
		"skipped":    sc.Result.SkippedArtworks,
	})
	return candidates, nil
}
