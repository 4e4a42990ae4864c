package worker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/namehu/pixishelf/pkg/artworks"
	"github.com/namehu/pixishelf/pkg/discovery"
	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/namehu/pixishelf/pkg/metadata"
	"github.com/namehu/pixishelf/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Rescan re-reads the sidecar of one already stored artwork from
// <root>/<relativeDir> and replaces the artwork's fields, images, and tags in
// place. It never creates an artwork: an unknown external id fails with
// errcodes.NotFound("Artwork").
func (w *Worker) Rescan(ctx context.Context, externalID, relativeDir string) (*ScanResult, error) {
	release, err := w.guard.acquire()
	if err != nil {
		return newScanResult(), err
	}
	defer release()

	id, err := uuid.NewRandom()
	if err != nil {
		return newScanResult(), errors.WithStack(err)
	}
	log := logger.FromContext(ctx).ID(id.String()).Root(logger.Data{"run_id": id.String(), "external_id": externalID})
	ctx = log.WithContext(ctx)

	start := time.Now()
	w.metrics.RunStarted()

	sc := newScanContext("", ScanOptions{})
	err = w.rescan(ctx, sc, externalID, relativeDir)
	sc.Result.ProcessingTimeMs = time.Since(start).Milliseconds()

	outcome := metrics.OutcomeCompleted
	if err != nil {
		outcome = metrics.OutcomeFailed
		log.Err(err).Error("rescan failed")
	} else {
		log.Info("rescan finished", logger.Data{"new_images": sc.Result.NewImages, "duration_ms": sc.Result.ProcessingTimeMs})
	}
	w.metrics.RunFinished(metrics.ModeRescan, outcome, time.Since(start))

	return sc.Result, err
}

func (w *Worker) rescan(ctx context.Context, sc *ScanContext, externalID, relativeDir string) error {
	if !isDigits(externalID) {
		return errcodes.ValidationError("External id must contain only digits.")
	}

	root, err := w.resolveRoot(ctx, "")
	if err != nil {
		return err
	}
	sc.Root = root

	existing, err := w.artworkService.RetrieveArtwork(ctx, artworks.RetrieveArtworkOptions{ExternalID: &externalID})
	if err != nil {
		return err
	}

	dir := root
	if rel := strings.Trim(filepath.ToSlash(relativeDir), "/"); rel != "" && rel != "." {
		var ok bool
		dir, ok = joinInside(root, rel)
		if !ok {
			return errcodes.ValidationError("Directory must be inside the scan root.")
		}
	}

	path, err := findSidecar(dir, externalID)
	if err != nil {
		return err
	}

	record, err := metadata.Parse(path)
	if err != nil {
		if metadata.IsNotFound(err) {
			return errors.Wrap(ErrRescanSourceMissing, path)
		}
		return err
	}

	files, err := w.associator.FindImages(ctx, dir, externalID)
	if err != nil {
		return errors.Wrap(err, "media lookup failed")
	}
	if len(files) == 0 {
		return errors.Wrap(ErrRescanNoMedia, path)
	}

	h := &hydrated{
		candidate: discovery.Candidate{ExternalID: externalID, Path: path},
		record:    record,
		files:     files,
		dirTime:   existing.DirectoryCreatedAt,
	}
	sc.Result.TotalArtworks = 1

	artistIDs, tagIDs, err := w.resolve(ctx, sc, []*hydrated{h})
	if err != nil {
		return err
	}
	artistID, ok := artistIDs[h.record.UserID]
	if !ok {
		return errors.Errorf("artist %s could not be resolved", h.record.UserID)
	}

	replacement := w.buildArtwork(root, h, artistID, tagIDs, time.Now())
	replacement.Artwork.ID = existing.ID

	written, err := w.artworkService.ReplaceArtwork(ctx, replacement)
	if err != nil {
		return errors.Wrap(err, "failed to replace artwork")
	}
	sc.Result.NewImages = written
	w.metrics.RowsCreated("images", written)
	return nil
}

// findSidecar returns the sidecar for externalID directly inside dir.
func findSidecar(dir, externalID string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(ErrRescanSourceMissing, err.Error())
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := discovery.ExtractExternalID(e.Name()); ok && id == externalID {
			matches = append(matches, filepath.Join(dir, e.Name()))
		}
	}
	if len(matches) == 0 {
		return "", errors.Wrapf(ErrRescanSourceMissing, "%s in %s", externalID, dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

func joinInside(root, rel string) (string, bool) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(root, cleaned), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
