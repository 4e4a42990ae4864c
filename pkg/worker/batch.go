package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/namehu/pixishelf/pkg/artworks"
	"github.com/namehu/pixishelf/pkg/discovery"
	"github.com/namehu/pixishelf/pkg/media"
	"github.com/namehu/pixishelf/pkg/metadata"
	"github.com/namehu/pixishelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/sync/errgroup"
)

// hydrated is a parsed sidecar with its media, ready for ingestion.
type hydrated struct {
	candidate discovery.Candidate
	record    *metadata.Record
	files     []media.File
	dirTime   *time.Time
}

// processBatch parses and associates one batch of candidates, resolves their
// artists and tags, and ingests them in a single transaction. Failures are
// recorded on the result; they never stop the run.
func (w *Worker) processBatch(ctx context.Context, sc *ScanContext, batch []discovery.Candidate) {
	log := logger.FromContext(ctx)
	start := time.Now()

	ready := w.hydrateAll(ctx, sc, batch)
	sc.Result.TotalArtworks += len(ready)
	if len(ready) == 0 {
		return
	}

	stats, err := w.ingest(ctx, sc, ready)
	w.metrics.BatchFinished(err == nil, time.Since(start))
	if err != nil {
		first, last := ready[0].candidate.ExternalID, ready[len(ready)-1].candidate.ExternalID
		log.Err(err).Error("batch ingestion failed", logger.Data{"first_external_id": first, "last_external_id": last})
		sc.Result.addError(fmt.Sprintf("batch %s..%s failed: %s", first, last, err.Error()))
		return
	}

	sc.Result.NewArtworks += stats.NewArtworks
	sc.Result.NewImages += stats.NewImages
	sc.Result.SkippedArtworks += stats.Existing
	w.metrics.RowsCreated("artworks", stats.NewArtworks)
	w.metrics.RowsCreated("images", stats.NewImages)
	w.metrics.Skipped("existing", stats.Existing)
}

// hydrateAll runs parse + associate for every candidate on a bounded pool.
// Results keep the order of batch.
func (w *Worker) hydrateAll(ctx context.Context, sc *ScanContext, batch []discovery.Candidate) []*hydrated {
	results := make([]*hydrated, len(batch))
	failures := make([]string, len(batch))

	workers := w.config.ScanWorkers
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range batch {
		g.Go(func() error {
			h, failure := w.hydrate(gctx, c)
			results[i] = h
			failures[i] = failure
			return nil
		})
	}
	_ = g.Wait()

	ready := make([]*hydrated, 0, len(batch))
	for i, h := range results {
		if failures[i] != "" {
			sc.Result.addError(failures[i])
		}
		if h != nil {
			ready = append(ready, h)
		}
	}
	w.metrics.Skipped("unusable", len(batch)-len(ready))
	return ready
}

// hydrate returns nil when the candidate can't be ingested. The second value
// is a message for the result's error list, empty for benign skips.
func (w *Worker) hydrate(ctx context.Context, c discovery.Candidate) (*hydrated, string) {
	log := logger.FromContext(ctx)

	record, err := metadata.Parse(c.Path)
	if err != nil {
		if metadata.IsNotFound(err) {
			log.Info("sidecar vanished before parsing", logger.Data{"path": c.Path})
			return nil, ""
		}
		log.Warn("invalid sidecar", logger.Data{"path": c.Path, "error": err.Error()})
		return nil, err.Error()
	}
	if record.ID != c.ExternalID {
		log.Warn("sidecar id differs from file name, using file name", logger.Data{
			"path":        c.Path,
			"external_id": c.ExternalID,
			"sidecar_id":  record.ID,
		})
	}

	dir := filepath.Dir(c.Path)
	files, err := w.associator.FindImages(ctx, dir, c.ExternalID)
	if err != nil {
		log.Warn("media lookup failed", logger.Data{"path": c.Path, "error": err.Error()})
		return nil, fmt.Sprintf("media lookup for %s failed: %s", c.Path, err.Error())
	}
	if len(files) == 0 {
		log.Warn("no media files for artwork", logger.Data{"path": c.Path, "external_id": c.ExternalID})
		return nil, ""
	}

	h := &hydrated{candidate: c, record: record, files: files}
	if info, err := os.Stat(dir); err == nil {
		t := info.ModTime()
		h.dirTime = &t
	}
	return h, ""
}

// ingest resolves the batch's artists and tags through the run cache and
// hands the rows to the ingestion transaction.
func (w *Worker) ingest(ctx context.Context, sc *ScanContext, ready []*hydrated) (artworks.IngestStats, error) {
	log := logger.FromContext(ctx)

	artistIDs, tagIDs, err := w.resolve(ctx, sc, ready)
	if err != nil {
		return artworks.IngestStats{}, err
	}

	now := time.Now()
	batch := make([]*artworks.Hydrated, 0, len(ready))
	for _, h := range ready {
		artistID, ok := artistIDs[h.record.UserID]
		if !ok {
			log.Warn("artist not resolved, skipping artwork", logger.Data{"external_id": h.candidate.ExternalID, "user_id": h.record.UserID})
			continue
		}
		batch = append(batch, w.buildArtwork(sc.Root, h, artistID, tagIDs, now))
	}

	return w.artworkService.IngestBatch(ctx, batch)
}

func (w *Worker) resolve(ctx context.Context, sc *ScanContext, ready []*hydrated) (map[string]int, map[string]int, error) {
	names := make(map[string]string, len(ready))
	var tagNames []string
	for _, h := range ready {
		if _, ok := names[h.record.UserID]; !ok {
			names[h.record.UserID] = h.record.User
		}
		tagNames = append(tagNames, h.record.Tags...)
	}

	artistIDs, createdArtists, err := sc.Cache.ResolveArtists(ctx, names, w.artistResolver)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to resolve artists")
	}
	sc.Result.NewArtists += createdArtists
	w.metrics.RowsCreated("artists", createdArtists)

	tagIDs, createdTags, err := sc.Cache.ResolveTags(ctx, tagNames, w.tagResolver)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to resolve tags")
	}
	sc.Result.NewTags += createdTags
	w.metrics.RowsCreated("tags", createdTags)

	return artistIDs, tagIDs, nil
}

func (w *Worker) buildArtwork(root string, h *hydrated, artistID int, tagIDs map[string]int, now time.Time) *artworks.Hydrated {
	r := h.record
	artwork := &models.Artwork{
		ExternalID:         h.candidate.ExternalID,
		Title:              r.Title,
		Description:        optionalString(r.Description),
		ArtistID:           artistID,
		SourceURL:          optionalString(r.SourceURL),
		OriginalURL:        optionalString(r.OriginalURL),
		ThumbnailURL:       optionalString(r.ThumbnailURL),
		XRestrict:          optionalString(r.XRestrict),
		IsAIGenerated:      r.IsAIGenerated(),
		Size:               optionalString(r.Size),
		BookmarkCount:      r.BookmarkCount,
		SourceDate:         r.SourceDateOr(now),
		DirectoryCreatedAt: h.dirTime,
		MetaSource:         discovery.RelativePath(root, h.candidate.Path),
	}

	images := make([]*models.Image, len(h.files))
	for i, f := range h.files {
		images[i] = &models.Image{
			Path:      models.NormalizeImagePath(root, f.Path),
			Size:      f.Size,
			SortOrder: f.SortOrder,
			MimeType:  optionalString(f.MimeType),
		}
	}

	ids := make([]int, 0, len(r.Tags))
	for _, name := range r.Tags {
		if id, ok := tagIDs[name]; ok {
			ids = append(ids, id)
		}
	}

	return &artworks.Hydrated{Artwork: artwork, Images: images, TagIDs: ids}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
