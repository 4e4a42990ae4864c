package artworks

import (
	"context"
	"database/sql"
	"time"

	"github.com/namehu/pixishelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Hydrated is everything needed to store one artwork: the row itself with its
// artist already resolved, its images, and the ids of its tags.
type Hydrated struct {
	Artwork *models.Artwork
	Images  []*models.Image
	TagIDs  []int
}

// IngestStats reports what one batch transaction actually wrote.
type IngestStats struct {
	NewArtworks int
	NewImages   int
	// Existing counts batch entries whose external id was already stored.
	// They are left untouched.
	Existing int
}

// IngestBatch stores a batch of artworks in one transaction. Artworks are
// inserted with conflicts on external_id ignored, their generated ids are
// read back by external id, and then images and tag links are inserted the
// same way. Artworks that existed before the transaction keep their rows,
// images, and tags.
func (svc *Service) IngestBatch(ctx context.Context, batch []*Hydrated) (IngestStats, error) {
	var stats IngestStats
	if len(batch) == 0 {
		return stats, nil
	}

	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		externalIDs := make([]string, len(batch))
		for i, h := range batch {
			externalIDs[i] = h.Artwork.ExternalID
		}

		preexisting, err := existingExternalIDs(ctx, tx, externalIDs)
		if err != nil {
			return err
		}

		now := time.Now()
		pending := make([]*Hydrated, 0, len(batch))
		rows := make([]*models.Artwork, 0, len(batch))
		for _, h := range batch {
			if _, ok := preexisting[h.Artwork.ExternalID]; ok {
				stats.Existing++
				continue
			}
			h.Artwork.CreatedAt = now
			h.Artwork.UpdatedAt = now
			h.Artwork.ImageCount = len(h.Images)
			pending = append(pending, h)
			rows = append(rows, h.Artwork)
		}
		if len(rows) == 0 {
			return nil
		}

		res, err := tx.
			NewInsert().
			Model(&rows).
			On("CONFLICT (external_id) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		inserted, _ := res.RowsAffected()
		stats.NewArtworks = int(inserted)

		ids, err := artworkIDsByExternalID(ctx, tx, externalIDs)
		if err != nil {
			return err
		}

		var images []*models.Image
		var links []*models.ArtworkTag
		for _, h := range pending {
			id, ok := ids[h.Artwork.ExternalID]
			if !ok {
				return errors.Errorf("artwork %s missing after insert", h.Artwork.ExternalID)
			}
			h.Artwork.ID = id
			for _, img := range h.Images {
				img.ArtworkID = id
				img.CreatedAt = now
				img.UpdatedAt = now
				images = append(images, img)
			}
			for _, tagID := range h.TagIDs {
				links = append(links, &models.ArtworkTag{ArtworkID: id, TagID: tagID})
			}
		}

		stats.NewImages, err = insertImages(ctx, tx, images)
		if err != nil {
			return err
		}
		return insertLinks(ctx, tx, links)
	})
	if err != nil {
		return IngestStats{}, errors.WithStack(err)
	}

	return stats, nil
}

func artworkIDsByExternalID(ctx context.Context, idb bun.IDB, externalIDs []string) (map[string]int, error) {
	var rows []*models.Artwork
	err := idb.
		NewSelect().
		Model(&rows).
		Column("aw.id", "aw.external_id").
		Where("aw.external_id IN (?)", bun.In(externalIDs)).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ids := make(map[string]int, len(rows))
	for _, r := range rows {
		ids[r.ExternalID] = r.ID
	}
	return ids, nil
}

func insertImages(ctx context.Context, idb bun.IDB, images []*models.Image) (int, error) {
	if len(images) == 0 {
		return 0, nil
	}
	res, err := idb.
		NewInsert().
		Model(&images).
		On("CONFLICT (artwork_id, path) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func insertLinks(ctx context.Context, idb bun.IDB, links []*models.ArtworkTag) error {
	if len(links) == 0 {
		return nil
	}
	_, err := idb.
		NewInsert().
		Model(&links).
		On("CONFLICT (artwork_id, tag_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	return errors.WithStack(err)
}
