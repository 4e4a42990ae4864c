package artworks

import (
	"context"
	"database/sql"
	"time"

	"github.com/namehu/pixishelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// replaceColumns are the fields a rescan may change. id, external_id and
// created_at stay fixed.
var replaceColumns = []string{
	"updated_at",
	"title",
	"description",
	"artist_id",
	"source_url",
	"original_url",
	"thumbnail_url",
	"x_restrict",
	"is_ai_generated",
	"size",
	"bookmark_count",
	"image_count",
	"source_date",
	"directory_created_at",
	"meta_source",
}

// ReplaceArtwork overwrites the mutable fields of an existing artwork and
// replaces all of its images and tag links in one transaction. artwork.ID must
// refer to an existing row. It returns the number of images written.
func (svc *Service) ReplaceArtwork(ctx context.Context, h *Hydrated) (int, error) {
	if h.Artwork.ID == 0 {
		return 0, errors.New("artwork id is required to replace an artwork")
	}

	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var written int
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		h.Artwork.UpdatedAt = now
		h.Artwork.ImageCount = len(h.Images)

		res, err := tx.
			NewUpdate().
			Model(h.Artwork).
			Column(replaceColumns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.WithStack(sql.ErrNoRows)
		}

		_, err = tx.
			NewDelete().
			Model((*models.Image)(nil)).
			Where("artwork_id = ?", h.Artwork.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.
			NewDelete().
			Model((*models.ArtworkTag)(nil)).
			Where("artwork_id = ?", h.Artwork.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, img := range h.Images {
			img.ID = 0
			img.ArtworkID = h.Artwork.ID
			img.CreatedAt = now
			img.UpdatedAt = now
		}
		written, err = insertImages(ctx, tx, h.Images)
		if err != nil {
			return err
		}

		links := make([]*models.ArtworkTag, 0, len(h.TagIDs))
		for _, tagID := range h.TagIDs {
			links = append(links, &models.ArtworkTag{ArtworkID: h.Artwork.ID, TagID: tagID})
		}
		return insertLinks(ctx, tx, links)
	})
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return written, nil
}
