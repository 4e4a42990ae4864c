package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("ALTER TABLE images ADD COLUMN mime_type TEXT")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("ALTER TABLE artworks ADD COLUMN image_count INTEGER NOT NULL DEFAULT 0")
		if err != nil {
			return errors.WithStack(err)
		}
		// Backfill counts for artworks ingested before the column existed.
		_, err = db.Exec(`
			UPDATE artworks
			SET image_count = (SELECT COUNT(*) FROM images WHERE images.artwork_id = artworks.id)
`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("ALTER TABLE artworks DROP COLUMN image_count")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("ALTER TABLE images DROP COLUMN mime_type")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
