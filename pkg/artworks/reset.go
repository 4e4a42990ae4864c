package artworks

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// libraryTables are emptied by ResetLibrary, children first. users and
// settings are not part of the library and are never touched.
var libraryTables = []string{"artwork_tags", "images", "artworks", "tags", "artists"}

// ResetLibrary deletes every artist, tag, artwork, image, and tag link and
// resets their id sequences, all in one transaction. It returns the number of
// artworks removed.
func (svc *Service) ResetLibrary(ctx context.Context) (int, error) {
	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	var removed int
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		removed, err = tx.NewSelect().Table("artworks").Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, table := range libraryTables {
			if _, err := tx.NewDelete().TableExpr(table).Where("1 = 1").Exec(ctx); err != nil {
				return errors.Wrapf(err, "failed to clear %s", table)
			}
		}

		_, err = tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name IN (?)", bun.In(libraryTables))
		return errors.Wrap(err, "failed to reset id sequences")
	})
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return removed, nil
}
