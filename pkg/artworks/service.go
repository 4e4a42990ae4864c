package artworks

import (
	"context"
	"database/sql"
	"time"

	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/namehu/pixishelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// DefaultTransactionTimeout bounds each ingestion transaction.
const DefaultTransactionTimeout = 30 * time.Second

// lookupChunkSize keeps IN (...) lists well under SQLite's variable limit.
const lookupChunkSize = 500

type RetrieveArtworkOptions struct {
	ID         *int
	ExternalID *string
}

type Service struct {
	db *bun.DB

	// TransactionTimeout bounds IngestBatch, ReplaceArtwork, and ResetLibrary.
	TransactionTimeout time.Duration
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, TransactionTimeout: DefaultTransactionTimeout}
}

func (svc *Service) RetrieveArtwork(ctx context.Context, opts RetrieveArtworkOptions) (*models.Artwork, error) {
	artwork := &models.Artwork{}

	q := svc.db.
		NewSelect().
		Model(artwork).
		Relation("Artist").
		Relation("Images", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("img.sort_order ASC", "img.id ASC")
		}).
		Relation("ArtworkTags", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("at.id ASC")
		}).
		Relation("ArtworkTags.Tag")

	if opts.ID != nil {
		q = q.Where("aw.id = ?", *opts.ID)
	}
	if opts.ExternalID != nil {
		q = q.Where("aw.external_id = ?", *opts.ExternalID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Artwork")
		}
		return nil, errors.WithStack(err)
	}

	return artwork, nil
}

// ExistingExternalIDs returns the subset of externalIDs that already have an
// artwork row.
func (svc *Service) ExistingExternalIDs(ctx context.Context, externalIDs []string) (map[string]struct{}, error) {
	return existingExternalIDs(ctx, svc.db, externalIDs)
}

func (svc *Service) CountArtworks(ctx context.Context) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.Artwork)(nil)).
		Count(ctx)
	return count, errors.WithStack(err)
}

func (svc *Service) CountImages(ctx context.Context, artworkID int) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.Image)(nil)).
		Where("img.artwork_id = ?", artworkID).
		Count(ctx)
	return count, errors.WithStack(err)
}

func (svc *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.TransactionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, svc.TransactionTimeout)
}

func existingExternalIDs(ctx context.Context, idb bun.IDB, externalIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for start := 0; start < len(externalIDs); start += lookupChunkSize {
		end := min(start+lookupChunkSize, len(externalIDs))

		var found []string
		err := idb.
			NewSelect().
			Model((*models.Artwork)(nil)).
			Column("aw.external_id").
			Where("aw.external_id IN (?)", bun.In(externalIDs[start:end])).
			Scan(ctx, &found)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, id := range found {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}
