package artists

import (
	"context"
	"database/sql"
	"time"

	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/namehu/pixishelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveArtistOptions struct {
	ID     *int
	UserID *string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) RetrieveArtist(ctx context.Context, opts RetrieveArtistOptions) (*models.Artist, error) {
	artist := &models.Artist{}

	q := svc.db.
		NewSelect().
		Model(artist)

	if opts.ID != nil {
		q = q.Where("ar.id = ?", *opts.ID)
	}
	if opts.UserID != nil {
		q = q.Where("ar.user_id = ?", *opts.UserID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Artist")
		}
		return nil, errors.WithStack(err)
	}

	return artist, nil
}

// FindByUserIDs returns the artists matching any of userIDs, keyed by user id.
func (svc *Service) FindByUserIDs(ctx context.Context, userIDs []string) (map[string]*models.Artist, error) {
	found := make(map[string]*models.Artist, len(userIDs))
	if len(userIDs) == 0 {
		return found, nil
	}

	var artists []*models.Artist
	err := svc.db.
		NewSelect().
		Model(&artists).
		Where("ar.user_id IN (?)", bun.In(userIDs)).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, a := range artists {
		found[a.UserID] = a
	}
	return found, nil
}

// ResolveArtists maps every user id in names (user id => display name) to an
// artist id, creating the artists that don't exist yet. Concurrent creators
// are tolerated since conflicts on user_id are ignored and the ids are read
// back afterwards. It returns the number of artists actually inserted.
func (svc *Service) ResolveArtists(ctx context.Context, names map[string]string) (map[string]int, int, error) {
	ids := make(map[string]int, len(names))
	if len(names) == 0 {
		return ids, 0, nil
	}

	userIDs := make([]string, 0, len(names))
	for userID := range names {
		userIDs = append(userIDs, userID)
	}

	existing, err := svc.FindByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	missing := make([]*models.Artist, 0, len(names)-len(existing))
	missingIDs := make([]string, 0, len(names)-len(existing))
	for _, userID := range userIDs {
		if a, ok := existing[userID]; ok {
			ids[userID] = a.ID
			continue
		}
		missing = append(missing, &models.Artist{
			CreatedAt: now,
			UpdatedAt: now,
			UserID:    userID,
			Name:      names[userID],
		})
		missingIDs = append(missingIDs, userID)
	}

	if len(missing) == 0 {
		return ids, 0, nil
	}

	res, err := svc.db.
		NewInsert().
		Model(&missing).
		On("CONFLICT (user_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	created, _ := res.RowsAffected()

	inserted, err := svc.FindByUserIDs(ctx, missingIDs)
	if err != nil {
		return nil, 0, err
	}
	for userID, a := range inserted {
		ids[userID] = a.ID
	}

	return ids, int(created), nil
}
