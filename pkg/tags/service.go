package tags

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/namehu/pixishelf/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveTagOptions struct {
	ID   *int
	Name *string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) RetrieveTag(ctx context.Context, opts RetrieveTagOptions) (*models.Tag, error) {
	tag := &models.Tag{}

	q := svc.db.
		NewSelect().
		Model(tag)

	if opts.ID != nil {
		q = q.Where("t.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("t.name = ?", strings.TrimSpace(*opts.Name))
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Tag")
		}
		return nil, errors.WithStack(err)
	}

	return tag, nil
}

// FindByNames returns the tags matching any of names, keyed by name. Names
// are compared exactly.
func (svc *Service) FindByNames(ctx context.Context, names []string) (map[string]*models.Tag, error) {
	found := make(map[string]*models.Tag, len(names))
	if len(names) == 0 {
		return found, nil
	}

	var tags []*models.Tag
	err := svc.db.
		NewSelect().
		Model(&tags).
		Where("t.name IN (?)", bun.In(names)).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, t := range tags {
		found[t.Name] = t
	}
	return found, nil
}

// ResolveTags maps every name to a tag id, creating missing tags with a
// conflict-ignoring insert and reading their ids back. It returns the number
// of tags actually inserted.
func (svc *Service) ResolveTags(ctx context.Context, names []string) (map[string]int, int, error) {
	names = uniqueNonEmpty(names)
	ids := make(map[string]int, len(names))
	if len(names) == 0 {
		return ids, 0, nil
	}

	existing, err := svc.FindByNames(ctx, names)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	var missing []*models.Tag
	var missingNames []string
	for _, name := range names {
		if t, ok := existing[name]; ok {
			ids[name] = t.ID
			continue
		}
		missing = append(missing, &models.Tag{CreatedAt: now, UpdatedAt: now, Name: name})
		missingNames = append(missingNames, name)
	}

	if len(missing) == 0 {
		return ids, 0, nil
	}

	res, err := svc.db.
		NewInsert().
		Model(&missing).
		On("CONFLICT (name) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	created, _ := res.RowsAffected()

	inserted, err := svc.FindByNames(ctx, missingNames)
	if err != nil {
		return nil, 0, err
	}
	for name, t := range inserted {
		ids[name] = t.ID
	}

	return ids, int(created), nil
}

func uniqueNonEmpty(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
