package settings

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

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Get returns the stored value for key.
func (svc *Service) Get(ctx context.Context, key string) (string, error) {
	setting := &models.Setting{}
	err := svc.db.NewSelect().
		Model(setting).
		Where("s.key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errcodes.NotFound("Setting")
		}
		return "", errors.WithStack(err)
	}
	return setting.Value, nil
}

// Set stores value under key, creating or overwriting it.
func (svc *Service) Set(ctx context.Context, key, value string) error {
	now := time.Now()

	setting := &models.Setting{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := svc.db.NewInsert().
		Model(setting).
		On("CONFLICT (key) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return errors.WithStack(err)
}

// ScanPath returns the persisted scan root, or fallback when none is stored.
func (svc *Service) ScanPath(ctx context.Context, fallback string) (string, error) {
	value, err := svc.Get(ctx, models.SettingScanPath)
	if errors.Is(err, errcodes.NotFound("Setting")) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return value, nil
}

func (svc *Service) SetScanPath(ctx context.Context, path string) error {
	return svc.Set(ctx, models.SettingScanPath, path)
}
