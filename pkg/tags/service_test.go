package tags

import (
	"context"
	"database/sql"
	"testing"

	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/namehu/pixishelf/pkg/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestResolveTags(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	ids, created, err := svc.ResolveTags(ctx, []string{"sky", " landscape ", "sky", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Len(t, ids, 2)
	assert.NotZero(t, ids["sky"])
	assert.NotZero(t, ids["landscape"])

	again, created, err := svc.ResolveTags(ctx, []string{"sky", "sunset"})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, ids["sky"], again["sky"])

	name := "sunset"
	tag, err := svc.RetrieveTag(ctx, RetrieveTagOptions{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, again["sunset"], tag.ID)
}

func TestResolveTags_CaseSensitive(t *testing.T) {
	db := setupTestDB(t)

	ids, created, err := NewService(db).ResolveTags(context.Background(), []string{"Sky", "sky"})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.NotEqual(t, ids["Sky"], ids["sky"])
}

func TestRetrieveTag_NotFound(t *testing.T) {
	db := setupTestDB(t)

	id := 12
	_, err := NewService(db).RetrieveTag(context.Background(), RetrieveTagOptions{ID: &id})
	assert.ErrorIs(t, err, errcodes.NotFound("Tag"))
}
