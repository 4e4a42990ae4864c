package artworks

import (
	"context"
	"database/sql"
	"strconv"
	"testing"
	"time"

	"github.com/namehu/pixishelf/pkg/artists"
	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/namehu/pixishelf/pkg/migrations"
	"github.com/namehu/pixishelf/pkg/models"
	"github.com/namehu/pixishelf/pkg/tags"
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

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createArtist(t *testing.T, db *bun.DB, userID, name string) int {
	t.Helper()
	ids, _, err := artists.NewService(db).ResolveArtists(context.Background(), map[string]string{userID: name})
	require.NoError(t, err)
	return ids[userID]
}

func hydrated(externalID string, artistID int, sizes ...int64) *Hydrated {
	h := &Hydrated{
		Artwork: &models.Artwork{
			ExternalID: externalID,
			Title:      "Artwork " + externalID,
			ArtistID:   artistID,
			SourceDate: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
			MetaSource: externalID + "-meta.txt",
		},
	}
	for i, size := range sizes {
		h.Images = append(h.Images, &models.Image{
			Path:      externalID + "_p" + strconv.Itoa(i) + ".jpg",
			Size:      size,
			SortOrder: i,
		})
	}
	return h
}

func TestIngestBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	artistID := createArtist(t, db, "456", "Alice")
	tagIDs, _, err := tags.NewService(db).ResolveTags(ctx, []string{"sky", "sunset"})
	require.NoError(t, err)

	h := hydrated("123", artistID, 100, 200)
	h.TagIDs = []int{tagIDs["sky"], tagIDs["sunset"]}

	stats, err := svc.IngestBatch(ctx, []*Hydrated{h, hydrated("124", artistID, 50)})
	require.NoError(t, err)
	assert.Equal(t, IngestStats{NewArtworks: 2, NewImages: 3}, stats)

	externalID := "123"
	artwork, err := svc.RetrieveArtwork(ctx, RetrieveArtworkOptions{ExternalID: &externalID})
	require.NoError(t, err)
	assert.Equal(t, "Artwork 123", artwork.Title)
	assert.Equal(t, 2, artwork.ImageCount)
	require.Len(t, artwork.Images, 2)
	assert.Equal(t, int64(100), artwork.Images[0].Size)
	assert.Equal(t, 0, artwork.Images[0].SortOrder)
	assert.Equal(t, int64(200), artwork.Images[1].Size)
	assert.Equal(t, []string{"sky", "sunset"}, artwork.TagNames())
	require.NotNil(t, artwork.Artist)
	assert.Equal(t, "456", artwork.Artist.UserID)
}

func TestIngestBatch_LeavesExistingArtworksUntouched(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	artistID := createArtist(t, db, "456", "Alice")

	_, err := svc.IngestBatch(ctx, []*Hydrated{hydrated("123", artistID, 100)})
	require.NoError(t, err)

	again := hydrated("123", artistID, 100, 200)
	again.Artwork.Title = "Changed"
	stats, err := svc.IngestBatch(ctx, []*Hydrated{again})
	require.NoError(t, err)
	assert.Equal(t, IngestStats{Existing: 1}, stats)

	externalID := "123"
	artwork, err := svc.RetrieveArtwork(ctx, RetrieveArtworkOptions{ExternalID: &externalID})
	require.NoError(t, err)
	assert.Equal(t, "Artwork 123", artwork.Title)
	assert.Len(t, artwork.Images, 1)

	count, err := svc.CountArtworks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestBatch_RollsBackOnFailure(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	artistID := createArtist(t, db, "456", "Alice")

	bad := hydrated("2", artistID+100, 10)
	_, err := svc.IngestBatch(ctx, []*Hydrated{hydrated("1", artistID, 10), bad})
	require.Error(t, err)

	count, err := svc.CountArtworks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExistingExternalIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	artistID := createArtist(t, db, "1", "A")
	_, err := svc.IngestBatch(ctx, []*Hydrated{hydrated("10", artistID, 1), hydrated("11", artistID, 1)})
	require.NoError(t, err)

	existing, err := svc.ExistingExternalIDs(ctx, []string{"10", "12"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"10": {}}, existing)

	existing, err = svc.ExistingExternalIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestReplaceArtwork(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	artistID := createArtist(t, db, "456", "Alice")
	tagIDs, _, err := tags.NewService(db).ResolveTags(ctx, []string{"old", "new"})
	require.NoError(t, err)

	h := hydrated("123", artistID, 100, 200)
	h.TagIDs = []int{tagIDs["old"]}
	_, err = svc.IngestBatch(ctx, []*Hydrated{h})
	require.NoError(t, err)
	originalID := h.Artwork.ID

	replacement := hydrated("123", artistID, 300)
	replacement.Artwork.ID = originalID
	replacement.Artwork.Title = "Sunset (revised)"
	replacement.TagIDs = []int{tagIDs["new"]}

	written, err := svc.ReplaceArtwork(ctx, replacement)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	artwork, err := svc.RetrieveArtwork(ctx, RetrieveArtworkOptions{ID: &originalID})
	require.NoError(t, err)
	assert.Equal(t, "Sunset (revised)", artwork.Title)
	assert.Equal(t, 1, artwork.ImageCount)
	require.Len(t, artwork.Images, 1)
	assert.Equal(t, int64(300), artwork.Images[0].Size)
	assert.Equal(t, []string{"new"}, artwork.TagNames())

	count, err := svc.CountArtworks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReplaceArtwork_Missing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	artistID := createArtist(t, db, "456", "Alice")
	h := hydrated("123", artistID, 1)
	h.Artwork.ID = 999

	_, err := NewService(db).ReplaceArtwork(ctx, h)
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestResetLibrary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	artistID := createArtist(t, db, "456", "Alice")
	_, err := svc.IngestBatch(ctx, []*Hydrated{hydrated("1", artistID, 1), hydrated("2", artistID, 1)})
	require.NoError(t, err)

	_, err = db.NewInsert().Model(&models.Setting{Key: models.SettingScanPath, Value: "/library"}).Exec(ctx)
	require.NoError(t, err)

	removed, err := svc.ResetLibrary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	for _, table := range libraryTables {
		count, err := db.NewSelect().Table(table).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count, table)
	}

	settings, err := db.NewSelect().Table("settings").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settings)

	// ids start over after a reset
	newArtistID := createArtist(t, db, "789", "Bob")
	assert.Equal(t, 1, newArtistID)
}

func TestRetrieveArtwork_NotFound(t *testing.T) {
	db := setupTestDB(t)

	externalID := "nope"
	_, err := NewService(db).RetrieveArtwork(context.Background(), RetrieveArtworkOptions{ExternalID: &externalID})
	assert.ErrorIs(t, err, errcodes.NotFound("Artwork"))
}
