package worker

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/namehu/pixishelf/internal/testgen"
	"github.com/namehu/pixishelf/pkg/config"
	"github.com/namehu/pixishelf/pkg/metrics"
	"github.com/namehu/pixishelf/pkg/migrations"
	"github.com/namehu/pixishelf/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type testContext struct {
	t       *testing.T
	ctx     context.Context
	db      *bun.DB
	cfg     *config.Config
	root    string
	metrics *metrics.Metrics
	worker  *Worker
}

func newTestContext(t *testing.T) *testContext {
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

	root := testgen.TempScanRoot(t)

	cfg := config.NewForTest()
	cfg.ScanRoot = root
	cfg.ScanLockFilePath = filepath.Join(t.TempDir(), "scan.lock")

	m := metrics.New(prometheus.NewRegistry())

	return &testContext{
		t:       t,
		ctx:     context.Background(),
		db:      db,
		cfg:     cfg,
		root:    root,
		metrics: m,
		worker:  New(cfg, db, m),
	}
}

// rebuild recreates the worker after cfg changes.
func (tc *testContext) rebuild() {
	tc.worker = New(tc.cfg, tc.db, tc.metrics)
}

func (tc *testContext) artwork(dir string, opts testgen.ArtworkOptions) string {
	tc.t.Helper()
	return testgen.WriteArtwork(tc.t, dir, opts)
}

func (tc *testContext) artworks() []*models.Artwork {
	tc.t.Helper()
	var out []*models.Artwork
	err := tc.db.NewSelect().
		Model(&out).
		Relation("Artist").
		Relation("Images", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("img.sort_order ASC")
		}).
		Relation("ArtworkTags.Tag").
		Order("aw.external_id ASC").
		Scan(tc.ctx)
	require.NoError(tc.t, err)
	return out
}

func (tc *testContext) count(model interface{}) int {
	tc.t.Helper()
	n, err := tc.db.NewSelect().Model(model).Count(tc.ctx)
	require.NoError(tc.t, err)
	return n
}

func (tc *testContext) scan(opts ScanOptions) *ScanResult {
	tc.t.Helper()
	result, err := tc.worker.Scan(tc.ctx, opts)
	require.NoError(tc.t, err)
	require.NotNil(tc.t, result)
	return result
}
