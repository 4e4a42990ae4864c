package settings

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/namehu/pixishelf/pkg/binder"
	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/namehu/pixishelf/pkg/migrations"
	"github.com/segmentio/encoding/json"
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

func TestScanPath(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	path, err := svc.ScanPath(ctx, "/fallback")
	require.NoError(t, err)
	assert.Equal(t, "/fallback", path)

	require.NoError(t, svc.SetScanPath(ctx, "/library"))
	path, err = svc.ScanPath(ctx, "/fallback")
	require.NoError(t, err)
	assert.Equal(t, "/library", path)

	require.NoError(t, svc.SetScanPath(ctx, "/library/v2"))
	path, err = svc.ScanPath(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "/library/v2", path)
}

func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := NewService(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, errcodes.NotFound("Setting"))
}

func TestHandlers_ScanPath(t *testing.T) {
	db := setupTestDB(t)
	root := t.TempDir()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle
	RegisterRoutes(e, db, "/fallback")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings/scan-path", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ScanPathResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/fallback", resp.ScanPath)

	req := httptest.NewRequest(http.MethodPut, "/settings/scan-path", strings.NewReader(`{"scan_path":" `+root+` "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	path, err := NewService(db).ScanPath(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, root, path)

	req = httptest.NewRequest(http.MethodPut, "/settings/scan-path", strings.NewReader(`{"scan_path":"relative/dir"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
