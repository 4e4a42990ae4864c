package discovery

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/namehu/pixishelf/internal/testgen"
	"github.com/namehu/pixishelf/pkg/binder"
	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, allowedRoot string) *echo.Echo {
	t.Helper()
	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle
	RegisterRoutes(e, allowedRoot)
	return e
}

func TestHandler_List(t *testing.T) {
	t.Parallel()

	root := testgen.TempScanRoot(t)
	sub := testgen.CreateSubDir(t, root, "alice")
	testgen.WriteFile(t, sub, "1-meta.txt", []byte("x"))
	testgen.WriteFile(t, root, "2-meta.txt", []byte("x"))

	e := newTestServer(t, root)
	req := httptest.NewRequest(http.MethodGet, "/discovery/sidecars?root="+url.QueryEscape(root), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.ElementsMatch(t, []string{"alice/1-meta.txt", "2-meta.txt"}, got)
}

func TestHandler_ListRejectsOutsideRoot(t *testing.T) {
	t.Parallel()

	root := testgen.TempScanRoot(t)
	e := newTestServer(t, filepath.Join(root, "allowed"))

	req := httptest.NewRequest(http.MethodGet, "/discovery/sidecars?root="+url.QueryEscape(root), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandler_ListServesRemoteProvider(t *testing.T) {
	t.Parallel()

	root := testgen.TempScanRoot(t)
	testgen.WriteFile(t, root, "5-meta.txt", []byte("x"))

	srv := httptest.NewServer(newTestServer(t, ""))
	defer srv.Close()

	paths, err := fastRemote(srv.URL+"/discovery/sidecars", nil).Discover(t.Context(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "5-meta.txt")}, paths)
}
