package discovery

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/pkg/errors"
)

type ListSidecarsQuery struct {
	Root  string `query:"root" validate:"required"`
	Depth int    `query:"depth" default:"4" validate:"gte=1,lte=16"`
}

type handler struct {
	allowedRoot string
}

// list answers remote providers with the sidecar paths under root, relative
// to it and slash separated.
func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListSidecarsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	root := filepath.Clean(params.Root)
	if !filepath.IsAbs(root) {
		return errcodes.ValidationError(`"root" must be an absolute path`)
	}
	if h.allowedRoot != "" && !within(h.allowedRoot, root) {
		return errcodes.ValidationError(`"root" must be inside the configured scan root`)
	}

	paths, err := NewLocalProvider(params.Depth).Discover(ctx, root)
	if err != nil {
		return errcodes.NotFound("Scan root")
	}

	rel := make([]string, len(paths))
	for i, p := range paths {
		rel[i] = RelativePath(root, p)
	}

	return errors.WithStack(c.JSON(http.StatusOK, rel))
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
