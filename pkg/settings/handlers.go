package settings

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/pkg/errors"
)

type ScanPathPayload struct {
	ScanPath string `json:"scan_path" mod:"trim" validate:"required"`
}

type ScanPathResponse struct {
	ScanPath string `json:"scan_path"`
}

type handler struct {
	settingsService *Service
	fallbackRoot    string
}

func (h *handler) getScanPath(c echo.Context) error {
	ctx := c.Request().Context()

	path, err := h.settingsService.ScanPath(ctx, h.fallbackRoot)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, ScanPathResponse{ScanPath: path}))
}

func (h *handler) updateScanPath(c echo.Context) error {
	ctx := c.Request().Context()

	var payload ScanPathPayload
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	path := filepath.Clean(payload.ScanPath)
	if !filepath.IsAbs(path) {
		return errcodes.ValidationError(`"scan_path" must be an absolute path`)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return errcodes.ValidationError(`"scan_path" must be an existing directory`)
	}

	if err := h.settingsService.SetScanPath(ctx, path); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, ScanPathResponse{ScanPath: path}))
}
