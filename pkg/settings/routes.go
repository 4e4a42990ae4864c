package settings

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes exposes the persisted scan root. fallbackRoot is reported
// when nothing has been stored yet.
func RegisterRoutes(e *echo.Echo, db *bun.DB, fallbackRoot string) {
	h := &handler{
		settingsService: NewService(db),
		fallbackRoot:    fallbackRoot,
	}

	g := e.Group("/settings")
	g.GET("/scan-path", h.getScanPath)
	g.PUT("/scan-path", h.updateScanPath)
}
