package worker

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes exposes scan control and single-artwork rescans.
func RegisterRoutes(e *echo.Echo, w *Worker) {
	h := &handler{worker: w}

	g := e.Group("/scans")
	g.POST("", h.start)
	g.GET("/status", h.status)
	g.POST("/cancel", h.cancel)

	e.POST("/artworks/:external_id/rescan", h.rescan)
}
