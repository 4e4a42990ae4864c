package discovery

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes exposes the sidecar lister that RemoteProvider talks to.
// Listing is restricted to allowedRoot when it's set.
func RegisterRoutes(e *echo.Echo, allowedRoot string) {
	h := &handler{allowedRoot: allowedRoot}

	g := e.Group("/discovery")
	g.GET("/sidecars", h.list)
}
