package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/namehu/pixishelf/pkg/binder"
	"github.com/namehu/pixishelf/pkg/config"
	"github.com/namehu/pixishelf/pkg/discovery"
	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/namehu/pixishelf/pkg/settings"
	"github.com/namehu/pixishelf/pkg/worker"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

// New builds the API server. gatherer backs /metrics.
func New(cfg *config.Config, db *bun.DB, w *worker.Worker, gatherer prometheus.Gatherer) (*http.Server, error) {
	e, err := newEcho(cfg, db, w, gatherer)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB, w *worker.Worker, gatherer prometheus.Gatherer) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	worker.RegisterRoutes(e, w)
	settings.RegisterRoutes(e, db, cfg.ScanRoot)
	discovery.RegisterRoutes(e, cfg.ScanRoot)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
