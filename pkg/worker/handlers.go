package worker

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/namehu/pixishelf/pkg/errcodes"
	"github.com/namehu/pixishelf/pkg/metadata"
	"github.com/pkg/errors"
)

type StartScanPayload struct {
	ForceUpdate   bool     `json:"force_update"`
	Root          string   `json:"root" mod:"trim"`
	MetadataPaths []string `json:"metadata_paths" validate:"omitempty,dive,required,relpath"`
}

type StartScanResponse struct {
	RunID string `json:"run_id"`
}

type CancelScanResponse struct {
	Cancelled bool `json:"cancelled"`
}

type RescanPayload struct {
	RelativeDir string `json:"relative_dir" mod:"trim" validate:"relpath"`
}

type handler struct {
	worker *Worker
}

func (h *handler) start(c echo.Context) error {
	params := StartScanPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	runID, err := h.worker.Enqueue(ScanOptions{
		ForceUpdate:   params.ForceUpdate,
		Root:          params.Root,
		MetadataPaths: params.MetadataPaths,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusAccepted, StartScanResponse{RunID: runID}))
}

func (h *handler) status(c echo.Context) error {
	return errors.WithStack(c.JSON(http.StatusOK, h.worker.Status()))
}

func (h *handler) cancel(c echo.Context) error {
	return errors.WithStack(c.JSON(http.StatusOK, CancelScanResponse{Cancelled: h.worker.Cancel()}))
}

func (h *handler) rescan(c echo.Context) error {
	ctx := c.Request().Context()

	externalID := c.Param("external_id")
	if !isDigits(externalID) {
		return errcodes.NotFound("Artwork")
	}

	params := RescanPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	result, err := h.worker.Rescan(ctx, externalID, params.RelativeDir)
	if pe, ok := metadata.AsParseError(err); ok {
		return errcodes.ValidationError(pe.Error())
	}
	switch {
	case errors.Is(err, ErrRescanSourceMissing):
		return errcodes.NotFound("Sidecar")
	case errors.Is(err, ErrRescanNoMedia):
		return errcodes.ValidationError("Artwork has no media files.")
	case err != nil:
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, result))
}
