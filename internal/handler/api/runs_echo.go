package api

import (
	"github.com/labstack/echo/v4"

	"RiskLab/internal/domain/models"
	domrepo "RiskLab/internal/domain/repository"
	xhttp "RiskLab/pkg/http"
	xlogger "RiskLab/pkg/logger"
)

// RunsEchoHandler serves the run catalog read-only.
type RunsEchoHandler struct {
	logger  *xlogger.Logger
	catalog domrepo.Catalog
}

func NewRunsEchoHandler(logger *xlogger.Logger, catalog domrepo.Catalog) *RunsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RunsEchoHandler{logger: logger, catalog: catalog}
}

func (h *RunsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/runs", h.ListRuns)
	g.GET("/runs/:run_id", h.GetRun)
}

// ListRuns returns the most recent catalog records, oldest first.
func (h *RunsEchoHandler) ListRuns(c echo.Context) error {
	req := &models.ListRunsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationFailed(verr)
	}

	recs, err := h.catalog.List(c.Request().Context(), models.RunFilter{SeriesID: req.SeriesID, Limit: req.Limit})
	if err != nil {
		return xhttp.InternalErrorf("catalog unavailable").WithError(err)
	}
	h.logger.Debug("runs listed", xlogger.String("series_id", req.SeriesID), xlogger.Int("rows", len(recs)))
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.List(c, recs)
}

func (h *RunsEchoHandler) GetRun(c echo.Context) error {
	req := &models.GetRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationFailed(verr)
	}

	rec, ok, err := h.catalog.Get(c.Request().Context(), req.RunID)
	if err != nil {
		return xhttp.InternalErrorf("catalog unavailable").WithError(err)
	}
	if !ok {
		return xhttp.NotFoundErrorf("run %s not found", req.RunID).WithParam("run_id", req.RunID)
	}
	return xhttp.OK(c, rec)
}
