package api

import (
	"errors"
	"net/http"

	models "FinForge/internal/domain/models"
	internalrepo "FinForge/internal/repository"
	"FinForge/internal/usecase"
	xhttp "FinForge/pkg/http"
	xlogger "FinForge/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PipelineEchoHandler exposes the refinement pipeline over HTTP.
type PipelineEchoHandler struct {
	logger  *xlogger.Logger
	refiner *usecase.Refiner
}

func NewPipelineEchoHandler(logger *xlogger.Logger, refiner *usecase.Refiner) *PipelineEchoHandler {
	return &PipelineEchoHandler{logger: logger, refiner: refiner}
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/pipeline/run", h.Run)
	g.GET("/pipeline/steps", h.Steps)
	g.GET("/pipeline/report/:destination", h.Report)
	g.GET("/registry/datasets", h.Datasets)
	g.GET("/registry/datasets/:name", h.Dataset)
}

// Run triggers one full pipeline run and returns the run report. A failed
// run still carries the partial step records so the caller can see where it
// stopped.
func (h *PipelineEchoHandler) Run(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.refiner.Run(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("pipeline run error", xlogger.Error(err))
		if report != nil {
			return xhttp.DataResponse(c, http.StatusUnprocessableEntity, report)
		}
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.SuccessResponse(c, report)
}

// Steps returns the step records of the most recent run.
func (h *PipelineEchoHandler) Steps(c echo.Context) error {
	steps := h.refiner.Steps()
	out := make([]models.StepSummary, 0, len(steps))
	for _, rec := range steps {
		out = append(out, models.StepSummary{
			Name:      rec.Name,
			Status:    rec.Status,
			ElapsedMS: rec.Elapsed.Milliseconds(),
			Detail:    rec.Detail,
		})
	}
	return xhttp.SuccessResponse(c, out)
}

// Report returns the latest cached run report for a destination.
func (h *PipelineEchoHandler) Report(c echo.Context) error {
	dest := c.Param("destination")
	report, err := h.refiner.LatestReport(c.Request().Context(), dest)
	if err != nil {
		if errors.Is(err, internalrepo.ErrReportNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no report for destination %q", dest))
		}
		h.logger.Error("report lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

// Datasets lists every dataset registered in the metadata registry.
func (h *PipelineEchoHandler) Datasets(c echo.Context) error {
	names, err := h.refiner.Datasets()
	if err != nil {
		h.logger.Error("registry list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, names, int64(len(names)))
}

// Dataset returns one registry entry.
func (h *PipelineEchoHandler) Dataset(c echo.Context) error {
	name := c.Param("name")
	entry, err := h.refiner.Dataset(name)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("dataset %q not registered", name))
	}
	return xhttp.SuccessResponse(c, entry)
}
