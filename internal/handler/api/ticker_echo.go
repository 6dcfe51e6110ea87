package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	"Tradyxa/internal/service/ratelimit"
	"Tradyxa/internal/services/symbols"
	"Tradyxa/internal/usecase"
	xhttp "Tradyxa/pkg/http"
	xlogger "Tradyxa/pkg/logger"
)

// Readiness is satisfied by the document store.
type Readiness interface {
	Ready(ctx context.Context) error
}

// TickerEchoHandler serves ticker snapshots, raw data files, simulations
// and history. Snapshot and data routes answer with the bare document so
// existing clients keep working; everything else uses the API envelope.
type TickerEchoHandler struct {
	logger  *xlogger.Logger
	tickers *usecase.TickerService
	sims    *usecase.SimulationService
	history domrepo.HistoryStore
	ready   Readiness
	limiter *ratelimit.Limiter
}

func NewTickerEchoHandler(
	logger *xlogger.Logger,
	tickers *usecase.TickerService,
	sims *usecase.SimulationService,
	history domrepo.HistoryStore,
	ready Readiness,
	limiter *ratelimit.Limiter,
) *TickerEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &TickerEchoHandler{
		logger:  logger,
		tickers: tickers,
		sims:    sims,
		history: history,
		ready:   ready,
		limiter: limiter,
	}
}

func (h *TickerEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/data/ticker/:filename", h.DataFile)

	g := e.Group("/api")
	g.GET("/ticker/:ticker", h.Basic)
	g.GET("/ticker/:ticker/full", h.Full)
	g.GET("/ticker/:ticker/history", h.History)
	g.POST("/run_simulation", h.RunSimulation)
	g.GET("/simulation/:jobId", h.SimulationStatus)
}

func (h *TickerEchoHandler) Basic(c echo.Context) error { return h.snapshot(c, false) }

func (h *TickerEchoHandler) Full(c echo.Context) error { return h.snapshot(c, true) }

func (h *TickerEchoHandler) snapshot(c echo.Context, full bool) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	snap, err := h.tickers.Snapshot(c.Request().Context(), req.Ticker, full)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidTicker) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid ticker %q", req.Ticker))
		}
		h.logger.Error("ticker snapshot failed", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.RawJSON(c, http.StatusOK, snap)
}

// DataFile serves the persisted document behind /data/ticker/<name>.json.
func (h *TickerEchoHandler) DataFile(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	req := &models.DataFileRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	doc, err := h.tickers.Document(c.Request().Context(), req.Filename)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no data for %s", req.Filename))
		}
		h.logger.Error("data file read failed", xlogger.String("filename", req.Filename), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to read data file").WithError(err))
	}
	return xhttp.RawJSON(c, http.StatusOK, doc)
}

func (h *TickerEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	ticker := symbols.Canonical(req.Ticker)
	if !symbols.Valid(ticker) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid ticker %q", req.Ticker))
	}
	rows, err := h.history.Recent(c.Request().Context(), ticker, req.Limit)
	if err != nil {
		h.logger.Error("history read failed", xlogger.String("ticker", ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to read history").WithError(err))
	}
	if rows == nil {
		rows = []models.SnapshotRecord{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TickerEchoHandler) RunSimulation(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many simulation requests"))
	}
	req := &models.SimulationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	job, err := h.sims.Start(c.Request().Context(), req.Ticker)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidTicker) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid ticker %q", req.Ticker))
		}
		h.logger.Error("simulation start failed", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("simulation could not be started").WithError(err))
	}
	return xhttp.RawJSON(c, http.StatusOK, job)
}

func (h *TickerEchoHandler) SimulationStatus(c echo.Context) error {
	req := &models.SimulationStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	job, err := h.sims.Status(c.Request().Context(), req.JobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("Job not found"))
		}
		h.logger.Error("simulation status failed", xlogger.String("job_id", req.JobID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to read job").WithError(err))
	}
	return xhttp.RawJSON(c, http.StatusOK, job)
}

func (h *TickerEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.ready.Ready(ctx); err != nil {
		h.logger.Warn("readiness check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("document store unavailable"))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
