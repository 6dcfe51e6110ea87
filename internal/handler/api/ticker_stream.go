package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"Tradyxa/internal/domain/models"
	"Tradyxa/internal/service/ratelimit"
	"Tradyxa/internal/services/symbols"
	"Tradyxa/internal/usecase"
	xhttp "Tradyxa/pkg/http"
	xlogger "Tradyxa/pkg/logger"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// TickerStreamHandler pushes the basic snapshot of a ticker over a
// websocket every interval.
type TickerStreamHandler struct {
	logger   *xlogger.Logger
	tickers  *usecase.TickerService
	limiter  *ratelimit.Limiter
	interval time.Duration
	upgrader websocket.Upgrader
}

func NewTickerStreamHandler(logger *xlogger.Logger, tickers *usecase.TickerService, limiter *ratelimit.Limiter, interval time.Duration) *TickerStreamHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &TickerStreamHandler{
		logger:   logger,
		tickers:  tickers,
		limiter:  limiter,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *TickerStreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ticker/:ticker/stream", h.Stream)
}

func (h *TickerStreamHandler) Stream(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	ticker := symbols.Canonical(req.Ticker)
	if ticker == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid ticker %q", req.Ticker))
	}
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many stream connections"))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Warn("websocket upgrade failed", xlogger.String("ticker", ticker), xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	log := h.logger.With(xlogger.String("ticker", ticker), xlogger.String("remote", c.RealIP()))
	log.Debug("stream opened")

	// the read loop only exists to notice the client going away
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request().Context()
	push := time.NewTicker(h.interval)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	send := func() bool {
		snap, err := h.tickers.Snapshot(ctx, ticker, false)
		if err != nil {
			log.Warn("stream snapshot failed", xlogger.Error(err))
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snap); err != nil {
			log.Debug("stream write failed", xlogger.Error(err))
			return false
		}
		return true
	}

	if !send() {
		return nil
	}
	for {
		select {
		case <-push.C:
			if !send() {
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		case <-closed:
			log.Debug("stream closed")
			return nil
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return nil
		}
	}
}
