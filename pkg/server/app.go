package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	mid "Tradyxa/internal/middleware"
	"Tradyxa/internal/usecase"
	"Tradyxa/pkg/config"
	xhttp "Tradyxa/pkg/http"
	pkgkafka "Tradyxa/pkg/kafka"
	applogger "Tradyxa/pkg/logger"
	"Tradyxa/pkg/queue"
)

// Components are the long-running parts of the service. Nil members are
// skipped.
type Components struct {
	HTTP         *xhttp.Server
	History      *mid.HistoryPipeline
	HistoryStore io.Closer
	Queue        queue.Queue
	Simulations  *usecase.SimulationService
	Consumer     *pkgkafka.Consumer
	SpotHandler  pkgkafka.MessageHandler
	Events       io.Closer
	Cache        io.Closer
	ClickHouse   io.Closer
	Redis        io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	l   *applogger.Logger
	c   Components

	started []func(ctx context.Context) error // stop funcs, in start order
}

func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, c: c}
}

// Run starts every component, blocks until ctx is done, then shuts down in
// reverse order. A component that fails to start stops the ones already
// running.
func (a *App) Run(ctx context.Context) error {
	// components outlive the signal context until shutdown stops them
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	if err := a.start(runCtx); err != nil {
		a.l.Error("startup failed", applogger.Error(err))
		_ = a.shutdown(context.WithoutCancel(ctx))
		return err
	}
	a.l.Info("tradyxa started", applogger.String("env", a.cfg.Environment))

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown(context.WithoutCancel(ctx))
}

func (a *App) start(ctx context.Context) error {
	if h := a.c.History; h != nil {
		h.Start(ctx)
		a.started = append(a.started, h.Stop)
	}

	if q := a.c.Queue; q != nil {
		if err := q.Start(); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
		a.started = append(a.started, q.Stop)
	}

	if s := a.c.Simulations; s != nil {
		if err := s.StartPruner(); err != nil {
			return err
		}
		a.started = append(a.started, s.StopPruner)
	}

	if c := a.c.Consumer; c != nil && a.c.SpotHandler != nil {
		c.RegisterHandler(a.c.SpotHandler)
		if err := c.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.started = append(a.started, c.Stop)
		a.l.Info("kafka consumer started", applogger.String("topic", a.c.SpotHandler.Topic()))
	}

	if s := a.c.HTTP; s != nil {
		if err := s.Start(); err != nil {
			return fmt.Errorf("start http: %w", err)
		}
		a.started = append(a.started, s.Stop)
	}
	return nil
}

// shutdown stops the started components newest first and then releases
// the clients they shared.
func (a *App) shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*timeout)
		defer cancel()
	}

	var errs []error
	for i := len(a.started) - 1; i >= 0; i-- {
		if err := a.started[i](ctx); err != nil {
			a.l.Warn("component stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.started = nil

	closers := []struct {
		name string
		c    io.Closer
	}{
		{"events", a.c.Events},
		{"history store", a.c.HistoryStore},
		{"clickhouse", a.c.ClickHouse},
		{"cache", a.c.Cache},
		{"redis", a.c.Redis},
	}
	for _, cl := range closers {
		if cl.c == nil {
			continue
		}
		if err := cl.c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", cl.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", cl.name, err))
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
