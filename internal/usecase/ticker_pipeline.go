package usecase

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	"Tradyxa/internal/services/overlay"
	"Tradyxa/internal/services/slippage"
	"Tradyxa/internal/services/symbols"
	"Tradyxa/internal/services/synthetic"
	applogger "Tradyxa/pkg/logger"
	"Tradyxa/pkg/util"
)

// ErrInvalidTicker is returned for a blank ticker, and by the simulation
// service for a ticker that is not a safe symbol.
var ErrInvalidTicker = errors.New("invalid ticker")

// Resolution is one pipeline run: the snapshot plus how it was produced.
type Resolution struct {
	Snapshot *models.TickerSnapshot
	Ticker   string        // canonical requested ticker
	Symbol   string        // persisted document name, empty when synthetic
	Source   models.Source // persisted or synthetic
	Overlay  overlay.Result
	Slippage bool // expectation derived from the distribution
}

// TickerPipeline resolves a ticker to a snapshot: persisted document if one
// exists, synthetic otherwise, then live overlay and slippage estimate.
type TickerPipeline struct {
	docs        domrepo.DocumentStore
	live        domrepo.LiveSource
	builder     *synthetic.Builder
	metrics     domrepo.Metrics
	l           *applogger.Logger
	now         func() time.Time
	readTimeout time.Duration
}

type PipelineOption func(*TickerPipeline)

// WithLiveSource replaces the document store as the live document source.
func WithLiveSource(src domrepo.LiveSource) PipelineOption {
	return func(p *TickerPipeline) {
		if src != nil {
			p.live = src
		}
	}
}

func WithBuilder(b *synthetic.Builder) PipelineOption {
	return func(p *TickerPipeline) {
		if b != nil {
			p.builder = b
		}
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *TickerPipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *TickerPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

func WithPipelineMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *TickerPipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithReadTimeout bounds the document and live reads of one resolution.
func WithReadTimeout(d time.Duration) PipelineOption {
	return func(p *TickerPipeline) { p.readTimeout = d }
}

func NewTickerPipeline(docs domrepo.DocumentStore, opts ...PipelineOption) *TickerPipeline {
	p := &TickerPipeline{
		docs:        docs,
		live:        docs,
		builder:     synthetic.NewBuilder(),
		metrics:     domrepo.NopMetrics{},
		l:           applogger.Nop(),
		now:         time.Now,
		readTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type persisted struct {
	symbol   string
	snapshot *models.TickerSnapshot
	dist     models.SlippageDistribution
}

// Resolve never fails for a non-blank ticker: every read failure degrades
// to the next fallback, and the last fallback is synthetic. A ticker that
// is not a safe document name never reaches the store.
func (p *TickerPipeline) Resolve(ctx context.Context, ticker string, full bool) (*Resolution, error) {
	t := symbols.Canonical(ticker)
	if t == "" {
		return nil, ErrInvalidTicker
	}
	storable := symbols.Valid(t)
	start := time.Now()

	readCtx := ctx
	if p.readTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, p.readTimeout)
		defer cancel()
	}

	var (
		found persisted
		live  *models.LiveDocument
	)
	g, gctx := errgroup.WithContext(readCtx)
	if storable {
		g.Go(func() error {
			found = p.loadPersisted(gctx, t)
			return nil
		})
	}
	g.Go(func() error {
		doc, err := p.live.ReadLive(gctx)
		if err != nil {
			p.l.Warn("live document read failed", applogger.Error(err))
			p.metrics.RecordError("live_read")
			return nil
		}
		live = doc
		return nil
	})
	_ = g.Wait()

	now := p.now()
	res := &Resolution{Ticker: t}
	if found.snapshot != nil {
		res.Source = models.SourcePersisted
		res.Symbol = found.symbol
		res.Snapshot = found.snapshot
		if full {
			if !res.Snapshot.HasEnrichment() {
				res.Snapshot.FillFrom(p.builder.Build(t, now))
			}
		} else {
			res.Snapshot = res.Snapshot.Basic()
		}
		if res.Snapshot.Meta == nil {
			res.Snapshot.Meta = &models.Meta{Ticker: found.symbol}
		}
	} else {
		res.Source = models.SourceSynthetic
		if full {
			res.Snapshot = p.builder.Build(t, now)
		} else {
			res.Snapshot = p.builder.BuildBasic(t, now)
		}
	}

	s := res.Snapshot
	lookup := symbols.LiveSymbol(t)
	if res.Symbol != "" {
		lookup = symbols.LiveSymbol(res.Symbol)
	}
	res.Overlay = overlay.Apply(s, live, lookup)
	if res.Overlay.Spot {
		p.metrics.RecordOverlay("spot")
	}
	if res.Overlay.VIX {
		p.metrics.RecordOverlay("vix")
	}

	if s.Metrics == nil {
		s.Metrics = &models.Metrics{}
	}
	res.Slippage = slippage.Apply(s.Metrics, found.dist)
	if s.Metrics.Verdict == nil {
		s.Metrics.Verdict = models.PlaceholderVerdict(util.ISOTimestamp(now))
	}
	s.Metrics.Normalize()

	p.metrics.RecordResolve(res.Source, full)
	p.metrics.RecordLatency("resolve", time.Since(start).Seconds())
	p.l.Debug("ticker resolved",
		applogger.String("ticker", t),
		applogger.String("symbol", res.Symbol),
		applogger.String("source", string(res.Source)),
		applogger.Bool("full", full),
		applogger.Bool("live_spot", res.Overlay.Spot),
		applogger.Bool("live_vix", res.Overlay.VIX),
	)
	return res, nil
}

// loadPersisted walks the candidate names and returns the first document
// found together with its slippage distribution.
func (p *TickerPipeline) loadPersisted(ctx context.Context, ticker string) persisted {
	for _, sym := range symbols.Candidates(ticker) {
		snap, err := p.docs.ReadTicker(ctx, sym)
		if err != nil {
			p.l.Error("ticker document read failed", applogger.String("symbol", sym), applogger.Error(err))
			p.metrics.RecordError("ticker_read")
			continue
		}
		if snap == nil {
			continue
		}
		dist, err := p.docs.ReadSlippage(ctx, sym)
		if err != nil {
			p.l.Error("slippage document read failed", applogger.String("symbol", sym), applogger.Error(err))
			p.metrics.RecordError("slippage_read")
		}
		return persisted{symbol: sym, snapshot: snap, dist: dist}
	}
	return persisted{}
}

// ResolveDocument returns the persisted document for a data file name with
// live figures overlaid and the slippage estimate filled when absent. It
// returns models.ErrNotFound when no candidate exists, and an error when
// the store itself fails.
func (p *TickerPipeline) ResolveDocument(ctx context.Context, filename string) (*Resolution, error) {
	t := symbols.FromFilename(filename)
	if !symbols.Valid(t) {
		return nil, models.ErrNotFound
	}
	if p.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.readTimeout)
		defer cancel()
	}

	var (
		snap *models.TickerSnapshot
		sym  string
	)
	for _, cand := range symbols.Candidates(t) {
		s, err := p.docs.ReadTicker(ctx, cand)
		if err != nil {
			return nil, err
		}
		if s != nil {
			snap, sym = s, cand
			break
		}
	}
	if snap == nil {
		return nil, models.ErrNotFound
	}

	var (
		dist models.SlippageDistribution
		live *models.LiveDocument
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := p.docs.ReadSlippage(gctx, sym)
		dist = d
		return err
	})
	g.Go(func() error {
		doc, err := p.live.ReadLive(gctx)
		if err != nil {
			p.metrics.RecordError("live_read")
			return nil
		}
		live = doc
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Resolution{Snapshot: snap, Ticker: t, Symbol: sym, Source: models.SourcePersisted}
	res.Overlay = overlay.Apply(snap, live, symbols.LiveSymbol(sym))
	if snap.Metrics == nil {
		snap.Metrics = &models.Metrics{}
	}
	res.Slippage = slippage.Apply(snap.Metrics, dist)
	snap.Metrics.Normalize()
	return res, nil
}
