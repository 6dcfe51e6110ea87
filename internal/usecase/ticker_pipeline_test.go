package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tradyxa/internal/domain/models"
	"Tradyxa/internal/repository"
	"Tradyxa/internal/services/symbols"
	"Tradyxa/internal/services/synthetic"
)

const relianceDoc = `{
	"meta": {"ticker": "RELIANCE.NS", "name": "Reliance Industries"},
	"metrics": {"spot_price": 2900, "spotChangePercent": 0.1, "vix_latest": 12.5, "custom_score": 7},
	"candles": [{"date": "2025-03-13", "open": 2890, "high": 2910, "low": 2880, "close": 2900, "volume": 1000}]
}`

const liveDoc = `{
	"last_updated": "2025-03-14T10:29:00Z",
	"india_vix": {"vix": 14.2},
	"spot_prices": {
		"RELIANCE.NS": {"ticker": "RELIANCE.NS", "spot_price": 2950, "change_percent": 0.8},
		"^NSEI": {"ticker": "^NSEI", "spot_price": 22500, "change_percent": -0.5}
	}
}`

func newPipeline(docs *memDocs, opts ...PipelineOption) *TickerPipeline {
	return NewTickerPipeline(docs, append([]PipelineOption{WithClock(clock)}, opts...)...)
}

func TestResolvePersistedWithLiveOverlay(t *testing.T) {
	docs := newMemDocs()
	docs.tickers["RELIANCE.NS"] = relianceDoc
	docs.slippage["RELIANCE.NS"] = `{"10000":{"median":0.001},"50000":{"median":0.003}}`
	docs.live = liveDoc
	metrics := newCountingMetrics()

	res, err := newPipeline(docs, WithPipelineMetrics(metrics)).Resolve(context.Background(), " reliance ", false)
	require.NoError(t, err)

	assert.Equal(t, models.SourcePersisted, res.Source)
	assert.Equal(t, "RELIANCE", res.Ticker)
	assert.Equal(t, "RELIANCE.NS", res.Symbol)
	assert.Equal(t, "RELIANCE.NS", res.Snapshot.Meta.Ticker)

	m := res.Snapshot.Metrics
	assert.Equal(t, 2950.0, *m.SpotPrice)
	assert.Equal(t, 2950.0, *m.LegacySpotPrice)
	assert.Equal(t, 0.8, *m.SpotChangePercent)
	assert.InDelta(t, 23.6, *m.SpotChange, 1e-9)
	assert.Equal(t, 14.2, *m.VIX)
	assert.Equal(t, 14.2, *m.VIXLatest)
	assert.Equal(t, 0.2, *m.SlippageExpectation)
	assert.Contains(t, m.Extra, "custom_score")

	require.NotNil(t, m.Verdict)
	assert.Equal(t, models.QualityInsufficient, m.Verdict.DataQuality)
	assert.Nil(t, res.Snapshot.Candles, "basic view carries no arrays")

	assert.Equal(t, 1, metrics.resolves[models.SourcePersisted])
	assert.ElementsMatch(t, []string{"spot", "vix"}, metrics.overlays)
}

func TestResolveFullKeepsPersistedArrays(t *testing.T) {
	docs := newMemDocs()
	docs.tickers["RELIANCE.NS"] = relianceDoc

	res, err := newPipeline(docs).Resolve(context.Background(), "RELIANCE", true)
	require.NoError(t, err)

	s := res.Snapshot
	require.Len(t, s.Candles, 1)
	assert.Equal(t, 2900.0, s.Candles[0].Close)
	assert.NotEmpty(t, s.VolumeProfile)
	assert.NotEmpty(t, s.Orderbook)
	assert.NotEmpty(t, s.TimelineEvents)
	assert.NotEmpty(t, s.MonteCarlo)
	assert.NotEmpty(t, s.Histogram)
	// no live document: persisted figures stand
	assert.Equal(t, 2900.0, *s.Metrics.SpotPrice)
	assert.Equal(t, 12.5, *s.Metrics.VIX)
}

func TestResolveSyntheticFallback(t *testing.T) {
	docs := newMemDocs()
	p := newPipeline(docs)

	full, err := p.Resolve(context.Background(), "ZOMATO", true)
	require.NoError(t, err)
	assert.Equal(t, models.SourceSynthetic, full.Source)
	assert.Empty(t, full.Symbol)
	assert.NotEmpty(t, full.Snapshot.Candles)
	require.NotNil(t, full.Snapshot.Metrics.Verdict)

	basic, err := p.Resolve(context.Background(), "ZOMATO", false)
	require.NoError(t, err)
	assert.Nil(t, basic.Snapshot.Candles)
	assert.Equal(t, *full.Snapshot.Metrics.SpotPrice, *basic.Snapshot.Metrics.SpotPrice)
}

func TestResolveMalformedDocumentFallsBackToSynthetic(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ticker"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ticker", "TCS.NS.json"), []byte("<html>oops</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ticker", "TCS.json"), []byte(""), 0o644))

	metrics := newCountingMetrics()
	store := repository.NewFSDocumentStore(root, "live/spot_prices.json", repository.WithMetrics(metrics))
	res, err := NewTickerPipeline(store, WithClock(clock)).Resolve(context.Background(), "TCS", false)
	require.NoError(t, err)
	assert.Equal(t, models.SourceSynthetic, res.Source)
	assert.NotNil(t, res.Snapshot.Metrics.SpotPrice)
	assert.Len(t, metrics.malformed, 2)
}

func TestResolveIndexAlias(t *testing.T) {
	docs := newMemDocs()
	docs.tickers["^NSEI"] = `{"meta":{"ticker":"^NSEI"},"metrics":{"spot_price":22000}}`
	docs.live = liveDoc

	res, err := newPipeline(docs).Resolve(context.Background(), "nifty", false)
	require.NoError(t, err)
	assert.Equal(t, models.SourcePersisted, res.Source)
	assert.Equal(t, "^NSEI", res.Symbol)
	assert.True(t, res.Overlay.Spot)
	assert.Equal(t, 22500.0, *res.Snapshot.Metrics.SpotPrice)
	assert.Equal(t, -0.5, *res.Snapshot.Metrics.SpotChangePercent)
}

func TestResolveSyntheticUsesLiveSymbol(t *testing.T) {
	docs := newMemDocs()
	docs.live = liveDoc

	for _, full := range []bool{false, true} {
		res, err := newPipeline(docs).Resolve(context.Background(), "RELIANCE", full)
		require.NoError(t, err)
		assert.Equal(t, models.SourceSynthetic, res.Source)
		assert.True(t, res.Overlay.Spot)
		assert.True(t, res.Overlay.VIX)

		m := res.Snapshot.Metrics
		assert.Equal(t, 2950.0, *m.SpotPrice)
		assert.Equal(t, 2950.0, *m.LegacySpotPrice)
		assert.InDelta(t, 23.6, *m.SpotChange, 1e-9)
		assert.Equal(t, 0.8, *m.SpotChangePercent)
		assert.Equal(t, 14.2, *m.VIX)
		assert.NotNil(t, m.Verdict)

		if !full {
			assert.Nil(t, res.Snapshot.Candles)
			continue
		}
		want := synthetic.NewBuilder().Build("RELIANCE", clock())
		s := res.Snapshot
		assert.Equal(t, want.Candles, s.Candles)
		assert.Equal(t, want.VolumeProfile, s.VolumeProfile)
		assert.Equal(t, want.Orderbook, s.Orderbook)
		assert.Equal(t, want.SlippageSamples, s.SlippageSamples)
		assert.Equal(t, want.TimelineEvents, s.TimelineEvents)
		assert.Equal(t, want.Heatmap, s.Heatmap)
		assert.Equal(t, want.MonteCarlo, s.MonteCarlo)
		assert.Equal(t, want.BollingerBands, s.BollingerBands)
		assert.Equal(t, want.RollingAverages, s.RollingAverages)
		assert.Equal(t, want.AbsorptionFlow, s.AbsorptionFlow)
		assert.Equal(t, want.Histogram, s.Histogram)
	}
}

func TestResolveDegradesOnStoreErrors(t *testing.T) {
	docs := newMemDocs()
	docs.failRead["INFY"] = errors.New("permission denied")
	docs.tickers["INFY.NS"] = `{"meta":{"ticker":"INFY.NS"},"metrics":{"spot_price":1500}}`
	docs.liveErr = errors.New("live down")

	res, err := newPipeline(docs).Resolve(context.Background(), "INFY", false)
	require.NoError(t, err)
	assert.Equal(t, models.SourcePersisted, res.Source)
	assert.Equal(t, "INFY.NS", res.Symbol)
	assert.False(t, res.Overlay.Any())
	assert.Equal(t, 1500.0, *res.Snapshot.Metrics.SpotPrice)
}

func TestResolveRejectsBlankTickers(t *testing.T) {
	p := newPipeline(newMemDocs())
	for _, in := range []string{"", "   "} {
		_, err := p.Resolve(context.Background(), in, false)
		assert.ErrorIs(t, err, ErrInvalidTicker, in)
	}
}

func TestResolveUnsafeTickersAreSynthetic(t *testing.T) {
	docs := newMemDocs()
	p := newPipeline(docs)
	for _, in := range []string{"../etc/passwd", "NIFTY 50", "ÉTOILE", strings.Repeat("X", 40)} {
		res, err := p.Resolve(context.Background(), in, true)
		require.NoError(t, err, in)
		assert.Equal(t, models.SourceSynthetic, res.Source, in)
		assert.Empty(t, res.Symbol, in)
		assert.NotNil(t, res.Snapshot.Metrics.Verdict, in)
		assert.True(t, res.Snapshot.HasEnrichment(), in)
		assert.Equal(t, synthetic.NewBuilder().Build(symbols.Canonical(in), clock()).Candles, res.Snapshot.Candles, in)
	}
	assert.Zero(t, docs.tickReads, "unsafe names never reach the store")
}

func TestResolveDocument(t *testing.T) {
	docs := newMemDocs()
	docs.tickers["RELIANCE.NS"] = relianceDoc
	docs.slippage["RELIANCE.NS"] = `{"A":{"median":0.004}}`
	docs.live = liveDoc
	p := newPipeline(docs)

	res, err := p.ResolveDocument(context.Background(), "RELIANCE.json")
	require.NoError(t, err)
	s := res.Snapshot
	require.Len(t, s.Candles, 1, "data route returns the document untouched apart from overlays")
	assert.Empty(t, s.Orderbook)
	assert.Equal(t, 2950.0, *s.Metrics.SpotPrice)
	assert.Equal(t, 14.2, *s.Metrics.VIX)
	assert.Equal(t, 0.4, *s.Metrics.SlippageExpectation)
	assert.Nil(t, s.Metrics.Verdict)

	_, err = p.ResolveDocument(context.Background(), "UNKNOWN.json")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = p.ResolveDocument(context.Background(), "../../secret.json")
	assert.ErrorIs(t, err, models.ErrNotFound)

	docs.failRead["WIPRO"] = errors.New("disk gone")
	_, err = p.ResolveDocument(context.Background(), "wipro.json")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)
}
