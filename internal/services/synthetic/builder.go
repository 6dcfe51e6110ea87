// Package synthetic fabricates deterministic placeholder snapshots for
// tickers that have no persisted data.
//
// Every value comes from one Random seeded with the ticker and the calendar
// day, consumed in a fixed order:
//
//	base price (unknown tickers only), change, meta quality,
//	vix, vixChange, slippageExpectation, slippageStd,
//	avgVolume, volumeChange, openInterest, oiChange,
//	impliedVolatility, historicalVolatility,
//	verdict (direction, confidence, points, error,
//	         5 x (weight, value, contribution), quality, samples),
//	candles (start, then change/high/low/volume per day),
//	volume profile (volume, buy ratio per bucket),
//	order book (qty per level),
//	slippage samples (volume, factor, sign per sample),
//	timeline events (offset, type, title, impact per event),
//	heatmap (value, count per cell),
//	Monte-Carlo (per percentile, per step),
//	absorption (buy, sell per candle),
//	histogram (factor per bin).
//
// Bollinger bands and rolling averages draw nothing.
package synthetic

import (
	"math"
	"time"

	"Tradyxa/internal/domain/models"
	"Tradyxa/pkg/util"
)

// QualityPolicy holds the draw thresholds that decide data-quality labels.
type QualityPolicy struct {
	MetaGood    float64 // meta is GOOD above this, LOW otherwise
	VerdictGood float64 // verdict is GOOD above this
	VerdictLow  float64 // otherwise a second draw above this gives LOW, else INSUFFICIENT
}

func DefaultQualityPolicy() QualityPolicy {
	return QualityPolicy{MetaGood: 0.2, VerdictGood: 0.3, VerdictLow: 0.5}
}

type Builder struct {
	policy QualityPolicy
}

type Option func(*Builder)

func WithQualityPolicy(p QualityPolicy) Option {
	return func(b *Builder) { b.policy = p }
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{policy: DefaultQualityPolicy()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build returns a fully populated snapshot for ticker as of now.
func (b *Builder) Build(ticker string, now time.Time) *models.TickerSnapshot {
	r := NewRandom(Seed(ticker, now))
	s := b.basic(r, ticker, now)

	base := *s.Metrics.SpotPrice
	s.Candles = candles(r, base, now)
	s.VolumeProfile = volumeProfile(r, base)
	s.Orderbook = orderbook(r, base)
	s.SlippageSamples = slippageSamples(r, base, now)
	s.TimelineEvents = timelineEvents(r, ticker, now)
	s.Heatmap = heatmap(r)
	s.MonteCarlo = monteCarlo(r, base)

	recent := lastN(s.Candles, 30)
	s.BollingerBands = bollinger(recent)
	s.RollingAverages = rollingAverages(recent)
	s.AbsorptionFlow = absorption(r, recent)
	s.Histogram = histogram(r)
	return s
}

// BuildBasic returns the meta and metrics of Build without the enrichment
// arrays. The values are identical to those of Build for the same inputs.
func (b *Builder) BuildBasic(ticker string, now time.Time) *models.TickerSnapshot {
	return b.basic(NewRandom(Seed(ticker, now)), ticker, now)
}

func (b *Builder) basic(r *Random, ticker string, now time.Time) *models.TickerSnapshot {
	base, known := basePrices[ticker]
	if !known {
		base = 1000 + r.Float64()*4000
	}
	change := (r.Float64() - 0.5) * base * 0.02
	changePercent := change / base * 100

	meta := &models.Meta{
		Ticker:      ticker,
		Name:        DisplayName(ticker),
		Exchange:    "NSE",
		Currency:    "INR",
		LastUpdated: util.ISOTimestamp(now),
		DataQuality: models.QualityLow,
	}
	if r.Float64() > b.policy.MetaGood {
		meta.DataQuality = models.QualityGood
	}

	spot := util.Round(base, 2)
	m := &models.Metrics{
		SpotPrice:         models.Ptr(spot),
		LegacySpotPrice:   models.Ptr(spot),
		SpotChange:        models.Ptr(util.Round(change, 2)),
		SpotChangePercent: models.Ptr(util.Round(changePercent, 2)),
	}
	m.SetVIX(12 + r.Float64()*15)
	m.VIXChange = models.Ptr((r.Float64() - 0.5) * 2)
	m.SlippageExpectation = models.Ptr(0.02 + r.Float64()*0.08)
	m.SlippageStd = models.Ptr(0.01 + r.Float64()*0.03)
	m.AvgVolume = models.Ptr(1_000_000 + r.Float64()*5_000_000)
	m.VolumeChange = models.Ptr((r.Float64() - 0.5) * 30)
	m.OpenInterest = models.Ptr(500_000 + r.Float64()*2_000_000)
	m.OIChange = models.Ptr((r.Float64() - 0.5) * 15)
	m.ImpliedVolatility = models.Ptr(15 + r.Float64()*20)
	m.HistoricalVolatility = models.Ptr(12 + r.Float64()*18)
	m.Verdict = b.verdict(r, ticker, now)

	return &models.TickerSnapshot{Meta: meta, Metrics: m}
}

func (b *Builder) verdict(r *Random, ticker string, now time.Time) *models.Verdict {
	direction := directions[r.Intn(len(directions))]
	confidence := 0.45 + r.Float64()*0.45

	var points float64
	switch direction {
	case models.Bullish:
		points = r.Float64()*150 + 20
	case models.Bearish:
		points = -(r.Float64()*150 + 20)
	}
	errBand := points*0.15 + r.Float64()*10

	sign := 0.5
	switch direction {
	case models.Bullish:
		sign = 1
	case models.Bearish:
		sign = -1
	}
	components := make([]models.VerdictComponent, len(componentNames))
	for i, name := range componentNames {
		components[i] = models.VerdictComponent{
			Name:         name,
			Weight:       0.1 + r.Float64()*0.3,
			Value:        r.Float64()*100 - 50,
			Contribution: (r.Float64()*40 - 20) * sign,
		}
	}

	quality := models.QualityInsufficient
	switch {
	case r.Float64() > b.policy.VerdictGood:
		quality = models.QualityGood
	case r.Float64() > b.policy.VerdictLow:
		quality = models.QualityLow
	}
	samples := math.Floor(r.Float64()*500 + 100)

	return &models.Verdict{
		Timestamp:   util.ISOTimestamp(now),
		Direction:   direction,
		Points:      models.Ptr(util.Round(points, 1)),
		Error:       models.Ptr(util.Round(errBand, 1)),
		Confidence:  models.Ptr(util.Round(confidence, 2)),
		Components:  &models.Components{List: components},
		Explanation: explanation(ticker, direction),
		DataQuality: quality,
		SampleCount: &models.SampleCount{Total: models.Ptr(samples)},
		Params:      map[string]any{"lookback": 20, "smoothing": 0.8},
	}
}
