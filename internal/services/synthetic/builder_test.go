package synthetic

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tradyxa/internal/domain/models"
)

var fixedNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func TestRandomIsDeterministic(t *testing.T) {
	a, b := NewRandom("RELIANCEFri Mar 14 2025"), NewRandom("RELIANCEFri Mar 14 2025")
	for i := 0; i < 100; i++ {
		x, y := a.Float64(), b.Float64()
		require.Equal(t, x, y)
		require.GreaterOrEqual(t, x, 0.0)
		require.Less(t, x, 1.0)
	}
	assert.NotEqual(t, NewRandom("A").Float64(), NewRandom("B").Float64())
}

func TestSeedChangesDaily(t *testing.T) {
	assert.Equal(t, "TCSFri Mar 14 2025", Seed("TCS", fixedNow))
	assert.Equal(t, Seed("TCS", fixedNow), Seed("TCS", fixedNow.Add(time.Hour)))
	assert.NotEqual(t, Seed("TCS", fixedNow), Seed("TCS", fixedNow.AddDate(0, 0, 1)))
}

func TestBuildIsBitIdentical(t *testing.T) {
	b := NewBuilder()
	for _, ticker := range []string{"RELIANCE", "NIFTY", "UNLISTEDCO"} {
		first, err := json.Marshal(b.Build(ticker, fixedNow))
		require.NoError(t, err)
		second, err := json.Marshal(NewBuilder().Build(ticker, fixedNow))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(second), ticker)
	}
}

func TestBuildIsComplete(t *testing.T) {
	for _, ticker := range []string{"RELIANCE", "ZZZ", "X"} {
		s := NewBuilder().Build(ticker, fixedNow)
		require.NotNil(t, s.Meta)
		require.NotNil(t, s.Metrics)
		require.NotNil(t, s.Metrics.Verdict, ticker)
		assert.True(t, s.HasEnrichment(), ticker)

		assert.Len(t, s.Candles, 60)
		assert.Len(t, s.VolumeProfile, 21)
		assert.Len(t, s.Orderbook, 30)
		assert.Len(t, s.SlippageSamples, 50)
		assert.Len(t, s.TimelineEvents, 8)
		assert.Len(t, s.Heatmap, 35)
		assert.Len(t, s.MonteCarlo, 5)
		assert.Len(t, s.BollingerBands, 30)
		assert.Len(t, s.RollingAverages, 30)
		assert.Len(t, s.AbsorptionFlow, 30)
		assert.Len(t, s.Histogram, 13)

		m := s.Metrics
		assert.Equal(t, *m.SpotPrice, *m.LegacySpotPrice)
		assert.Equal(t, *m.VIX, *m.VIXLatest)
	}
}

func TestBasicMatchesFull(t *testing.T) {
	b := NewBuilder()
	full := b.Build("UNKNOWNTICKER", fixedNow)
	basic := b.BuildBasic("UNKNOWNTICKER", fixedNow)

	fullMeta, _ := json.Marshal(full.Meta)
	basicMeta, _ := json.Marshal(basic.Meta)
	assert.JSONEq(t, string(fullMeta), string(basicMeta))
	fullMetrics, _ := json.Marshal(full.Metrics)
	basicMetrics, _ := json.Marshal(basic.Metrics)
	assert.JSONEq(t, string(fullMetrics), string(basicMetrics))
	assert.Empty(t, basic.Candles)
}

func TestKnownTickerMetrics(t *testing.T) {
	s := NewBuilder().Build("RELIANCE", fixedNow)
	assert.Equal(t, 2945.30, *s.Metrics.SpotPrice)
	assert.Equal(t, "Reliance Industries Ltd", s.Meta.Name)
	assert.Equal(t, "NSE", s.Meta.Exchange)
	assert.Equal(t, "INR", s.Meta.Currency)
	assert.Equal(t, "2025-03-14T10:30:00.000Z", s.Meta.LastUpdated)

	other := NewBuilder().Build("ACME", fixedNow)
	assert.Equal(t, "ACME Ltd", other.Meta.Name)
	assert.GreaterOrEqual(t, *other.Metrics.SpotPrice, 1000.0)
	assert.LessOrEqual(t, *other.Metrics.SpotPrice, 5000.0)
}

func TestVerdictShape(t *testing.T) {
	for _, ticker := range []string{"TCS", "INFY", "A", "B", "C", "D"} {
		v := NewBuilder().Build(ticker, fixedNow).Metrics.Verdict
		require.NotNil(t, v.Components)
		assert.Len(t, v.Components.List, 5)
		assert.GreaterOrEqual(t, *v.Confidence, 0.45)
		assert.LessOrEqual(t, *v.Confidence, 0.90)
		assert.Contains(t, v.Explanation, ticker)
		assert.Contains(t, []models.DataQuality{models.QualityGood, models.QualityLow, models.QualityInsufficient}, v.DataQuality)
		switch v.Direction {
		case models.Neutral:
			assert.Zero(t, *v.Points)
		case models.Bullish:
			assert.GreaterOrEqual(t, *v.Points, 20.0)
		case models.Bearish:
			assert.LessOrEqual(t, *v.Points, -20.0)
		default:
			t.Fatalf("unexpected direction %q", v.Direction)
		}
		n := *v.SampleCount.Total
		assert.GreaterOrEqual(t, n, 100.0)
		assert.Less(t, n, 600.0)
	}
}

func TestQualityPolicy(t *testing.T) {
	always := NewBuilder(WithQualityPolicy(QualityPolicy{MetaGood: -1, VerdictGood: -1, VerdictLow: -1}))
	never := NewBuilder(WithQualityPolicy(QualityPolicy{MetaGood: 1, VerdictGood: 1, VerdictLow: 1}))

	s := always.BuildBasic("TCS", fixedNow)
	assert.Equal(t, models.QualityGood, s.Meta.DataQuality)
	assert.Equal(t, models.QualityGood, s.Metrics.Verdict.DataQuality)

	s = never.BuildBasic("TCS", fixedNow)
	assert.Equal(t, models.QualityLow, s.Meta.DataQuality)
	assert.Equal(t, models.QualityInsufficient, s.Metrics.Verdict.DataQuality)
}

func TestSeriesInvariants(t *testing.T) {
	s := NewBuilder().Build("HDFCBANK", fixedNow)
	base := *s.Metrics.SpotPrice

	for i, c := range s.Candles {
		assert.GreaterOrEqual(t, c.High, math.Max(c.Open, c.Close)-0.01, "candle %d", i)
		assert.LessOrEqual(t, c.Low, math.Min(c.Open, c.Close)+0.01, "candle %d", i)
		assert.GreaterOrEqual(t, c.Volume, 500_000.0)
		assert.LessOrEqual(t, c.Volume, 2_500_000.0)
	}
	assert.Equal(t, "2025-03-14", s.Candles[59].Date)
	assert.Equal(t, "2025-01-14", s.Candles[0].Date)

	for _, l := range s.Orderbook {
		if l.Price < base {
			assert.Zero(t, l.AskQty)
			assert.Positive(t, l.BidQty)
		} else {
			assert.Zero(t, l.BidQty)
			assert.Positive(t, l.AskQty)
		}
	}

	for i := 1; i < len(s.TimelineEvents); i++ {
		assert.LessOrEqual(t, s.TimelineEvents[i-1].Timestamp, s.TimelineEvents[i].Timestamp)
	}
	for _, e := range s.TimelineEvents {
		assert.NotEmpty(t, e.Title)
		if e.Type != models.EventEconomic {
			assert.Contains(t, e.Title, "HDFCBANK")
		}
	}

	var running float64
	for _, h := range s.Histogram {
		running += h.Count
		assert.Equal(t, running, h.Cumulative)
	}
	assert.Equal(t, -3.0, s.Histogram[0].Bin)
	assert.Equal(t, 3.0, s.Histogram[12].Bin)

	for _, a := range s.AbsorptionFlow {
		assert.InDelta(t, a.BuyFlow-a.SellFlow, a.NetFlow, 1)
	}

	first := s.BollingerBands[0]
	assert.Equal(t, first.Close, first.Middle)
	assert.Equal(t, first.Upper, first.Lower)
	assert.Equal(t, s.Candles[30].Date, first.Date)

	r := s.RollingAverages[0]
	assert.Equal(t, r.Value, r.MA5)
	assert.Equal(t, r.Value, r.MA50)
}
