package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerSnapshotKeepsUnknownMembers(t *testing.T) {
	in := `{
		"meta": {"ticker": "TCS", "dataQuality": "GOOD", "sector": "IT"},
		"metrics": {"spot_price": 4100.5, "custom_score": 7, "verdict": {"timestamp": "t", "direction": "UP", "model": "v2"}},
		"candles": [{"date": "2025-01-01", "open": 1, "high": 2, "low": 0.5, "close": 1.5, "volume": 100}],
		"analysis": {"note": "kept"}
	}`

	var s TickerSnapshot
	require.NoError(t, json.Unmarshal([]byte(in), &s))

	assert.Equal(t, "TCS", s.Meta.Ticker)
	assert.Equal(t, QualityGood, s.Meta.DataQuality)
	assert.JSONEq(t, `"IT"`, string(s.Meta.Extra["sector"]))
	assert.JSONEq(t, `7`, string(s.Metrics.Extra["custom_score"]))
	assert.Equal(t, Bullish, s.Metrics.Verdict.Direction)
	assert.JSONEq(t, `"v2"`, string(s.Metrics.Verdict.Extra["model"]))
	require.Len(t, s.Candles, 1)
	assert.Contains(t, s.Extra, "analysis")
	assert.NotContains(t, s.Extra, "candles")

	out, err := json.Marshal(s)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, map[string]any{"note": "kept"}, back["analysis"])
	meta := back["meta"].(map[string]any)
	assert.Equal(t, "IT", meta["sector"])
	metrics := back["metrics"].(map[string]any)
	assert.Equal(t, float64(7), metrics["custom_score"])
	assert.Equal(t, "BULLISH", metrics["verdict"].(map[string]any)["direction"])
}

func TestMetricsKeepMismatchedMembers(t *testing.T) {
	in := `{"spot_price": 2950, "ml_regime_label": 2, "ml_regime_prob": [0.1, 0.2, 0.7], "vix_latest": "n/a", "verdict": {"timestamp": "t", "direction": "UP", "components": "x"}}`

	var m Metrics
	require.NoError(t, json.Unmarshal([]byte(in), &m))
	assert.Equal(t, 2950.0, *m.SpotPrice)
	assert.JSONEq(t, `2`, string(m.MLRegimeLabel))
	assert.JSONEq(t, `[0.1, 0.2, 0.7]`, string(m.MLRegimeProb))
	assert.Nil(t, m.VIXLatest)
	assert.JSONEq(t, `"n/a"`, string(m.Extra["vix_latest"]))
	require.NotNil(t, m.Verdict)
	assert.Nil(t, m.Verdict.Components)
	assert.JSONEq(t, `"x"`, string(m.Verdict.Extra["components"]))

	out, err := json.Marshal(m)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, float64(2), back["ml_regime_label"])
	assert.Equal(t, []any{0.1, 0.2, 0.7}, back["ml_regime_prob"])
	assert.Equal(t, "n/a", back["vix_latest"])

	require.NoError(t, json.Unmarshal([]byte(`{"ml_regime_label": "HIGH_VOL", "ml_regime_prob": 0.81}`), &m))
	assert.JSONEq(t, `"HIGH_VOL"`, string(m.MLRegimeLabel))
	assert.JSONEq(t, `0.81`, string(m.MLRegimeProb))

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &m))
}

func TestEnrichmentItemsRoundTrip(t *testing.T) {
	in := `{
		"histogram": [{"bin": -1.25, "count": 4, "percentage": 1.6}],
		"bollingerBands": [{"date": "2025-01-01", "close": 10, "sma": null, "upper": null, "lower": null}],
		"rollingAverages": [{"date": "2025-01-01", "close": 10, "ma5": 9.5, "ma20": null, "ma50": null}]
	}`

	var s TickerSnapshot
	require.NoError(t, json.Unmarshal([]byte(in), &s))
	require.Len(t, s.Histogram, 1)
	assert.Equal(t, 4.0, s.Histogram[0].Count)
	assert.JSONEq(t, `1.6`, string(s.Histogram[0].Extra["percentage"]))
	assert.Equal(t, 9.5, s.RollingAverages[0].MA5)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))

	c := s.Clone()
	c.Histogram[0].Cumulative = 4
	out, err = json.Marshal(c.Histogram[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"bin": -1.25, "count": 4, "percentage": 1.6, "cumulative": 4}`, string(out))

	fresh, err := json.Marshal(HistogramBin{Bin: 0, Count: 0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bin": 0, "count": 0, "cumulative": 0}`, string(fresh))
}

func TestDirectionAliases(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
	}{
		{`"UP"`, Bullish},
		{`"DOWN"`, Bearish},
		{`"NEUTRAL"`, Neutral},
		{`"BEARISH"`, Bearish},
	}
	for _, tt := range tests {
		var d Direction
		require.NoError(t, json.Unmarshal([]byte(tt.in), &d))
		assert.Equal(t, tt.want, d, tt.in)
	}
}

func TestComponentsPreserveShape(t *testing.T) {
	var list Components
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"Momentum Score","weight":0.2,"value":10,"contribution":3}]`), &list))
	require.Len(t, list.List, 1)
	assert.Equal(t, "Momentum Score", list.List[0].Name)
	out, err := json.Marshal(list)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Momentum Score","weight":0.2,"value":10,"contribution":3}]`, string(out))

	var mapping Components
	require.NoError(t, json.Unmarshal([]byte(`{"momentum":1.0,"flow":-0.0645}`), &mapping))
	assert.Equal(t, -0.0645, mapping.Mapping["flow"])
	out, err = json.Marshal(mapping)
	require.NoError(t, err)
	assert.JSONEq(t, `{"momentum":1.0,"flow":-0.0645}`, string(out))

	var bad Components
	assert.Error(t, json.Unmarshal([]byte(`"x"`), &bad))
}

func TestSampleCountShapes(t *testing.T) {
	var v Verdict
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"t","direction":"NEUTRAL","n_samples":250}`), &v))
	require.NotNil(t, v.SampleCount.Total)
	assert.Equal(t, 250.0, *v.SampleCount.Total)

	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"t","direction":"NEUTRAL","n_samples":{"slippage":10,"monte":2000}}`), &v))
	require.NotNil(t, v.SampleCount.Breakdown)
	assert.Equal(t, 10.0, *v.SampleCount.Breakdown.Slippage)
	assert.Nil(t, v.SampleCount.Breakdown.Features)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"n_samples":{"slippage":10,"monte":2000}`)
}

func TestMetricsMirroring(t *testing.T) {
	m := &Metrics{}
	m.SetSpot(105, 2.5)
	assert.Equal(t, 105.0, *m.SpotPrice)
	assert.Equal(t, 105.0, *m.LegacySpotPrice)
	assert.Equal(t, 2.5, *m.SpotChangePercent)
	assert.Equal(t, 2.625, *m.SpotChange)

	m.SetVIX(14.2)
	assert.Equal(t, 14.2, *m.VIX)
	assert.Equal(t, 14.2, *m.VIXLatest)

	legacy := &Metrics{LegacySpotPrice: Ptr(100.0), VIXLatest: Ptr(13.0)}
	legacy.Normalize()
	assert.Equal(t, 100.0, *legacy.SpotPrice)
	assert.Equal(t, 13.0, *legacy.VIX)

	legacy.Normalize()
	assert.Equal(t, 100.0, *legacy.LegacySpotPrice)
}

func TestCloneIsIndependent(t *testing.T) {
	s := &TickerSnapshot{
		Meta:       &Meta{Ticker: "INFY"},
		Metrics:    &Metrics{SpotPrice: Ptr(10.0), Verdict: &Verdict{Direction: Neutral}},
		Candles:    []Candle{{Close: 1}},
		MonteCarlo: []MonteCarloBand{{Percentile: 50, Values: []float64{1, 2}}},
	}
	c := s.Clone()
	c.Meta.Ticker = "TCS"
	c.Metrics.SetSpot(20, 1)
	c.Metrics.Verdict.Direction = Bullish
	c.Candles[0].Close = 9
	c.MonteCarlo[0].Values[0] = 9

	assert.Equal(t, "INFY", s.Meta.Ticker)
	assert.Equal(t, 10.0, *s.Metrics.SpotPrice)
	assert.Equal(t, Neutral, s.Metrics.Verdict.Direction)
	assert.Equal(t, 1.0, s.Candles[0].Close)
	assert.Equal(t, 1.0, s.MonteCarlo[0].Values[0])
}

func TestFillFromKeepsPersistedArrays(t *testing.T) {
	s := &TickerSnapshot{Candles: []Candle{{Date: "real"}}}
	src := &TickerSnapshot{
		Candles:        []Candle{{Date: "synthetic"}},
		TimelineEvents: []TimelineEvent{{Title: "x"}},
		Histogram:      []HistogramBin{{Bin: 0}},
	}
	s.FillFrom(src)
	assert.Equal(t, "real", s.Candles[0].Date)
	assert.Len(t, s.TimelineEvents, 1)
	assert.Len(t, s.Histogram, 1)
	assert.False(t, s.HasEnrichment())
}

func TestSlippageDistributionIsLenient(t *testing.T) {
	in := `{"1000": {"median": 0.001, "p90": 0.004}, "5000": "oops", "9000": {"median": "x"}, "12000": {"p50": 1}, "20000": {"median": null}, "30000": {"median": 0.003}}`
	var d SlippageDistribution
	require.NoError(t, json.Unmarshal([]byte(in), &d))
	assert.Len(t, d, 2)
	assert.ElementsMatch(t, []float64{0.001, 0.003}, d.Medians())

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &d))
}

func TestLiveDocumentQuote(t *testing.T) {
	in := `{"last_updated":"now","india_vix":{"vix":13.5},"spot_prices":{"RELIANCE.NS":{"spot_price":2950,"change_percent":0.8},"TCS.NS":{"spot_price":0},"INFY.NS":{"spot_price":1500}}}`
	var d LiveDocument
	require.NoError(t, json.Unmarshal([]byte(in), &d))

	price, pct, ok := d.Quote("RELIANCE.NS")
	require.True(t, ok)
	assert.Equal(t, 2950.0, price)
	assert.Equal(t, 0.8, pct)

	_, _, ok = d.Quote("TCS.NS")
	assert.False(t, ok)
	_, _, ok = d.Quote("MISSING.NS")
	assert.False(t, ok)

	_, pct, ok = d.Quote("INFY.NS")
	assert.True(t, ok)
	assert.Zero(t, pct)

	vix, ok := d.VIXValue()
	assert.True(t, ok)
	assert.Equal(t, 13.5, vix)

	var nilDoc *LiveDocument
	_, _, ok = nilDoc.Quote("RELIANCE.NS")
	assert.False(t, ok)
}

func TestNewSnapshotRecord(t *testing.T) {
	s := &TickerSnapshot{Metrics: &Metrics{
		LegacySpotPrice:     Ptr(101.0),
		VIXLatest:           Ptr(12.0),
		SlippageExpectation: Ptr(0.2),
		Verdict:             &Verdict{Direction: Bearish, Confidence: Ptr(0.7), DataQuality: QualityLow},
	}}
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := NewSnapshotRecord("TCS", SourcePersisted, at, s)
	assert.Equal(t, at, rec.ResolvedAt)
	assert.Equal(t, 101.0, rec.SpotPrice)
	assert.Equal(t, 12.0, rec.VIX)
	assert.Equal(t, "BEARISH", rec.Direction)
	assert.Equal(t, "LOW", rec.DataQuality)
}
