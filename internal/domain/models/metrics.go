package models

import "encoding/json"

// Metrics is the flat indicator set of a snapshot. Every numeric field is a
// pointer so that "unknown" stays absent on the wire instead of becoming 0.
//
// Several indicators exist under a canonical snake_case name and a legacy
// camelCase name. Writers go through SetSpot, SetVIX and Normalize so the two
// spellings never disagree.
type Metrics struct {
	SpotPrice             *float64 `json:"spot_price,omitempty"`
	VIXLatest             *float64 `json:"vix_latest,omitempty"`
	VolatilityLatest      *float64 `json:"volatility_latest,omitempty"`
	CoordinatedFlow       *float64 `json:"coordinated_flow,omitempty"`
	AmihudLatest          *float64 `json:"amihud_latest,omitempty"`
	LambdaLatest          *float64 `json:"lambda_latest,omitempty"`
	LiquidityDepthProxy   *float64 `json:"liquidity_depth_proxy,omitempty"`
	MFCLatest             *float64 `json:"mfc_latest,omitempty"`
	TradeSizingMultiplier *float64 `json:"trade_sizing_multiplier,omitempty"`
	VolZScoreLatest       *float64 `json:"vol_zscore_latest,omitempty"`

	// Written by the regime model as a class index (or name) and a class
	// probability vector (or a single probability), so both stay raw.
	MLRegimeLabel json.RawMessage `json:"ml_regime_label,omitempty"`
	MLRegimeProb  json.RawMessage `json:"ml_regime_prob,omitempty"`

	Verdict *Verdict `json:"verdict,omitempty"`

	// legacy names
	LegacySpotPrice      *float64 `json:"spotPrice,omitempty"`
	SpotChange           *float64 `json:"spotChange,omitempty"`
	SpotChangePercent    *float64 `json:"spotChangePercent,omitempty"`
	VIX                  *float64 `json:"vix,omitempty"`
	VIXChange            *float64 `json:"vixChange,omitempty"`
	SlippageExpectation  *float64 `json:"slippageExpectation,omitempty"`
	SlippageStd          *float64 `json:"slippageStd,omitempty"`
	AvgVolume            *float64 `json:"avgVolume,omitempty"`
	VolumeChange         *float64 `json:"volumeChange,omitempty"`
	OpenInterest         *float64 `json:"openInterest,omitempty"`
	OIChange             *float64 `json:"oiChange,omitempty"`
	ImpliedVolatility    *float64 `json:"impliedVolatility,omitempty"`
	HistoricalVolatility *float64 `json:"historicalVolatility,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m Metrics) MarshalJSON() ([]byte, error) {
	type alias Metrics
	b, err := json.Marshal(alias(m))
	if err != nil {
		return nil, err
	}
	return mergeExtras(b, m.Extra)
}

func (m *Metrics) UnmarshalJSON(data []byte) error {
	type alias Metrics
	var a alias
	extra, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*m = Metrics(a)
	m.Extra = extra
	return nil
}

// SetSpot writes price and percent change to both spellings and re-derives
// the absolute change from them.
func (m *Metrics) SetSpot(price, changePercent float64) {
	m.SpotPrice = Ptr(price)
	m.LegacySpotPrice = Ptr(price)
	m.SpotChangePercent = Ptr(changePercent)
	m.SpotChange = Ptr(price * changePercent / 100)
}

// SetVIX writes the volatility index to both spellings.
func (m *Metrics) SetVIX(v float64) {
	m.VIX = Ptr(v)
	m.VIXLatest = Ptr(v)
}

// Spot returns the known spot price under either spelling.
func (m *Metrics) Spot() (float64, bool) {
	switch {
	case m == nil:
		return 0, false
	case m.SpotPrice != nil:
		return *m.SpotPrice, true
	case m.LegacySpotPrice != nil:
		return *m.LegacySpotPrice, true
	}
	return 0, false
}

// HasSlippage reports whether a positive slippage expectation is present.
func (m *Metrics) HasSlippage() bool {
	return m != nil && m.SlippageExpectation != nil && *m.SlippageExpectation > 0
}

// Normalize fills the missing partner of each canonical/legacy pair. When
// both are present they are left as they are.
func (m *Metrics) Normalize() {
	if m == nil {
		return
	}
	if m.SpotPrice == nil && m.LegacySpotPrice != nil {
		m.SpotPrice = Ptr(*m.LegacySpotPrice)
	}
	if m.LegacySpotPrice == nil && m.SpotPrice != nil {
		m.LegacySpotPrice = Ptr(*m.SpotPrice)
	}
	if m.VIXLatest == nil && m.VIX != nil {
		m.VIXLatest = Ptr(*m.VIX)
	}
	if m.VIX == nil && m.VIXLatest != nil {
		m.VIX = Ptr(*m.VIXLatest)
	}
}

// Clone copies m deeply enough that setters on the copy never reach m.
// Pointer fields are replaced rather than written through, so sharing them
// is safe.
func (m *Metrics) Clone() *Metrics {
	if m == nil {
		return nil
	}
	out := *m
	out.Verdict = m.Verdict.Clone()
	out.Extra = cloneRaw(m.Extra)
	return &out
}
