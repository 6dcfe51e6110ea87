package models

import "encoding/json"

// DataQuality is a coarse trust label attached to a snapshot or a verdict.
type DataQuality string

const (
	QualityGood         DataQuality = "GOOD"
	QualityLow          DataQuality = "LOW"
	QualityInsufficient DataQuality = "INSUFFICIENT"
)

// Source records where the base of a resolved snapshot came from.
type Source string

const (
	SourcePersisted Source = "persisted"
	SourceSynthetic Source = "synthetic"
)

// TickerSnapshot is the resolved market-metrics document for one ticker.
// Unknown top-level members of a persisted document survive a decode/encode
// round trip through Extra.
type TickerSnapshot struct {
	Meta         *Meta          `json:"meta,omitempty"`
	Metrics      *Metrics       `json:"metrics,omitempty"`
	FeaturesHead map[string]any `json:"features_head,omitempty"`

	Candles         []Candle          `json:"candles,omitempty"`
	VolumeProfile   []VolumeBucket    `json:"volumeProfile,omitempty"`
	Orderbook       []OrderbookLevel  `json:"orderbook,omitempty"`
	SlippageSamples []SlippageSample  `json:"slippageSamples,omitempty"`
	TimelineEvents  []TimelineEvent   `json:"timelineEvents,omitempty"`
	Heatmap         []HeatmapCell     `json:"heatmap,omitempty"`
	MonteCarlo      []MonteCarloBand  `json:"monteCarlo,omitempty"`
	BollingerBands  []BollingerPoint  `json:"bollingerBands,omitempty"`
	RollingAverages []RollingPoint    `json:"rollingAverages,omitempty"`
	AbsorptionFlow  []AbsorptionPoint `json:"absorptionFlow,omitempty"`
	Histogram       []HistogramBin    `json:"histogram,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (s TickerSnapshot) MarshalJSON() ([]byte, error) {
	type alias TickerSnapshot
	b, err := json.Marshal(alias(s))
	if err != nil {
		return nil, err
	}
	return mergeExtras(b, s.Extra)
}

func (s *TickerSnapshot) UnmarshalJSON(data []byte) error {
	type alias TickerSnapshot
	var a alias
	extra, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*s = TickerSnapshot(a)
	s.Extra = extra
	return nil
}

// Basic returns a copy carrying only meta, metrics and unknown members.
func (s *TickerSnapshot) Basic() *TickerSnapshot {
	if s == nil {
		return nil
	}
	return &TickerSnapshot{
		Meta:         s.Meta.Clone(),
		Metrics:      s.Metrics.Clone(),
		FeaturesHead: s.FeaturesHead,
		Extra:        cloneRaw(s.Extra),
	}
}

// Clone returns a copy whose meta, metrics and slices can be mutated
// without affecting s. Array items share their Members, which are never
// written after decoding.
func (s *TickerSnapshot) Clone() *TickerSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Meta = s.Meta.Clone()
	out.Metrics = s.Metrics.Clone()
	out.Extra = cloneRaw(s.Extra)
	out.Candles = append([]Candle(nil), s.Candles...)
	out.VolumeProfile = append([]VolumeBucket(nil), s.VolumeProfile...)
	out.Orderbook = append([]OrderbookLevel(nil), s.Orderbook...)
	out.SlippageSamples = append([]SlippageSample(nil), s.SlippageSamples...)
	out.TimelineEvents = append([]TimelineEvent(nil), s.TimelineEvents...)
	out.Heatmap = append([]HeatmapCell(nil), s.Heatmap...)
	if s.MonteCarlo != nil {
		out.MonteCarlo = make([]MonteCarloBand, len(s.MonteCarlo))
		for i, band := range s.MonteCarlo {
			out.MonteCarlo[i] = MonteCarloBand{Percentile: band.Percentile, Values: append([]float64(nil), band.Values...), Members: band.Members.clone()}
		}
	}
	out.BollingerBands = append([]BollingerPoint(nil), s.BollingerBands...)
	out.RollingAverages = append([]RollingPoint(nil), s.RollingAverages...)
	out.AbsorptionFlow = append([]AbsorptionPoint(nil), s.AbsorptionFlow...)
	out.Histogram = append([]HistogramBin(nil), s.Histogram...)
	return &out
}

// HasEnrichment reports whether every enrichment array is non-empty.
func (s *TickerSnapshot) HasEnrichment() bool {
	return len(s.Candles) > 0 && len(s.VolumeProfile) > 0 && len(s.Orderbook) > 0 &&
		len(s.SlippageSamples) > 0 && len(s.TimelineEvents) > 0 && len(s.Heatmap) > 0 &&
		len(s.MonteCarlo) > 0 && len(s.BollingerBands) > 0 && len(s.RollingAverages) > 0 &&
		len(s.AbsorptionFlow) > 0 && len(s.Histogram) > 0
}

// FillFrom copies every enrichment array that is empty on s from src.
// Persisted arrays are never replaced.
func (s *TickerSnapshot) FillFrom(src *TickerSnapshot) {
	if src == nil {
		return
	}
	if len(s.Candles) == 0 {
		s.Candles = src.Candles
	}
	if len(s.VolumeProfile) == 0 {
		s.VolumeProfile = src.VolumeProfile
	}
	if len(s.Orderbook) == 0 {
		s.Orderbook = src.Orderbook
	}
	if len(s.SlippageSamples) == 0 {
		s.SlippageSamples = src.SlippageSamples
	}
	if len(s.TimelineEvents) == 0 {
		s.TimelineEvents = src.TimelineEvents
	}
	if len(s.Heatmap) == 0 {
		s.Heatmap = src.Heatmap
	}
	if len(s.MonteCarlo) == 0 {
		s.MonteCarlo = src.MonteCarlo
	}
	if len(s.BollingerBands) == 0 {
		s.BollingerBands = src.BollingerBands
	}
	if len(s.RollingAverages) == 0 {
		s.RollingAverages = src.RollingAverages
	}
	if len(s.AbsorptionFlow) == 0 {
		s.AbsorptionFlow = src.AbsorptionFlow
	}
	if len(s.Histogram) == 0 {
		s.Histogram = src.Histogram
	}
}

// Meta identifies the instrument a snapshot describes.
type Meta struct {
	Ticker      string      `json:"ticker,omitempty"`
	Name        string      `json:"name,omitempty"`
	Exchange    string      `json:"exchange,omitempty"`
	Currency    string      `json:"currency,omitempty"`
	LastUpdated string      `json:"lastUpdated,omitempty"`
	DataQuality DataQuality `json:"dataQuality,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (m Meta) MarshalJSON() ([]byte, error) {
	type alias Meta
	b, err := json.Marshal(alias(m))
	if err != nil {
		return nil, err
	}
	return mergeExtras(b, m.Extra)
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	type alias Meta
	var a alias
	extra, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*m = Meta(a)
	m.Extra = extra
	return nil
}

func (m *Meta) Clone() *Meta {
	if m == nil {
		return nil
	}
	out := *m
	out.Extra = cloneRaw(m.Extra)
	return &out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
