package models

// Candle is one daily OHLCV bar.
type Candle struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`

	Members
}

// VolumeBucket is traded volume at one price level.
type VolumeBucket struct {
	Price      float64 `json:"price"`
	Volume     float64 `json:"volume"`
	BuyVolume  float64 `json:"buyVolume"`
	SellVolume float64 `json:"sellVolume"`

	Members
}

// OrderbookLevel holds resting quantity on exactly one side of the mid.
type OrderbookLevel struct {
	Price  float64 `json:"price"`
	BidQty float64 `json:"bidQty"`
	AskQty float64 `json:"askQty"`

	Members
}

type SlippageSample struct {
	Timestamp string  `json:"timestamp"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Slippage  float64 `json:"slippage"`
	Volume    float64 `json:"volume"`

	Members
}

// Timeline event types and impacts.
const (
	EventEarnings = "earnings"
	EventDividend = "dividend"
	EventSplit    = "split"
	EventNews     = "news"
	EventEconomic = "economic"

	ImpactPositive = "positive"
	ImpactNegative = "negative"
	ImpactNeutral  = "neutral"
)

type TimelineEvent struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Impact    string `json:"impact"`

	Members
}

// HeatmapCell is activity for one weekday and trading hour.
type HeatmapCell struct {
	Hour      int     `json:"hour"`
	DayOfWeek int     `json:"dayOfWeek"`
	Value     float64 `json:"value"`
	Count     float64 `json:"count"`

	Members
}

type MonteCarloBand struct {
	Percentile float64   `json:"percentile"`
	Values     []float64 `json:"values"`

	Members
}

type BollingerPoint struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`

	Members
}

type RollingPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	MA5   float64 `json:"ma5"`
	MA20  float64 `json:"ma20"`
	MA50  float64 `json:"ma50"`

	Members
}

// AbsorptionPoint is buy and sell flow for one candle. NetFlow is derived.
type AbsorptionPoint struct {
	Date     string  `json:"date"`
	BuyFlow  float64 `json:"buyFlow"`
	SellFlow float64 `json:"sellFlow"`
	NetFlow  float64 `json:"netFlow"`

	Members
}

type HistogramBin struct {
	Bin        float64 `json:"bin"`
	Count      float64 `json:"count"`
	Cumulative float64 `json:"cumulative"`

	Members
}

var candleKeys = jsonKeys(Candle{})

func (c Candle) MarshalJSON() ([]byte, error) {
	type alias Candle
	return encodeItem(alias(c), c.Members)
}

func (c *Candle) UnmarshalJSON(data []byte) error {
	type alias Candle
	*c = Candle{}
	return decodeItem(data, (*alias)(c), candleKeys, &c.Members)
}

var volumeBucketKeys = jsonKeys(VolumeBucket{})

func (v VolumeBucket) MarshalJSON() ([]byte, error) {
	type alias VolumeBucket
	return encodeItem(alias(v), v.Members)
}

func (v *VolumeBucket) UnmarshalJSON(data []byte) error {
	type alias VolumeBucket
	*v = VolumeBucket{}
	return decodeItem(data, (*alias)(v), volumeBucketKeys, &v.Members)
}

var orderbookLevelKeys = jsonKeys(OrderbookLevel{})

func (o OrderbookLevel) MarshalJSON() ([]byte, error) {
	type alias OrderbookLevel
	return encodeItem(alias(o), o.Members)
}

func (o *OrderbookLevel) UnmarshalJSON(data []byte) error {
	type alias OrderbookLevel
	*o = OrderbookLevel{}
	return decodeItem(data, (*alias)(o), orderbookLevelKeys, &o.Members)
}

var slippageSampleKeys = jsonKeys(SlippageSample{})

func (s SlippageSample) MarshalJSON() ([]byte, error) {
	type alias SlippageSample
	return encodeItem(alias(s), s.Members)
}

func (s *SlippageSample) UnmarshalJSON(data []byte) error {
	type alias SlippageSample
	*s = SlippageSample{}
	return decodeItem(data, (*alias)(s), slippageSampleKeys, &s.Members)
}

var timelineEventKeys = jsonKeys(TimelineEvent{})

func (t TimelineEvent) MarshalJSON() ([]byte, error) {
	type alias TimelineEvent
	return encodeItem(alias(t), t.Members)
}

func (t *TimelineEvent) UnmarshalJSON(data []byte) error {
	type alias TimelineEvent
	*t = TimelineEvent{}
	return decodeItem(data, (*alias)(t), timelineEventKeys, &t.Members)
}

var heatmapCellKeys = jsonKeys(HeatmapCell{})

func (h HeatmapCell) MarshalJSON() ([]byte, error) {
	type alias HeatmapCell
	return encodeItem(alias(h), h.Members)
}

func (h *HeatmapCell) UnmarshalJSON(data []byte) error {
	type alias HeatmapCell
	*h = HeatmapCell{}
	return decodeItem(data, (*alias)(h), heatmapCellKeys, &h.Members)
}

var monteCarloBandKeys = jsonKeys(MonteCarloBand{})

func (m MonteCarloBand) MarshalJSON() ([]byte, error) {
	type alias MonteCarloBand
	return encodeItem(alias(m), m.Members)
}

func (m *MonteCarloBand) UnmarshalJSON(data []byte) error {
	type alias MonteCarloBand
	*m = MonteCarloBand{}
	return decodeItem(data, (*alias)(m), monteCarloBandKeys, &m.Members)
}

var bollingerPointKeys = jsonKeys(BollingerPoint{})

func (b BollingerPoint) MarshalJSON() ([]byte, error) {
	type alias BollingerPoint
	return encodeItem(alias(b), b.Members)
}

func (b *BollingerPoint) UnmarshalJSON(data []byte) error {
	type alias BollingerPoint
	*b = BollingerPoint{}
	return decodeItem(data, (*alias)(b), bollingerPointKeys, &b.Members)
}

var rollingPointKeys = jsonKeys(RollingPoint{})

func (r RollingPoint) MarshalJSON() ([]byte, error) {
	type alias RollingPoint
	return encodeItem(alias(r), r.Members)
}

func (r *RollingPoint) UnmarshalJSON(data []byte) error {
	type alias RollingPoint
	*r = RollingPoint{}
	return decodeItem(data, (*alias)(r), rollingPointKeys, &r.Members)
}

var absorptionPointKeys = jsonKeys(AbsorptionPoint{})

func (a AbsorptionPoint) MarshalJSON() ([]byte, error) {
	type alias AbsorptionPoint
	return encodeItem(alias(a), a.Members)
}

func (a *AbsorptionPoint) UnmarshalJSON(data []byte) error {
	type alias AbsorptionPoint
	*a = AbsorptionPoint{}
	return decodeItem(data, (*alias)(a), absorptionPointKeys, &a.Members)
}

var histogramBinKeys = jsonKeys(HistogramBin{})

func (h HistogramBin) MarshalJSON() ([]byte, error) {
	type alias HistogramBin
	return encodeItem(alias(h), h.Members)
}

func (h *HistogramBin) UnmarshalJSON(data []byte) error {
	type alias HistogramBin
	*h = HistogramBin{}
	return decodeItem(data, (*alias)(h), histogramBinKeys, &h.Members)
}
