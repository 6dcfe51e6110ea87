package models

import "encoding/json"

// LiveDocument is the shared spot-price and VIX snapshot, keyed by exchange
// symbol (RELIANCE.NS, ^NSEI, ...).
type LiveDocument struct {
	LastUpdated string               `json:"last_updated,omitempty"`
	IndiaVIX    *LiveVIX             `json:"india_vix,omitempty"`
	SpotPrices  map[string]LiveQuote `json:"spot_prices,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type LiveQuote struct {
	Ticker        string   `json:"ticker,omitempty"`
	SpotPrice     *float64 `json:"spot_price,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	Timestamp     string   `json:"timestamp,omitempty"`
	Error         string   `json:"error,omitempty"`
}

type LiveVIX struct {
	VIX       *float64 `json:"vix,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func (d LiveDocument) MarshalJSON() ([]byte, error) {
	type alias LiveDocument
	b, err := json.Marshal(alias(d))
	if err != nil {
		return nil, err
	}
	return mergeExtras(b, d.Extra)
}

func (d *LiveDocument) UnmarshalJSON(data []byte) error {
	type alias LiveDocument
	var a alias
	extra, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*d = LiveDocument(a)
	d.Extra = extra
	return nil
}

// Quote returns the usable live quote for symbol. A quote is usable only when
// its spot price is positive. A missing change percent reads as 0.
func (d *LiveDocument) Quote(symbol string) (price, changePercent float64, ok bool) {
	if d == nil {
		return 0, 0, false
	}
	q, found := d.SpotPrices[symbol]
	if !found || q.SpotPrice == nil || *q.SpotPrice <= 0 {
		return 0, 0, false
	}
	if q.ChangePercent != nil {
		changePercent = *q.ChangePercent
	}
	return *q.SpotPrice, changePercent, true
}

// VIXValue returns the live VIX when it is positive.
func (d *LiveDocument) VIXValue() (float64, bool) {
	if d == nil || d.IndiaVIX == nil || d.IndiaVIX.VIX == nil || *d.IndiaVIX.VIX <= 0 {
		return 0, false
	}
	return *d.IndiaVIX.VIX, true
}

// SetQuote records a spot quote for symbol.
func (d *LiveDocument) SetQuote(symbol string, price, changePercent float64, timestamp string) {
	if d.SpotPrices == nil {
		d.SpotPrices = make(map[string]LiveQuote)
	}
	d.SpotPrices[symbol] = LiveQuote{
		Ticker:        symbol,
		SpotPrice:     Ptr(price),
		ChangePercent: Ptr(changePercent),
		Timestamp:     timestamp,
	}
	d.LastUpdated = timestamp
}

// SetVIX records the live India VIX.
func (d *LiveDocument) SetVIX(vix float64, timestamp string) {
	d.IndiaVIX = &LiveVIX{VIX: Ptr(vix), Timestamp: timestamp}
	d.LastUpdated = timestamp
}
