// Package overlay superimposes live spot and VIX figures onto a snapshot.
package overlay

import "Tradyxa/internal/domain/models"

// Result reports what an overlay changed.
type Result struct {
	Spot bool
	VIX  bool
}

func (r Result) Any() bool { return r.Spot || r.VIX }

// Apply writes the live quote for lookupSymbol and the live VIX onto s.
// Fields without a usable live value are left exactly as they were; nothing
// is ever removed or zeroed.
func Apply(s *models.TickerSnapshot, live *models.LiveDocument, lookupSymbol string) Result {
	var res Result
	if s == nil || live == nil {
		return res
	}
	price, pct, spotOK := live.Quote(lookupSymbol)
	vix, vixOK := live.VIXValue()
	if !spotOK && !vixOK {
		return res
	}
	if s.Metrics == nil {
		s.Metrics = &models.Metrics{}
	}
	if spotOK {
		s.Metrics.SetSpot(price, pct)
		res.Spot = true
	}
	if vixOK {
		s.Metrics.SetVIX(vix)
		res.VIX = true
	}
	return res
}
