package synthetic

import (
	"fmt"

	"Tradyxa/internal/domain/models"
)

var basePrices = map[string]float64{
	"NIFTY":     24850.75,
	"BANKNIFTY": 52340.50,
	"RELIANCE":  2945.30,
	"TCS":       4125.80,
	"HDFCBANK":  1685.45,
	"INFY":      1890.25,
	"ICICIBANK": 1245.60,
}

var displayNames = map[string]string{
	"NIFTY":      "Nifty 50 Index",
	"BANKNIFTY":  "Nifty Bank Index",
	"RELIANCE":   "Reliance Industries Ltd",
	"TCS":        "Tata Consultancy Services",
	"HDFCBANK":   "HDFC Bank Ltd",
	"INFY":       "Infosys Ltd",
	"ICICIBANK":  "ICICI Bank Ltd",
	"HINDUNILVR": "Hindustan Unilever Ltd",
	"ITC":        "ITC Ltd",
	"SBIN":       "State Bank of India",
}

// DisplayName returns the instrument name shown for a ticker.
func DisplayName(ticker string) string {
	if n, ok := displayNames[ticker]; ok {
		return n
	}
	return ticker + " Ltd"
}

var componentNames = []string{
	"Momentum Score",
	"Volume Trend",
	"VIX Signal",
	"Orderflow Bias",
	"MA Crossover",
}

var directions = []models.Direction{models.Bullish, models.Bearish, models.Neutral}

func explanation(ticker string, d models.Direction) string {
	switch d {
	case models.Bullish:
		return fmt.Sprintf("%s shows strong bullish momentum with positive order flow and improving volume patterns. Technical indicators suggest potential upside.", ticker)
	case models.Bearish:
		return fmt.Sprintf("%s displays bearish pressure with negative order flow and declining volume. Technical signals indicate potential downside risk.", ticker)
	default:
		return fmt.Sprintf("%s is in a consolidation phase with mixed signals. Volume patterns and order flow suggest waiting for a clearer directional signal.", ticker)
	}
}

var eventTypes = []string{
	models.EventEarnings,
	models.EventDividend,
	models.EventSplit,
	models.EventNews,
	models.EventEconomic,
}

var impacts = []string{models.ImpactPositive, models.ImpactNegative, models.ImpactNeutral}

// eventTitles returns the title choices for an event type. %s is the ticker.
func eventTitles(kind, ticker string) []string {
	var formats []string
	switch kind {
	case models.EventEarnings:
		formats = []string{"%s Q3 Results", "%s Earnings Report", "%s Annual Results"}
	case models.EventDividend:
		formats = []string{"%s Dividend Declaration", "%s Interim Dividend", "%s Final Dividend"}
	case models.EventSplit:
		formats = []string{"%s Stock Split", "%s Bonus Issue", "%s Rights Issue"}
	case models.EventNews:
		formats = []string{"%s Partnership Announcement", "%s Expansion Plans", "%s Market Update"}
	case models.EventEconomic:
		return []string{"RBI Policy Review", "Budget Announcement", "GDP Data Release", "CPI Data Release"}
	default:
		formats = []string{"%s Event"}
	}
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = fmt.Sprintf(f, ticker)
	}
	return out
}
