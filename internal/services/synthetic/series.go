package synthetic

import (
	"math"
	"sort"
	"time"

	"Tradyxa/internal/domain/models"
	"Tradyxa/pkg/util"
)

const (
	candleDays      = 60
	windowCandles   = 30
	profileBuckets  = 10 // each side of the centre
	bookLevels      = 15 // each side of the mid
	slippageCount   = 50
	eventCount      = 8
	monteCarloSteps = 30
	bollingerPeriod = 20
)

var monteCarloPercentiles = []float64{10, 25, 50, 75, 90}

func candles(r *Random, base float64, now time.Time) []models.Candle {
	out := make([]models.Candle, 0, candleDays)
	price := base * (0.9 + r.Float64()*0.2)
	for i := candleDays - 1; i >= 0; i-- {
		change := (r.Float64() - 0.5) * price * 0.03
		open, closePrice := price, price+change
		high := math.Max(open, closePrice) * (1 + r.Float64()*0.01)
		low := math.Min(open, closePrice) * (1 - r.Float64()*0.01)
		volume := 500_000 + r.Float64()*2_000_000

		out = append(out, models.Candle{
			Date:   util.ISODate(now.AddDate(0, 0, -i)),
			Open:   util.Round(open, 2),
			High:   util.Round(high, 2),
			Low:    util.Round(low, 2),
			Close:  util.Round(closePrice, 2),
			Volume: util.Round(volume, 0),
		})
		price = closePrice
	}
	return out
}

func volumeProfile(r *Random, base float64) []models.VolumeBucket {
	step := base * 0.01
	out := make([]models.VolumeBucket, 0, 2*profileBuckets+1)
	for i := -profileBuckets; i <= profileBuckets; i++ {
		weight := math.Exp(-0.5 * math.Pow(float64(i)/5, 2))
		volume := weight * 1_000_000 * (0.5 + r.Float64())
		buyRatio := 0.4 + r.Float64()*0.2
		out = append(out, models.VolumeBucket{
			Price:      util.Round(base+float64(i)*step, 2),
			Volume:     util.Round(volume, 0),
			BuyVolume:  util.Round(volume*buyRatio, 0),
			SellVolume: util.Round(volume*(1-buyRatio), 0),
		})
	}
	return out
}

func orderbook(r *Random, base float64) []models.OrderbookLevel {
	step := base * 0.01 * 0.5
	out := make([]models.OrderbookLevel, 0, 2*bookLevels)
	for i := -bookLevels; i <= bookLevels; i++ {
		if i == 0 {
			continue
		}
		qty := math.Floor(r.Float64()*5000 + 500)
		level := models.OrderbookLevel{Price: util.Round(base+float64(i)*step, 2)}
		if i < 0 {
			level.BidQty = qty
		} else {
			level.AskQty = qty
		}
		out = append(out, level)
	}
	return out
}

func slippageSamples(r *Random, base float64, now time.Time) []models.SlippageSample {
	out := make([]models.SlippageSample, 0, slippageCount)
	for i := 0; i < slippageCount; i++ {
		volume := 10_000 + r.Float64()*200_000
		slippage := (0.01 + volume/200_000*0.1) * (0.5 + r.Float64())
		sign := -1.0
		if r.Float64() > 0.5 {
			sign = 1
		}
		out = append(out, models.SlippageSample{
			Timestamp: util.ISOTimestamp(now.Add(-time.Duration(i) * time.Hour)),
			Expected:  base,
			Actual:    base * (1 + slippage/100*sign),
			Slippage:  util.Round(slippage, 3),
			Volume:    util.Round(volume, 0),
		})
	}
	return out
}

func timelineEvents(r *Random, ticker string, now time.Time) []models.TimelineEvent {
	type dated struct {
		at    time.Time
		event models.TimelineEvent
	}
	events := make([]dated, 0, eventCount)
	for i := 0; i < eventCount; i++ {
		at := now.AddDate(0, 0, r.Intn(60)-30)
		kind := eventTypes[r.Intn(len(eventTypes))]
		titles := eventTitles(kind, ticker)
		title := titles[r.Intn(len(titles))]
		impact := impacts[r.Intn(len(impacts))]
		events = append(events, dated{at: at, event: models.TimelineEvent{
			Timestamp: util.ISOTimestamp(at),
			Type:      kind,
			Title:     title,
			Impact:    impact,
		}})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })

	out := make([]models.TimelineEvent, len(events))
	for i, e := range events {
		out[i] = e.event
	}
	return out
}

func heatmap(r *Random) []models.HeatmapCell {
	out := make([]models.HeatmapCell, 0, 5*7)
	for day := 0; day < 5; day++ {
		for hour := 9; hour <= 15; hour++ {
			out = append(out, models.HeatmapCell{
				Hour:      hour,
				DayOfWeek: day,
				Value:     r.Float64() * 100,
				Count:     math.Floor(r.Float64()*1000 + 100),
			})
		}
	}
	return out
}

func monteCarlo(r *Random, base float64) []models.MonteCarloBand {
	out := make([]models.MonteCarloBand, 0, len(monteCarloPercentiles))
	for _, p := range monteCarloPercentiles {
		values := make([]float64, monteCarloSteps)
		for i := range values {
			values[i] = base * (1 + (p/100-0.5)*0.1 + (r.Float64()-0.5)*0.02*float64(i+1))
		}
		out = append(out, models.MonteCarloBand{Percentile: p, Values: values})
	}
	return out
}

func bollinger(cs []models.Candle) []models.BollingerPoint {
	out := make([]models.BollingerPoint, len(cs))
	for i, c := range cs {
		n := min(i+1, bollingerPeriod)
		mean, std := meanStd(cs[i-n+1 : i+1])
		out[i] = models.BollingerPoint{
			Date:   c.Date,
			Close:  c.Close,
			Upper:  util.Round(mean+2*std, 2),
			Middle: util.Round(mean, 2),
			Lower:  util.Round(mean-2*std, 2),
		}
	}
	return out
}

func rollingAverages(cs []models.Candle) []models.RollingPoint {
	out := make([]models.RollingPoint, len(cs))
	for i, c := range cs {
		out[i] = models.RollingPoint{
			Date:  c.Date,
			Value: c.Close,
			MA5:   util.Round(movingAverage(cs, i, 5), 2),
			MA20:  util.Round(movingAverage(cs, i, 20), 2),
			MA50:  util.Round(movingAverage(cs, i, min(i+1, 50)), 2),
		}
	}
	return out
}

func absorption(r *Random, cs []models.Candle) []models.AbsorptionPoint {
	out := make([]models.AbsorptionPoint, len(cs))
	for i, c := range cs {
		buy := 500_000 + r.Float64()*2_000_000
		sell := 500_000 + r.Float64()*2_000_000
		out[i] = models.AbsorptionPoint{
			Date:     c.Date,
			BuyFlow:  util.Round(buy, 0),
			SellFlow: util.Round(sell, 0),
			NetFlow:  util.Round(buy-sell, 0),
		}
	}
	return out
}

// histogram covers -3.0..3.0 in steps of 0.5.
func histogram(r *Random) []models.HistogramBin {
	out := make([]models.HistogramBin, 0, 13)
	var cumulative float64
	for i := 0; i <= 12; i++ {
		bin := -3 + 0.5*float64(i)
		count := util.Round(math.Exp(-0.5*bin*bin)*100*(0.5+r.Float64()), 0)
		cumulative += count
		out = append(out, models.HistogramBin{Bin: bin, Count: count, Cumulative: cumulative})
	}
	return out
}

func lastN(cs []models.Candle, n int) []models.Candle {
	if len(cs) <= n {
		return cs
	}
	return cs[len(cs)-n:]
}

// movingAverage is the mean close over up to period candles ending at i.
func movingAverage(cs []models.Candle, i, period int) float64 {
	start := max(0, i-period+1)
	var sum float64
	for _, c := range cs[start : i+1] {
		sum += c.Close
	}
	return sum / float64(i+1-start)
}

// meanStd returns the mean and population standard deviation of closes.
func meanStd(cs []models.Candle) (float64, float64) {
	var sum float64
	for _, c := range cs {
		sum += c.Close
	}
	mean := sum / float64(len(cs))
	var sq float64
	for _, c := range cs {
		sq += (c.Close - mean) * (c.Close - mean)
	}
	return mean, math.Sqrt(sq / float64(len(cs)))
}
