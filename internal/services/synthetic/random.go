package synthetic

import (
	"math"
	"time"
	"unicode/utf16"

	"Tradyxa/pkg/util"
)

// Random is a tiny seeded generator. It is deterministic for a seed and
// nothing more: sequences are neither uniform enough for statistics nor
// safe for anything secret.
type Random struct {
	state float64
}

// NewRandom hashes seed into the initial state with a 32-bit rolling hash
// over UTF-16 code units.
func NewRandom(seed string) *Random {
	var h int32
	for _, c := range utf16.Encode([]rune(seed)) {
		h = h<<5 - h + int32(c)
	}
	return &Random{state: float64(h)}
}

// Float64 returns the next value in [0,1).
func (r *Random) Float64() float64 {
	r.state = math.Sin(r.state) * 10000
	return r.state - math.Floor(r.state)
}

// Intn returns floor(Float64()*n).
func (r *Random) Intn(n int) int {
	return int(math.Floor(r.Float64() * float64(n)))
}

// Seed is the daily seed for a ticker: stable within a calendar day.
func Seed(ticker string, now time.Time) string {
	return ticker + util.DayKey(now)
}
