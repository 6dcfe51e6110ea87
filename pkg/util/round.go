package util

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds x to the given number of decimal places, halves toward +Inf.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Floor(x*p+0.5) / p
}

// ToFixed rounds the shortest decimal representation of x to places digits.
func ToFixed(x float64, places int32) float64 {
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}
