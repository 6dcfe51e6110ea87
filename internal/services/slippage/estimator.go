// Package slippage reduces a per-volume-bucket slippage distribution to a
// single expectation, in percent.
package slippage

import (
	"sort"

	"Tradyxa/internal/domain/models"
	"Tradyxa/pkg/util"
)

// Estimate returns the median of the bucket medians, as a percentage rounded
// to 3 decimals. ok is false when no bucket carries a numeric median; the
// caller then leaves the expectation unset.
func Estimate(dist models.SlippageDistribution) (value float64, ok bool) {
	medians := dist.Medians()
	if len(medians) == 0 {
		return 0, false
	}
	for i := range medians {
		medians[i] *= 100
	}
	sort.Float64s(medians)

	mid := len(medians) / 2
	value = medians[mid]
	if len(medians)%2 == 0 {
		value = (medians[mid-1] + medians[mid]) / 2
	}
	return util.ToFixed(value, 3), true
}

// Apply sets the expectation on m from dist unless m already carries a
// positive one. It reports whether m was changed.
func Apply(m *models.Metrics, dist models.SlippageDistribution) bool {
	if m == nil || m.HasSlippage() {
		return false
	}
	v, ok := Estimate(dist)
	if !ok {
		return false
	}
	m.SlippageExpectation = models.Ptr(v)
	return true
}
