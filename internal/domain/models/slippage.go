package models

import (
	"encoding/json"
	"fmt"
)

// SlippageDistribution maps a traded-volume bucket key to its summary.
// Decoding is lenient per bucket: non-object buckets and buckets without a
// numeric median are dropped. Only a non-object document is an error.
type SlippageDistribution map[string]SlippageBucket

type SlippageBucket struct {
	Median *float64
}

func (d *SlippageDistribution) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("slippage distribution: %w", err)
	}
	out := make(SlippageDistribution, len(raw))
	for key, body := range raw {
		var bucket map[string]json.RawMessage
		if err := json.Unmarshal(body, &bucket); err != nil || bucket == nil {
			continue
		}
		var median *float64
		if err := json.Unmarshal(bucket["median"], &median); err != nil || median == nil {
			continue
		}
		out[key] = SlippageBucket{Median: median}
	}
	*d = out
	return nil
}

// Medians returns every numeric bucket median, in no particular order.
func (d SlippageDistribution) Medians() []float64 {
	out := make([]float64, 0, len(d))
	for _, b := range d {
		if b.Median != nil {
			out = append(out, *b.Median)
		}
	}
	return out
}
