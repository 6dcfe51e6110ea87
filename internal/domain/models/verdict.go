package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Direction of a verdict. UP and DOWN are accepted on input as aliases.
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "UP":
		*d = Bullish
	case "DOWN":
		*d = Bearish
	default:
		*d = Direction(s)
	}
	return nil
}

// Verdict is a directional call with its supporting breakdown.
type Verdict struct {
	Timestamp   string         `json:"timestamp"`
	Direction   Direction      `json:"direction"`
	Points      *float64       `json:"points,omitempty"`
	Score       *float64       `json:"score,omitempty"`
	Error       *float64       `json:"error,omitempty"`
	Confidence  *float64       `json:"confidence,omitempty"`
	Components  *Components    `json:"components,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
	DataQuality DataQuality    `json:"data_quality,omitempty"`
	SampleCount *SampleCount   `json:"n_samples,omitempty"`
	MLEnhanced  *bool          `json:"ml_enhanced,omitempty"`
	Version     string         `json:"version,omitempty"`
	Params      map[string]any `json:"params,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	type alias Verdict
	b, err := json.Marshal(alias(v))
	if err != nil {
		return nil, err
	}
	return mergeExtras(b, v.Extra)
}

func (v *Verdict) UnmarshalJSON(data []byte) error {
	type alias Verdict
	var a alias
	extra, err := decodeObject(data, &a)
	if err != nil {
		return err
	}
	*v = Verdict(a)
	v.Extra = extra
	return nil
}

func (v *Verdict) Clone() *Verdict {
	if v == nil {
		return nil
	}
	out := *v
	out.Extra = cloneRaw(v.Extra)
	return &out
}

// PlaceholderVerdict is attached to snapshots that carry no verdict of their own.
func PlaceholderVerdict(timestamp string) *Verdict {
	return &Verdict{
		Timestamp:   timestamp,
		Direction:   Neutral,
		Points:      Ptr(0.0),
		Confidence:  Ptr(0.0),
		Explanation: "No verdict available for this ticker.",
		DataQuality: QualityInsufficient,
	}
}

// VerdictComponent is one named contributor to a verdict.
type VerdictComponent struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// Components holds either a list of components or a name to number mapping.
// The shape read is the shape written.
type Components struct {
	List    []VerdictComponent
	Mapping map[string]float64
}

func (c Components) MarshalJSON() ([]byte, error) {
	if c.Mapping != nil {
		return json.Marshal(c.Mapping)
	}
	if c.List == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.List)
}

func (c *Components) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '[':
		return json.Unmarshal(data, &c.List)
	case '{':
		return json.Unmarshal(data, &c.Mapping)
	case 'n':
		return nil
	}
	return fmt.Errorf("components: unexpected JSON %q", data[:1])
}

// SampleCount is a single sample count or a per-subsystem breakdown.
type SampleCount struct {
	Total     *float64
	Breakdown *SampleBreakdown
}

type SampleBreakdown struct {
	Slippage *float64 `json:"slippage,omitempty"`
	Monte    *float64 `json:"monte,omitempty"`
	Features *float64 `json:"features,omitempty"`
}

func (s SampleCount) MarshalJSON() ([]byte, error) {
	if s.Breakdown != nil {
		return json.Marshal(s.Breakdown)
	}
	if s.Total == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*s.Total)
}

func (s *SampleCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == 'n' {
		return nil
	}
	if data[0] == '{' {
		s.Breakdown = &SampleBreakdown{}
		return json.Unmarshal(data, s.Breakdown)
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	s.Total = &n
	return nil
}
