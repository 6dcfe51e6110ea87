package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that found nothing.
var ErrNotFound = errors.New("not found")

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// SimulationJob tracks one simulation refresh for a ticker.
type SimulationJob struct {
	JobID     string    `json:"jobId"`
	Ticker    string    `json:"ticker"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Done reports whether the job reached a terminal status.
func (j *SimulationJob) Done() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// SnapshotRecord is one resolved snapshot as kept in history.
type SnapshotRecord struct {
	Ticker              string    `json:"ticker"`
	Source              Source    `json:"source"`
	ResolvedAt          time.Time `json:"resolvedAt"`
	SpotPrice           float64   `json:"spotPrice"`
	SpotChangePercent   float64   `json:"spotChangePercent"`
	VIX                 float64   `json:"vix"`
	SlippageExpectation float64   `json:"slippageExpectation"`
	Direction           string    `json:"direction,omitempty"`
	Confidence          float64   `json:"confidence"`
	DataQuality         string    `json:"dataQuality,omitempty"`
}

// NewSnapshotRecord flattens the headline figures of a snapshot. Absent
// figures record as zero.
func NewSnapshotRecord(ticker string, source Source, at time.Time, s *TickerSnapshot) SnapshotRecord {
	rec := SnapshotRecord{Ticker: ticker, Source: source, ResolvedAt: at}
	if s == nil || s.Metrics == nil {
		return rec
	}
	m := s.Metrics
	rec.SpotPrice, _ = m.Spot()
	rec.SpotChangePercent = deref(m.SpotChangePercent)
	rec.VIX = deref(m.VIX)
	if m.VIX == nil {
		rec.VIX = deref(m.VIXLatest)
	}
	rec.SlippageExpectation = deref(m.SlippageExpectation)
	if v := m.Verdict; v != nil {
		rec.Direction = string(v.Direction)
		rec.Confidence = deref(v.Confidence)
		rec.DataQuality = string(v.DataQuality)
	}
	return rec
}

// Event is published when a snapshot is resolved or a simulation changes state.
type Event struct {
	Type      string    `json:"type"`
	Ticker    string    `json:"ticker"`
	Source    Source    `json:"source,omitempty"`
	JobID     string    `json:"jobId,omitempty"`
	Status    JobStatus `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventSnapshotResolved    = "snapshot.resolved"
	EventSimulationCompleted = "simulation.completed"
	EventSimulationFailed    = "simulation.failed"
)

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
