package models

// Requests for the ticker HTTP endpoints.

type TickerRequest struct {
	Ticker string `param:"ticker" json:"ticker" validate:"required,max=32"`
}

type DataFileRequest struct {
	Filename string `param:"filename" json:"filename" validate:"required,max=48"`
}

type HistoryRequest struct {
	Ticker string `param:"ticker" json:"ticker" validate:"required,max=32"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type SimulationRequest struct {
	Ticker string `json:"ticker" validate:"required,max=32"`
}

type SimulationStatusRequest struct {
	JobID string `param:"jobId" json:"jobId" validate:"required"`
}

const (
	SpotTypeSpot = "spot"
	SpotTypeVIX  = "vix"
)

// SpotMessage is a live update read from the spot topic.
type SpotMessage struct {
	Type          string   `json:"type" default:"spot" validate:"required,oneof=spot vix"`
	Symbol        string   `json:"symbol" validate:"max=32"`
	SpotPrice     *float64 `json:"spot_price"`
	ChangePercent *float64 `json:"change_percent"`
	VIX           *float64 `json:"vix"`
	Timestamp     string   `json:"timestamp"`
}
