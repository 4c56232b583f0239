package models

import (
	"time"

	"github.com/google/uuid"
)

// PredictionLog represents a single served prediction
type PredictionLog struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Model       string    `json:"model" db:"model"`
	Prediction  int       `json:"prediction" db:"prediction"`
	Probability *float64  `json:"probability,omitempty" db:"probability"`
	Channel     string    `json:"channel" db:"channel"` // 'form', 'api', 'legacy', 'report', 'cli'
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NewPredictionLog stamps a log entry with a fresh ID and the current time
func NewPredictionLog(model string, prediction int, probability *float64, channel string) *PredictionLog {
	return &PredictionLog{
		ID:          uuid.New(),
		Model:       model,
		Prediction:  prediction,
		Probability: probability,
		Channel:     channel,
		CreatedAt:   time.Now().UTC(),
	}
}

// ModelCount is the per-model breakdown of the prediction log
type ModelCount struct {
	Model         string `json:"model" db:"model"`
	Total         int    `json:"total" db:"total"`
	PositiveCases int    `json:"positiveCases" db:"positive_cases"`
}

// PredictionSummary aggregates the prediction log for the dashboard stats endpoint
type PredictionSummary struct {
	TotalPredictions int          `json:"totalPredictions" db:"total_predictions"`
	PositiveCases    int          `json:"positiveCases" db:"positive_cases"`
	PositiveRate     float64      `json:"positiveRate"`
	ByModel          []ModelCount `json:"byModel"`
}

// ComputeRate fills PositiveRate from the counts
func (s *PredictionSummary) ComputeRate() {
	if s.TotalPredictions == 0 {
		s.PositiveRate = 0
		return
	}
	s.PositiveRate = float64(s.PositiveCases) / float64(s.TotalPredictions)
}
