package ports

import (
	"context"
	"time"

	"skincheck/models"
)

// PredictionRepository defines the interface for the prediction log
type PredictionRepository interface {
	// Record appends one served prediction
	Record(ctx context.Context, p *models.PredictionLog) error

	// Summary aggregates predictions served since the given time (zero means all)
	Summary(ctx context.Context, since time.Time) (*models.PredictionSummary, error)

	// Recent returns the latest predictions, newest first
	Recent(ctx context.Context, limit int) ([]*models.PredictionLog, error)
}
