package postgres

import (
	"context"
	"database/sql"
	"time"

	"skincheck/models"
	"skincheck/ports"

	"github.com/jmoiron/sqlx"
)

// PredictionRepositoryImpl implements PredictionRepository for PostgreSQL
type PredictionRepositoryImpl struct {
	db *sqlx.DB
}

// NewPredictionRepository creates a new PostgreSQL prediction repository
func NewPredictionRepository(db *sqlx.DB) ports.PredictionRepository {
	return &PredictionRepositoryImpl{db: db}
}

// Record appends one served prediction
func (r *PredictionRepositoryImpl) Record(ctx context.Context, p *models.PredictionLog) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO predictions (
			id, model, prediction, probability, channel, created_at
		) VALUES (
			:id, :model, :prediction, :probability, :channel, :created_at
		)
	`, p)
	return err
}

// Summary returns totals and the per-model breakdown since the given time
func (r *PredictionRepositoryImpl) Summary(ctx context.Context, since time.Time) (*models.PredictionSummary, error) {
	summary := &models.PredictionSummary{ByModel: []models.ModelCount{}}

	err := r.db.GetContext(ctx, summary, `
		SELECT
			COUNT(*) AS total_predictions,
			COALESCE(SUM(prediction), 0) AS positive_cases
		FROM predictions
		WHERE created_at >= $1
	`, since)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &summary.ByModel, `
		SELECT model, COUNT(*) AS total, COALESCE(SUM(prediction), 0) AS positive_cases
		FROM predictions
		WHERE created_at >= $1
		GROUP BY model
		ORDER BY model
	`, since)
	if err != nil {
		return nil, err
	}

	summary.ComputeRate()
	return summary, nil
}

// Recent returns the latest predictions, newest first
func (r *PredictionRepositoryImpl) Recent(ctx context.Context, limit int) ([]*models.PredictionLog, error) {
	var logs []*models.PredictionLog
	err := r.db.SelectContext(ctx, &logs, `
		SELECT id, model, prediction, probability, channel, created_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	return logs, err
}
