// Package memory keeps the prediction log in process when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"skincheck/models"
	"skincheck/ports"
)

// PredictionRepository is a mutex-guarded in-memory prediction log.
type PredictionRepository struct {
	mu   sync.RWMutex
	logs []*models.PredictionLog
}

// NewPredictionRepository creates an empty log.
func NewPredictionRepository() ports.PredictionRepository {
	return &PredictionRepository{}
}

func (r *PredictionRepository) Record(_ context.Context, p *models.PredictionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *PredictionRepository) Summary(_ context.Context, since time.Time) (*models.PredictionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := &models.PredictionSummary{ByModel: []models.ModelCount{}}
	byModel := make(map[string]*models.ModelCount)
	for _, l := range r.logs {
		if l.CreatedAt.Before(since) {
			continue
		}
		summary.TotalPredictions++
		summary.PositiveCases += l.Prediction
		mc, ok := byModel[l.Model]
		if !ok {
			mc = &models.ModelCount{Model: l.Model}
			byModel[l.Model] = mc
		}
		mc.Total++
		mc.PositiveCases += l.Prediction
	}
	for _, mc := range byModel {
		summary.ByModel = append(summary.ByModel, *mc)
	}
	sort.Slice(summary.ByModel, func(i, j int) bool {
		return summary.ByModel[i].Model < summary.ByModel[j].Model
	})
	summary.ComputeRate()
	return summary, nil
}

func (r *PredictionRepository) Recent(_ context.Context, limit int) ([]*models.PredictionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit < 0 {
		limit = 0
	}
	out := make([]*models.PredictionLog, 0, limit)
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.logs[i]
		out = append(out, &cp)
	}
	return out, nil
}
