// Package prediction serves predictions, explanations and reports over the
// model registry, recording every served prediction in the prediction log.
package prediction

import (
	"context"
	"math"
	"strconv"
	"time"

	"skincheck/domain/health"
	"skincheck/internal/errors"
	"skincheck/internal/explain"
	"skincheck/internal/logging"
	"skincheck/internal/report"
	"skincheck/models"
	"skincheck/ports"

	"github.com/google/uuid"
)

// Channels a prediction can be served through.
const (
	ChannelForm   = "form"
	ChannelAPI    = "api"
	ChannelLegacy = "legacy"
	ChannelReport = "report"
	ChannelCLI    = "cli"
)

// DefaultModel is the fallback of the legacy endpoint.
const DefaultModel = "log_reg"

// Result is one served prediction.
type Result struct {
	Prediction  int      `json:"prediction"`
	Probability *float64 `json:"probability"`
	Model       string   `json:"model"`
}

// RoundedProbability rounds the probability to 3 decimals for display.
func (r *Result) RoundedProbability() *float64 {
	if r.Probability == nil {
		return nil
	}
	v := math.Round(*r.Probability*1000) / 1000
	return &v
}

// Explanations pairs the global and local attributions of one prediction.
type Explanations struct {
	SHAP *explain.Explanation
	LIME *explain.Explanation
}

// Service ties the registry, the explainer, the report generator and the log together.
type Service struct {
	registry  ports.ModelRegistry
	repo      ports.PredictionRepository
	explainer *explain.Explainer
	reports   *report.Generator
	logger    *logging.Logger
	now       func() time.Time
}

// NewService creates a prediction service. repo, explainer and reports may be
// nil when the caller does not need logging, explanations or reports.
func NewService(registry ports.ModelRegistry, repo ports.PredictionRepository, explainer *explain.Explainer, reports *report.Generator, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		registry:  registry,
		repo:      repo,
		explainer: explainer,
		reports:   reports,
		logger:    logger.Named("prediction"),
		now:       time.Now,
	}
}

// Models lists the loaded model names.
func (s *Service) Models() ([]string, error) {
	return s.registry.Names()
}

// Label returns a model's display label.
func (s *Service) Label(name string) string {
	return s.registry.Label(name)
}

// Predict runs one record through the named model.
func (s *Service) Predict(ctx context.Context, model string, rec health.Record, channel string) (*Result, error) {
	if model == "" {
		return nil, errors.InvalidInput("model_choice is required")
	}
	p, err := s.registry.Get(model)
	if err != nil {
		return nil, err
	}

	res := &Result{Prediction: p.Predict(rec), Model: model}
	if proba, ok := p.PredictProba(rec); ok {
		res.Probability = &proba
	}
	s.logger.Debug("%s predicted %d via %s", model, res.Prediction, channel)
	s.record(ctx, res, channel)
	return res, nil
}

// record appends to the prediction log. A failing log never fails the prediction.
func (s *Service) record(ctx context.Context, res *Result, channel string) {
	if s.repo == nil {
		return
	}
	entry := models.NewPredictionLog(res.Model, res.Prediction, res.Probability, channel)
	if err := s.repo.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record prediction %s: %v", entry.ID, err)
	}
}

// Explain computes SHAP and LIME attributions for the named model.
func (s *Service) Explain(ctx context.Context, model string, rec health.Record) (*Explanations, error) {
	if s.explainer == nil {
		return nil, errors.Unavailable("explanations are not configured")
	}
	p, err := s.registry.Get(model)
	if err != nil {
		return nil, err
	}
	shap, lime, err := s.explainer.Both(ctx, p, rec)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute explanations")
	}
	if lime.Warning != "" {
		s.logger.Warn("%s explanation: %s", model, lime.Warning)
	}
	return &Explanations{SHAP: shap, LIME: lime}, nil
}

// Report predicts, explains and renders the PDF report.
func (s *Service) Report(ctx context.Context, model string, rec health.Record, channel string) (report.Input, []byte, error) {
	if s.reports == nil {
		return report.Input{}, nil, errors.Unavailable("reports are not configured")
	}
	res, err := s.Predict(ctx, model, rec, channel)
	if err != nil {
		return report.Input{}, nil, err
	}
	exp, err := s.Explain(ctx, model, rec)
	if err != nil {
		return report.Input{}, nil, err
	}

	in := report.Input{
		ID:          uuid.New(),
		GeneratedAt: s.now(),
		Record:      rec,
		Prediction:  strconv.Itoa(res.Prediction),
		Probability: res.Probability,
		Model:       model,
		SHAP:        exp.SHAP,
		LIME:        exp.LIME,
	}
	pdf, err := s.reports.Bytes(in)
	if err != nil {
		return in, nil, err
	}
	s.logger.Info("report %s generated for %s (%d bytes)", in.ID, model, len(pdf))
	return in, pdf, nil
}

// Stats summarises the prediction log.
func (s *Service) Stats(ctx context.Context) (*models.PredictionSummary, error) {
	if s.repo == nil {
		summary := &models.PredictionSummary{ByModel: []models.ModelCount{}}
		return summary, nil
	}
	summary, err := s.repo.Summary(ctx, time.Time{})
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	return summary, nil
}
