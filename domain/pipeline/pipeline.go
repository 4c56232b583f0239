// Package pipeline holds fitted inference pipelines: a preprocessing step that
// encodes a health record followed by a classifier.
package pipeline

import (
	"fmt"

	"skincheck/domain/health"
)

// Pipeline is a pre-fit, immutable inference object. Safe for concurrent use.
type Pipeline struct {
	name      string
	artifact  *Artifact
	estimator Estimator
}

// FromArtifact validates an artifact and builds the pipeline it describes.
func FromArtifact(a *Artifact) (*Pipeline, error) {
	if a == nil {
		return nil, fmt.Errorf("nil artifact")
	}
	if a.Preprocess.Width() == 0 {
		return nil, fmt.Errorf("artifact %q has no preprocessing columns", a.Name)
	}
	est, err := buildEstimator(a)
	if err != nil {
		return nil, fmt.Errorf("artifact %q: %w", a.Name, err)
	}
	return &Pipeline{name: a.Name, artifact: a, estimator: est}, nil
}

// Name is the registry key of the pipeline.
func (p *Pipeline) Name() string { return p.name }

// Kind is the estimator kind.
func (p *Pipeline) Kind() string { return p.artifact.Kind }

// Artifact returns the serialized description the pipeline was built from.
func (p *Pipeline) Artifact() *Artifact { return p.artifact }

// Encode applies the preprocessing step.
func (p *Pipeline) Encode(rec health.Record) []float64 {
	return p.artifact.Preprocess.Encode(rec)
}

// Predict returns the predicted class, 0 or 1.
func (p *Pipeline) Predict(rec health.Record) int {
	return p.estimator.Decide(p.Encode(rec))
}

// HasProba reports whether the estimator exposes class probabilities.
func (p *Pipeline) HasProba() bool {
	_, ok := p.estimator.(ProbabilityEstimator)
	return ok
}

// PredictProba returns the positive-class probability, or false when the
// estimator has none.
func (p *Pipeline) PredictProba(rec health.Record) (float64, bool) {
	pe, ok := p.estimator.(ProbabilityEstimator)
	if !ok {
		return 0, false
	}
	return pe.Proba(p.Encode(rec)), true
}

// Score is the quantity explanations attribute: the probability when there is
// one, the hard decision otherwise.
func (p *Pipeline) Score(rec health.Record) float64 {
	if proba, ok := p.PredictProba(rec); ok {
		return proba
	}
	return float64(p.Predict(rec))
}
