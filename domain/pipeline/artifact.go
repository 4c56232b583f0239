package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"skincheck/domain/health"
)

// Estimator kinds an artifact may carry.
const (
	KindLogisticRegression = "logistic_regression"
	KindRandomForest       = "random_forest"
	KindGradientBoosting   = "gradient_boosting"
	KindKNN                = "knn"
	KindLinearSVM          = "linear_svm"
)

// FormatVersion is written into every artifact and checked on load.
const FormatVersion = 1

// Artifact is the serialized form of a fitted pipeline.
type Artifact struct {
	Format     int                `json:"format"`
	Name       string             `json:"name"`
	Kind       string             `json:"kind"`
	TrainedAt  time.Time          `json:"trained_at"`
	Preprocess PreprocessSpec     `json:"preprocess"`
	Logistic   *LinearParams      `json:"logistic,omitempty"`
	SVM        *LinearParams      `json:"svm,omitempty"`
	Forest     *ForestParams      `json:"forest,omitempty"`
	Boosting   *BoostingParams    `json:"boosting,omitempty"`
	KNN        *KNNParams         `json:"knn,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// PreprocessSpec lists the encoded columns fed to the estimator.
type PreprocessSpec struct {
	Columns []Column `json:"columns"`
}

// Column is one encoded feature derived from a record field.
type Column struct {
	Field    string      `json:"field"`
	Kind     health.Kind `json:"kind"`
	Category string      `json:"category,omitempty"`
	Mean     float64     `json:"mean,omitempty"`
	Scale    float64     `json:"scale,omitempty"`
}

// LinearParams holds a weight vector and bias.
type LinearParams struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// Node is a flattened decision tree node. Feature < 0 marks a leaf.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// Tree is a binary decision tree; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// ForestParams holds a bagged ensemble whose leaves carry positive-class fractions.
type ForestParams struct {
	Trees []Tree `json:"trees"`
}

// BoostingParams holds an additive log-odds ensemble.
type BoostingParams struct {
	Init         float64 `json:"init"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []Tree  `json:"trees"`
}

// KNNParams holds the stored training sample.
type KNNParams struct {
	K      int         `json:"k"`
	Points [][]float64 `json:"points"`
	Labels []int       `json:"labels"`
}

// DecodeArtifact reads a JSON artifact.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Format != FormatVersion {
		return nil, fmt.Errorf("unsupported artifact format %d", a.Format)
	}
	return &a, nil
}

// Encode writes the artifact as indented JSON.
func (a *Artifact) Encode(w io.Writer) error {
	if a.Format == 0 {
		a.Format = FormatVersion
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}
