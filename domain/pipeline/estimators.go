package pipeline

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Estimator produces a hard class decision for an encoded vector.
type Estimator interface {
	Decide(x []float64) int
}

// ProbabilityEstimator additionally exposes the positive-class probability.
type ProbabilityEstimator interface {
	Estimator
	Proba(x []float64) float64
}

// Sigmoid is the logistic link.
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func threshold(p float64) int {
	if p >= 0.5 {
		return 1
	}
	return 0
}

type logistic struct{ p LinearParams }

func (m logistic) Proba(x []float64) float64 {
	return Sigmoid(floats.Dot(m.p.Coef, x) + m.p.Intercept)
}

func (m logistic) Decide(x []float64) int { return threshold(m.Proba(x)) }

// linearSVM only has a decision function; it reports no probability.
type linearSVM struct{ p LinearParams }

func (m linearSVM) Decide(x []float64) int {
	if floats.Dot(m.p.Coef, x)+m.p.Intercept >= 0 {
		return 1
	}
	return 0
}

// Eval walks the tree to a leaf value.
func (t Tree) Eval(x []float64) float64 {
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return 0
}

func (t Tree) validate(width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d outside width %d", i, n.Feature, width)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	return nil
}

type forest struct{ p ForestParams }

func (m forest) Proba(x []float64) float64 {
	if len(m.p.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range m.p.Trees {
		sum += t.Eval(x)
	}
	return sum / float64(len(m.p.Trees))
}

func (m forest) Decide(x []float64) int { return threshold(m.Proba(x)) }

type boosting struct{ p BoostingParams }

func (m boosting) Proba(x []float64) float64 {
	z := m.p.Init
	for _, t := range m.p.Trees {
		z += m.p.LearningRate * t.Eval(x)
	}
	return Sigmoid(z)
}

func (m boosting) Decide(x []float64) int { return threshold(m.Proba(x)) }

type knn struct{ p KNNParams }

type neighbour struct {
	dist  float64
	label int
}

func (m knn) Proba(x []float64) float64 {
	k := m.p.K
	if k <= 0 || len(m.p.Points) == 0 {
		return 0
	}
	if k > len(m.p.Points) {
		k = len(m.p.Points)
	}
	ns := make([]neighbour, len(m.p.Points))
	for i, pt := range m.p.Points {
		ns[i] = neighbour{dist: floats.Distance(pt, x, 2), label: m.p.Labels[i]}
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].dist < ns[j].dist })
	positive := 0
	for _, n := range ns[:k] {
		positive += n.label
	}
	return float64(positive) / float64(k)
}

func (m knn) Decide(x []float64) int { return threshold(m.Proba(x)) }

// buildEstimator validates the artifact parameters against the encoded width.
func buildEstimator(a *Artifact) (Estimator, error) {
	width := a.Preprocess.Width()
	switch a.Kind {
	case KindLogisticRegression:
		if a.Logistic == nil || len(a.Logistic.Coef) != width {
			return nil, fmt.Errorf("logistic coefficients do not match %d columns", width)
		}
		return logistic{*a.Logistic}, nil
	case KindLinearSVM:
		if a.SVM == nil || len(a.SVM.Coef) != width {
			return nil, fmt.Errorf("svm coefficients do not match %d columns", width)
		}
		return linearSVM{*a.SVM}, nil
	case KindRandomForest:
		if a.Forest == nil || len(a.Forest.Trees) == 0 {
			return nil, fmt.Errorf("random forest has no trees")
		}
		for i, t := range a.Forest.Trees {
			if err := t.validate(width); err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		return forest{*a.Forest}, nil
	case KindGradientBoosting:
		if a.Boosting == nil {
			return nil, fmt.Errorf("gradient boosting parameters missing")
		}
		for i, t := range a.Boosting.Trees {
			if err := t.validate(width); err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		return boosting{*a.Boosting}, nil
	case KindKNN:
		if a.KNN == nil || a.KNN.K <= 0 || len(a.KNN.Points) != len(a.KNN.Labels) {
			return nil, fmt.Errorf("knn sample is inconsistent")
		}
		for i, pt := range a.KNN.Points {
			if len(pt) != width {
				return nil, fmt.Errorf("knn point %d has %d columns, want %d", i, len(pt), width)
			}
		}
		return knn{*a.KNN}, nil
	default:
		return nil, fmt.Errorf("unknown estimator kind %q", a.Kind)
	}
}
