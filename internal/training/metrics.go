package training

import (
	"sort"

	"skincheck/domain/pipeline"
	"skincheck/internal/dataset"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Metrics are hold-out classification scores. AUC is zero for models without
// a probability output or when the hold-out set has a single class.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUC       float64 `json:"roc_auc"`
}

// Map renders the metrics for the artifact.
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		"accuracy":  m.Accuracy,
		"precision": m.Precision,
		"recall":    m.Recall,
		"f1":        m.F1,
		"roc_auc":   m.AUC,
	}
}

// Evaluate scores a pipeline on labelled rows.
func Evaluate(p *pipeline.Pipeline, ds *dataset.Dataset) Metrics {
	var tp, fp, tn, fn float64
	scores := make([]float64, 0, ds.Len())
	for i, rec := range ds.Records {
		pred := p.Predict(rec) == 1
		switch {
		case pred && ds.Labels[i]:
			tp++
		case pred:
			fp++
		case ds.Labels[i]:
			fn++
		default:
			tn++
		}
		if proba, ok := p.PredictProba(rec); ok {
			scores = append(scores, proba)
		}
	}

	var m Metrics
	if n := tp + fp + tn + fn; n > 0 {
		m.Accuracy = (tp + tn) / n
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	if len(scores) == ds.Len() && tp+fn > 0 && tn+fp > 0 {
		m.AUC = AUC(scores, ds.Labels)
	}
	return m
}

// AUC is the area under the ROC curve.
func AUC(scores []float64, labels []bool) float64 {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	y := make([]float64, len(order))
	classes := make([]bool, len(order))
	for k, i := range order {
		y[k] = scores[i]
		classes[k] = labels[i]
	}
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
