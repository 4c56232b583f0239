package training

import (
	"math/rand"

	"skincheck/domain/pipeline"

	"gonum.org/v1/gonum/floats"
)

// fitLogistic runs full-batch gradient descent on the L2-penalised log loss.
func (t *Trainer) fitLogistic(x [][]float64, y []float64, _ *rand.Rand) (*pipeline.Artifact, error) {
	w, b := t.descend(x, func(i int, z float64) float64 {
		return pipeline.Sigmoid(z) - y[i]
	})
	return &pipeline.Artifact{Logistic: &pipeline.LinearParams{Coef: w, Intercept: b}}, nil
}

// fitSVM minimises the hinge loss by subgradient descent; labels map to -1/+1.
func (t *Trainer) fitSVM(x [][]float64, y []float64, _ *rand.Rand) (*pipeline.Artifact, error) {
	w, b := t.descend(x, func(i int, z float64) float64 {
		s := 2*y[i] - 1
		if s*z < 1 {
			return -s
		}
		return 0
	})
	return &pipeline.Artifact{SVM: &pipeline.LinearParams{Coef: w, Intercept: b}}, nil
}

// descend minimises mean(loss(w·x+b)) + L2/2·|w|² given dloss/dz per row.
func (t *Trainer) descend(x [][]float64, dz func(i int, z float64) float64) ([]float64, float64) {
	width := len(x[0])
	w := make([]float64, width)
	grad := make([]float64, width)
	b := 0.0
	n := float64(len(x))
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		gb := 0.0
		for i, row := range x {
			g := dz(i, floats.Dot(w, row)+b)
			if g == 0 {
				continue
			}
			floats.AddScaled(grad, g, row)
			gb += g
		}
		floats.Scale(1/n, grad)
		floats.AddScaled(grad, t.config.L2, w)
		floats.AddScaled(w, -t.config.LearningRate, grad)
		b -= t.config.LearningRate * gb / n
	}
	return w, b
}
