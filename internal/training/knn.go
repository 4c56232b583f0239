package training

import (
	"math/rand"

	"skincheck/domain/pipeline"
)

// fitKNN stores a random sample of the encoded training rows.
func (t *Trainer) fitKNN(x [][]float64, y []float64, rng *rand.Rand) (*pipeline.Artifact, error) {
	n := len(x)
	if t.config.KNNSample > 0 && t.config.KNNSample < n {
		n = t.config.KNNSample
	}
	params := &pipeline.KNNParams{K: t.config.K}
	for _, i := range rng.Perm(len(x))[:n] {
		params.Points = append(params.Points, x[i])
		params.Labels = append(params.Labels, int(y[i]))
	}
	if params.K > n {
		params.K = n
	}
	return &pipeline.Artifact{KNN: params}, nil
}
