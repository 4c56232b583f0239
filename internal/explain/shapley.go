package explain

import (
	"context"

	"skincheck/domain/health"
)

// Shapley estimates Shapley values by permutation sampling. Each sample draws a
// background record z and a field order, then walks from z to x one field at a
// time crediting each field with the score change it causes. Per sample the
// credits sum to f(x) - f(z), so the estimates sum exactly to
// Prediction - BaseValue where BaseValue is the mean f(z) over the draws.
func (e *Explainer) Shapley(ctx context.Context, m Model, x health.Record) (*Explanation, error) {
	rng := e.rng(0)
	n := len(health.Fields)
	phi := make([]float64, n)
	fx := m.Score(x)
	base := 0.0

	for s := 0; s < e.opts.Samples; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := e.background[rng.Intn(len(e.background))]
		prev := m.Score(cur)
		base += prev
		for _, j := range rng.Perm(n) {
			cur = cur.With(j, x)
			next := m.Score(cur)
			phi[j] += next - prev
			prev = next
		}
	}

	samples := float64(e.opts.Samples)
	out := &Explanation{
		Method:        MethodShapley,
		BaseValue:     base / samples,
		Prediction:    fx,
		Contributions: make([]Contribution, n),
	}
	for j, f := range health.Fields {
		out.Contributions[j] = Contribution{Feature: f.Name, Value: phi[j] / samples}
	}
	return out, nil
}
