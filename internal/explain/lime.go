package explain

import (
	"context"
	"errors"
	"fmt"
	"math"

	"skincheck/domain/health"

	"gonum.org/v1/gonum/mat"
)

// LIME fits a ridge-penalised linear surrogate on interpretable binary features:
// feature j is 1 when the perturbed record keeps x's value for field j. Each
// field is replaced by a background value with probability 1/2, and samples are
// weighted by an exponential kernel over the fraction of fields replaced.
func (e *Explainer) LIME(ctx context.Context, m Model, x health.Record) (*Explanation, error) {
	rng := e.rng(1)
	n := len(health.Fields)
	rows := e.opts.Samples
	if rows < n+2 {
		rows = n + 2
	}

	design := mat.NewDense(rows, n+1, nil)
	y := mat.NewVecDense(rows, nil)
	w := make([]float64, rows)

	for s := 0; s < rows; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		z := e.background[rng.Intn(len(e.background))]
		rec := x
		changed := 0
		design.Set(s, 0, 1)
		for j := 0; j < n; j++ {
			keep := s == 0 || rng.Float64() < 0.5
			if keep {
				design.Set(s, j+1, 1)
				continue
			}
			rec = rec.With(j, z)
			changed++
		}
		d := float64(changed) / float64(n)
		w[s] = math.Exp(-(d * d) / (e.opts.KernelWidth * e.opts.KernelWidth))
		y.SetVec(s, m.Score(rec))
	}

	beta, cond, err := weightedRidge(design, y, w, e.opts.Ridge)
	if err != nil {
		return nil, fmt.Errorf("lime surrogate: %w", err)
	}

	out := &Explanation{
		Method:        MethodLIME,
		BaseValue:     beta.AtVec(0),
		Prediction:    m.Score(x),
		Contributions: make([]Contribution, n),
		R2:            weightedR2(design, y, w, beta),
	}
	if cond != 0 {
		out.Warning = fmt.Sprintf("surrogate is ill-conditioned (condition number %.3g)", cond)
	}
	for j := 0; j < n; j++ {
		out.Contributions[j] = Contribution{Feature: conditionLabel(j, x), Value: beta.AtVec(j + 1)}
	}
	return out, nil
}

// weightedRidge solves (XᵀWX + λI')β = XᵀWy where I' leaves the intercept
// column (column 0) unpenalised. A finite condition number above gonum's
// tolerance still yields a solution and is returned alongside it; only a
// singular system is an error.
func weightedRidge(x *mat.Dense, y *mat.VecDense, w []float64, lambda float64) (*mat.VecDense, float64, error) {
	rows, cols := x.Dims()
	xs := mat.NewDense(rows, cols, nil)
	ys := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		sw := math.Sqrt(w[i])
		for j := 0; j < cols; j++ {
			xs.Set(i, j, sw*x.At(i, j))
		}
		ys.SetVec(i, sw*y.AtVec(i))
	}

	var a mat.Dense
	a.Mul(xs.T(), xs)
	for j := 1; j < cols; j++ {
		a.Set(j, j, a.At(j, j)+lambda)
	}
	var b mat.VecDense
	b.MulVec(xs.T(), ys)

	var beta mat.VecDense
	err := beta.SolveVec(&a, &b)
	var cond mat.Condition
	switch {
	case err == nil:
		return &beta, 0, nil
	case errors.As(err, &cond) && !math.IsInf(float64(cond), 0):
		return &beta, float64(cond), nil
	default:
		return nil, 0, err
	}
}

func weightedR2(x *mat.Dense, y *mat.VecDense, w []float64, beta *mat.VecDense) float64 {
	var pred mat.VecDense
	pred.MulVec(x, beta)

	sumW, mean := 0.0, 0.0
	for i := range w {
		sumW += w[i]
		mean += w[i] * y.AtVec(i)
	}
	mean /= sumW

	ssRes, ssTot := 0.0, 0.0
	for i := range w {
		r := y.AtVec(i) - pred.AtVec(i)
		t := y.AtVec(i) - mean
		ssRes += w[i] * r * r
		ssTot += w[i] * t * t
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}
