// Package explain attributes a model's score on one record to the record's
// fields. Shapley computes permutation-sampled Shapley values against a
// background sample; LIME fits a weighted linear surrogate around the record.
package explain

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"skincheck/domain/health"

	"golang.org/x/sync/errgroup"
)

const (
	MethodShapley = "shap"
	MethodLIME    = "lime"
)

// Model is anything that scores a record; *pipeline.Pipeline satisfies it.
type Model interface {
	Score(rec health.Record) float64
}

// ModelFunc adapts a function to Model.
type ModelFunc func(rec health.Record) float64

func (f ModelFunc) Score(rec health.Record) float64 { return f(rec) }

// Contribution is the attribution of one field.
type Contribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// Explanation holds one attribution per record field, in canonical order.
type Explanation struct {
	Method string `json:"method"`
	// BaseValue is the expected score for Shapley and the surrogate intercept for LIME.
	BaseValue     float64        `json:"base_value"`
	Prediction    float64        `json:"prediction"`
	Contributions []Contribution `json:"contributions"`
	// R2 is the weighted fit of the LIME surrogate; zero for Shapley.
	R2 float64 `json:"r2,omitempty"`
	// Warning notes a usable but degraded result, e.g. an ill-conditioned surrogate.
	Warning string `json:"warning,omitempty"`
}

// Top returns the n largest contributions by magnitude. n <= 0 returns all.
func (e *Explanation) Top(n int) []Contribution {
	out := append([]Contribution(nil), e.Contributions...)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Sum adds up all contributions.
func (e *Explanation) Sum() float64 {
	total := 0.0
	for _, c := range e.Contributions {
		total += c.Value
	}
	return total
}

// Options tunes the estimators.
type Options struct {
	Samples int
	Seed    int64
	// KernelWidth scales the LIME proximity kernel; defaults to 0.75.
	KernelWidth float64
	// Ridge is the LIME L2 penalty; defaults to 1.
	Ridge float64
}

// Explainer computes explanations against a fixed background sample. It holds
// no mutable state and is safe for concurrent use.
type Explainer struct {
	background []health.Record
	opts       Options
}

// New creates an explainer. An empty background falls back to the all-default record.
func New(background []health.Record, opts Options) *Explainer {
	if len(background) == 0 {
		background = []health.Record{health.Default()}
	}
	if opts.Samples <= 0 {
		opts.Samples = 200
	}
	if opts.KernelWidth <= 0 {
		opts.KernelWidth = 0.75
	}
	if opts.Ridge <= 0 {
		opts.Ridge = 1
	}
	return &Explainer{background: background, opts: opts}
}

// SampleBackground draws up to n records without replacement, deterministically for a seed.
func SampleBackground(records []health.Record, n int, seed int64) []health.Record {
	if n >= len(records) {
		return append([]health.Record(nil), records...)
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(len(records))[:n]
	sort.Ints(idx)
	out := make([]health.Record, n)
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}

// Both runs the Shapley and LIME estimators concurrently.
func (e *Explainer) Both(ctx context.Context, m Model, x health.Record) (shap, lime *Explanation, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shap, err = e.Shapley(gctx, m, x)
		return err
	})
	g.Go(func() error {
		var err error
		lime, err = e.LIME(gctx, m, x)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return shap, lime, nil
}

func (e *Explainer) rng(offset int64) *rand.Rand {
	return rand.New(rand.NewSource(e.opts.Seed + offset))
}

// conditionLabel renders a field with the record's value, e.g. "Smoking=Yes".
func conditionLabel(i int, x health.Record) string {
	f := health.Fields[i]
	if f.Kind == health.KindNumeric {
		return f.Name + "=" + strconv.FormatFloat(x.Numbers[i], 'f', 1, 64)
	}
	return f.Name + "=" + x.Values[i]
}
