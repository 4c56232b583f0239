package explain

import (
	"context"
	"math"
	"testing"

	"skincheck/domain/health"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func background() []health.Record {
	return []health.Record{
		health.MustParse(map[string]string{"BMI": "22", "Smoking": "No", "SleepTime": "8"}),
		health.MustParse(map[string]string{"BMI": "26", "Smoking": "No", "SleepTime": "6"}),
		health.MustParse(map[string]string{"BMI": "30", "Smoking": "No", "SleepTime": "7"}),
		health.MustParse(map[string]string{"BMI": "24", "Smoking": "No", "SleepTime": "9"}),
	}
}

// linear in BMI and Smoking, with one interaction so the walk order matters.
var additive = ModelFunc(func(rec health.Record) float64 {
	s := 0.05 + 0.01*rec.Number(health.FieldBMI) + 0.3*health.Binary(rec.Get(health.FieldSmoking))
	if rec.Get(health.FieldSmoking) == "Yes" && rec.Number(health.FieldSleepTime) < 6 {
		s += 0.1
	}
	return s
})

func TestShapley_SumsToPredictionMinusBase(t *testing.T) {
	x := health.MustParse(map[string]string{"BMI": "35", "Smoking": "Yes", "SleepTime": "5"})
	e := New(background(), Options{Samples: 300, Seed: 11})

	exp, err := e.Shapley(context.Background(), additive, x)
	require.NoError(t, err)

	assert.Equal(t, MethodShapley, exp.Method)
	assert.InDelta(t, additive(x), exp.Prediction, 1e-12)
	assert.InDelta(t, exp.Prediction-exp.BaseValue, exp.Sum(), 1e-9)
	require.Len(t, exp.Contributions, len(health.Fields))

	top := exp.Top(2)
	assert.Equal(t, health.FieldSmoking, top[0].Feature)
	assert.Greater(t, top[0].Value, 0.3)

	for _, c := range exp.Contributions {
		switch c.Feature {
		case health.FieldBMI:
			// 0.01 * (35 - mean background BMI of 25.5)
			assert.InDelta(t, 0.095, c.Value, 0.02)
		case health.FieldSmoking, health.FieldSleepTime:
		default:
			assert.Zero(t, c.Value, c.Feature)
		}
	}
}

func TestShapley_Deterministic(t *testing.T) {
	x := health.MustParse(map[string]string{"BMI": "35", "Smoking": "Yes"})
	e := New(background(), Options{Samples: 50, Seed: 3})

	a, err := e.Shapley(context.Background(), additive, x)
	require.NoError(t, err)
	b, err := e.Shapley(context.Background(), additive, x)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLIME_RecoversDominantFeature(t *testing.T) {
	x := health.MustParse(map[string]string{"BMI": "25", "Smoking": "Yes"})
	model := ModelFunc(func(rec health.Record) float64 {
		return 1 / (1 + math.Exp(-(4*health.Binary(rec.Get(health.FieldSmoking)) - 2)))
	})
	e := New(background(), Options{Samples: 400, Seed: 5})

	exp, err := e.LIME(context.Background(), model, x)
	require.NoError(t, err)

	top := exp.Top(1)[0]
	assert.Equal(t, "Smoking=Yes", top.Feature)
	assert.Greater(t, top.Value, 0.0)
	assert.Greater(t, exp.R2, 0.5)
	assert.Contains(t, exp.Contributions[1].Feature, "BMI=25.0")
}

func TestBoth_RunsConcurrentlyAndHonoursCancel(t *testing.T) {
	x := health.MustParse(map[string]string{"Smoking": "Yes"})
	e := New(background(), Options{Samples: 40, Seed: 1})

	shap, lime, err := e.Both(context.Background(), additive, x)
	require.NoError(t, err)
	assert.Equal(t, MethodShapley, shap.Method)
	assert.Equal(t, MethodLIME, lime.Method)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = e.Both(ctx, additive, x)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampleBackground(t *testing.T) {
	all := background()
	assert.Len(t, SampleBackground(all, 10, 1), 4)

	a := SampleBackground(all, 2, 9)
	b := SampleBackground(all, 2, 9)
	assert.Len(t, a, 2)
	assert.Equal(t, a, b)
}

func TestTop_OrdersByMagnitude(t *testing.T) {
	exp := &Explanation{Contributions: []Contribution{
		{Feature: "a", Value: 0.1},
		{Feature: "b", Value: -0.5},
		{Feature: "c", Value: 0.3},
	}}
	top := exp.Top(2)
	assert.Equal(t, []Contribution{{Feature: "b", Value: -0.5}, {Feature: "c", Value: 0.3}}, top)
	assert.Len(t, exp.Top(0), 3)
	assert.Equal(t, "a", exp.Contributions[0].Feature)
}

func TestWeightedRidge_IllConditionedStillSolves(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 0, 0, 1e-9})
	y := mat.NewVecDense(2, []float64{2, 3e-9})

	beta, cond, err := weightedRidge(x, y, []float64{1, 1}, 0)
	require.NoError(t, err)
	assert.Greater(t, cond, mat.ConditionTolerance)
	assert.InDelta(t, 2.0, beta.AtVec(0), 1e-6)
	assert.InDelta(t, 3.0, beta.AtVec(1), 1e-6)
}

func TestWeightedRidge_SingularFails(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	y := mat.NewVecDense(2, []float64{1, 2})

	_, _, err := weightedRidge(x, y, []float64{1, 1}, 0)
	require.Error(t, err)
}
