package pipeline

import (
	"bytes"
	"testing"

	"skincheck/domain/health"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureRecords() []health.Record {
	return []health.Record{
		health.MustParse(map[string]string{"BMI": "20", "Smoking": "No", "Sex": "Female"}),
		health.MustParse(map[string]string{"BMI": "30", "Smoking": "Yes", "Sex": "Male"}),
		health.MustParse(map[string]string{"BMI": "40", "Smoking": "Yes", "Sex": "Male", "AgeCategory": "80 or older"}),
	}
}

func columnIndex(t *testing.T, spec PreprocessSpec, name string) int {
	t.Helper()
	for i, n := range spec.FeatureNames() {
		if n == name {
			return i
		}
	}
	t.Fatalf("column %s not found", name)
	return -1
}

func TestFitPreprocess_Layout(t *testing.T) {
	spec := FitPreprocess(fixtureRecords())

	// 8 binaries + 2 sexes + 13 ages + 6 races + 4 diabetic + 5 gen health + 4 numerics
	assert.Equal(t, 42, spec.Width())

	bmi := spec.Columns[columnIndex(t, spec, "BMI")]
	assert.InDelta(t, 30.0, bmi.Mean, 1e-9)
	assert.InDelta(t, 10.0, bmi.Scale, 1e-9)

	// Constant columns keep a unit scale.
	sleep := spec.Columns[columnIndex(t, spec, "SleepTime")]
	assert.Equal(t, 1.0, sleep.Scale)
}

func TestPreprocessSpec_Encode(t *testing.T) {
	spec := FitPreprocess(fixtureRecords())
	x := spec.Encode(fixtureRecords()[2])

	assert.Equal(t, 1.0, x[columnIndex(t, spec, "Smoking")])
	assert.Equal(t, 1.0, x[columnIndex(t, spec, "Sex=Male")])
	assert.Equal(t, 0.0, x[columnIndex(t, spec, "Sex=Female")])
	assert.Equal(t, 1.0, x[columnIndex(t, spec, "AgeCategory=80 or older")])
	assert.InDelta(t, 1.0, x[columnIndex(t, spec, "BMI")], 1e-9)
}

func logisticArtifact(t *testing.T) *Artifact {
	spec := FitPreprocess(fixtureRecords())
	coef := make([]float64, spec.Width())
	coef[columnIndex(t, spec, "Smoking")] = 3
	return &Artifact{
		Format:     FormatVersion,
		Name:       "log_reg",
		Kind:       KindLogisticRegression,
		Preprocess: spec,
		Logistic:   &LinearParams{Coef: coef, Intercept: -1.5},
	}
}

func TestPipeline_Logistic(t *testing.T) {
	p, err := FromArtifact(logisticArtifact(t))
	require.NoError(t, err)

	smoker := health.MustParse(map[string]string{"Smoking": "Yes"})
	nonSmoker := health.Default()

	proba, ok := p.PredictProba(smoker)
	require.True(t, ok)
	assert.InDelta(t, Sigmoid(1.5), proba, 1e-12)
	assert.Equal(t, 1, p.Predict(smoker))
	assert.Equal(t, 0, p.Predict(nonSmoker))
	assert.Equal(t, "log_reg", p.Name())
	assert.True(t, p.HasProba())
}

func TestPipeline_LinearSVMHasNoProbability(t *testing.T) {
	a := logisticArtifact(t)
	a.Kind = KindLinearSVM
	a.SVM = a.Logistic
	a.Logistic = nil

	p, err := FromArtifact(a)
	require.NoError(t, err)

	_, ok := p.PredictProba(health.Default())
	assert.False(t, ok)
	assert.False(t, p.HasProba())
	assert.Equal(t, 1.0, p.Score(health.MustParse(map[string]string{"Smoking": "Yes"})))
}

func stumpOn(feature int, low, high float64) Tree {
	return Tree{Nodes: []Node{
		{Feature: feature, Threshold: 0.5, Left: 1, Right: 2},
		{Feature: -1, Value: low},
		{Feature: -1, Value: high},
	}}
}

func TestPipeline_ForestAndBoosting(t *testing.T) {
	spec := FitPreprocess(fixtureRecords())
	smoking := columnIndex(t, spec, "Smoking")

	forestArtifact := &Artifact{
		Format: FormatVersion, Name: "random_forest", Kind: KindRandomForest, Preprocess: spec,
		Forest: &ForestParams{Trees: []Tree{stumpOn(smoking, 0.1, 0.9), stumpOn(smoking, 0.3, 0.7)}},
	}
	rf, err := FromArtifact(forestArtifact)
	require.NoError(t, err)
	proba, _ := rf.PredictProba(health.MustParse(map[string]string{"Smoking": "Yes"}))
	assert.InDelta(t, 0.8, proba, 1e-12)
	proba, _ = rf.PredictProba(health.Default())
	assert.InDelta(t, 0.2, proba, 1e-12)

	boostArtifact := &Artifact{
		Format: FormatVersion, Name: "gradient_boosting", Kind: KindGradientBoosting, Preprocess: spec,
		Boosting: &BoostingParams{Init: -1, LearningRate: 0.5, Trees: []Tree{stumpOn(smoking, -1, 4)}},
	}
	gb, err := FromArtifact(boostArtifact)
	require.NoError(t, err)
	proba, _ = gb.PredictProba(health.MustParse(map[string]string{"Smoking": "Yes"}))
	assert.InDelta(t, Sigmoid(1), proba, 1e-12)
	assert.Equal(t, 0, gb.Predict(health.Default()))
}

func TestPipeline_KNN(t *testing.T) {
	records := fixtureRecords()
	spec := FitPreprocess(records)
	points := make([][]float64, len(records))
	for i, r := range records {
		points[i] = spec.Encode(r)
	}
	a := &Artifact{
		Format: FormatVersion, Name: "knn", Kind: KindKNN, Preprocess: spec,
		KNN: &KNNParams{K: 2, Points: points, Labels: []int{0, 1, 1}},
	}
	p, err := FromArtifact(a)
	require.NoError(t, err)

	proba, ok := p.PredictProba(records[2])
	require.True(t, ok)
	assert.Equal(t, 1.0, proba)

	proba, _ = p.PredictProba(records[0])
	assert.Equal(t, 0.5, proba)
	assert.Equal(t, 1, p.Predict(records[0]))
}

func TestFromArtifact_Rejects(t *testing.T) {
	spec := FitPreprocess(fixtureRecords())
	cases := map[string]*Artifact{
		"unknown kind":   {Name: "x", Kind: "svc", Preprocess: spec},
		"short coef":     {Name: "x", Kind: KindLogisticRegression, Preprocess: spec, Logistic: &LinearParams{Coef: []float64{1}}},
		"no trees":       {Name: "x", Kind: KindRandomForest, Preprocess: spec, Forest: &ForestParams{}},
		"cyclic tree":    {Name: "x", Kind: KindRandomForest, Preprocess: spec, Forest: &ForestParams{Trees: []Tree{{Nodes: []Node{{Feature: 0, Left: 0, Right: 0}}}}}},
		"knn mismatch":   {Name: "x", Kind: KindKNN, Preprocess: spec, KNN: &KNNParams{K: 1, Points: [][]float64{{1}}, Labels: []int{1}}},
		"no preprocess":  {Name: "x", Kind: KindLogisticRegression, Logistic: &LinearParams{}},
	}
	for name, a := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromArtifact(a)
			assert.Error(t, err)
		})
	}
}

func TestArtifact_EncodeDecode(t *testing.T) {
	a := logisticArtifact(t)
	a.Format = 0

	var buf bytes.Buffer
	require.NoError(t, a.Encode(&buf))

	decoded, err := DecodeArtifact(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(a.Preprocess, decoded.Preprocess); diff != "" {
		t.Errorf("preprocess mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, FormatVersion, decoded.Format)
}

func TestDecodeArtifact_RejectsUnknownFormat(t *testing.T) {
	_, err := DecodeArtifact(bytes.NewBufferString(`{"format": 7, "name": "x"}`))
	assert.Error(t, err)
}
