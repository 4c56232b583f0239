package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"skincheck/domain/health"
	"skincheck/internal/explain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() Input {
	p := 0.734
	return Input{
		GeneratedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Record:      health.MustParse(map[string]string{"BMI": "31.2", "Smoking": "Yes"}),
		Prediction:  "1",
		Probability: &p,
		Model:       "log_reg",
		SHAP: &explain.Explanation{Method: explain.MethodShapley, Contributions: []explain.Contribution{
			{Feature: "AgeCategory", Value: 0.12},
			{Feature: "Smoking", Value: 0.05},
			{Feature: "PhysicalActivity", Value: -0.03},
		}},
		LIME: &explain.Explanation{Method: explain.MethodLIME, Contributions: []explain.Contribution{
			{Feature: "Smoking=Yes", Value: 0.08},
		}},
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	g, err := NewGenerator(nil, WithoutCompression())
	require.NoError(t, err)

	out, err := g.Bytes(sampleInput())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Contains(t, string(out), "RISK DETECTED")
	assert.Contains(t, string(out), "Estimated probability: 73.4%")
	assert.Contains(t, string(out), "2. Local analysis \\(LIME\\)")
	assert.Contains(t, string(out), "https://www.cdc.gov/skin-cancer/about/index.html")
}

func TestRender_SurvivesChartFailure(t *testing.T) {
	failing := func(string, *explain.Explanation) ([]byte, error) {
		return nil, fmt.Errorf("boom")
	}
	g, err := NewGenerator(nil, WithChartFunc(failing), WithoutCompression())
	require.NoError(t, err)

	out, err := g.Bytes(sampleInput())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Contains(t, string(out), "[SHAP chart rendering error: boom]")
	assert.Contains(t, string(out), "[LIME chart rendering error: boom]")
}

func TestRender_InvalidImageBecomesPlaceholder(t *testing.T) {
	garbage := func(string, *explain.Explanation) ([]byte, error) {
		return []byte("not a png"), nil
	}
	g, err := NewGenerator(nil, WithChartFunc(garbage), WithoutCompression())
	require.NoError(t, err)

	out, err := g.Bytes(sampleInput())
	require.NoError(t, err)
	assert.Contains(t, string(out), "SHAP chart rendering error")
}

func TestRender_NoLIMEAndNoProbability(t *testing.T) {
	g, err := NewGenerator(nil, WithoutCompression())
	require.NoError(t, err)

	in := sampleInput()
	in.LIME = nil
	in.Probability = nil
	in.Prediction = "0"
	out, err := g.Bytes(in)
	require.NoError(t, err)

	assert.Contains(t, string(out), "NO RISK DETECTED")
	assert.Contains(t, string(out), "Estimated probability: not available")
	assert.NotContains(t, string(out), "Local analysis")
}

func TestIsRisk(t *testing.T) {
	for _, v := range []string{"1", "Yes", "Risk"} {
		assert.True(t, IsRisk(v), v)
	}
	for _, v := range []string{"0", "No", "", "yes"} {
		assert.False(t, IsRisk(v), v)
	}
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Heart Disease", Humanize("HeartDisease"))
	assert.Equal(t, "BMI", Humanize("BMI"))
	assert.Equal(t, "Gen Health", Humanize("GenHealth"))
	assert.Equal(t, "model choice", Humanize("model_choice"))
}

func TestFilename(t *testing.T) {
	in := sampleInput()
	in.Model = "knn"
	assert.Equal(t, "skincheck_report_knn_20250314_093000.pdf", Filename(in))
}
