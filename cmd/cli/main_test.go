package main

import (
	"bytes"
	"testing"

	"skincheck/domain/health"
	"skincheck/internal/dataset"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFlags_ParsesSetPairs(t *testing.T) {
	var rf recordFlags
	cmd := &cobra.Command{Use: "x"}
	rf.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"-m", "knn", "--set", "Smoking=Yes,BMI=31"}))

	rec, err := rf.record()
	require.NoError(t, err)
	assert.Equal(t, "knn", rf.model)
	assert.Equal(t, "Yes", rec.Get(health.FieldSmoking))
	assert.Equal(t, 31.0, rec.Number(health.FieldBMI))
}

func TestFormatMetrics_SortsKeys(t *testing.T) {
	assert.Equal(t, "accuracy=0.900 f1=0.500", formatMetrics(map[string]float64{"f1": 0.5, "accuracy": 0.9}))
	assert.Empty(t, formatMetrics(nil))
}

func TestWriteSummary(t *testing.T) {
	ds := dataset.NewGenerator(dataset.GeneratorConfig{Rows: 50, Seed: 3}).Generate()

	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, ds))
	out := buf.String()
	assert.Contains(t, out, "source: synthetic")
	assert.Contains(t, out, "rows: 50")
	for _, field := range []string{health.FieldBMI, health.FieldPhysicalHealth, health.FieldMentalHealth, health.FieldSleepTime} {
		assert.Contains(t, out, field)
	}
}
