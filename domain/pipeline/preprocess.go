package pipeline

import (
	"fmt"

	"skincheck/domain/health"

	"gonum.org/v1/gonum/stat"
)

// Encode turns a record into the estimator's feature vector.
func (s PreprocessSpec) Encode(rec health.Record) []float64 {
	x := make([]float64, len(s.Columns))
	for i, col := range s.Columns {
		switch col.Kind {
		case health.KindBinary:
			x[i] = health.Binary(rec.Get(col.Field))
		case health.KindCategorical:
			if rec.Get(col.Field) == col.Category {
				x[i] = 1
			}
		case health.KindNumeric:
			scale := col.Scale
			if scale == 0 {
				scale = 1
			}
			x[i] = (rec.Number(col.Field) - col.Mean) / scale
		}
	}
	return x
}

// Width is the encoded vector length.
func (s PreprocessSpec) Width() int {
	return len(s.Columns)
}

// FeatureNames labels the encoded columns, e.g. "Sex=Female".
func (s PreprocessSpec) FeatureNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		if col.Kind == health.KindCategorical {
			names[i] = fmt.Sprintf("%s=%s", col.Field, col.Category)
		} else {
			names[i] = col.Field
		}
	}
	return names
}

// FitPreprocess derives the column layout from training records: binaries map
// straight through, categoricals are one-hot encoded over the declared options
// and numerics are standardised with the sample mean and deviation.
func FitPreprocess(records []health.Record) PreprocessSpec {
	var spec PreprocessSpec
	for _, f := range health.Fields {
		switch f.Kind {
		case health.KindBinary:
			spec.Columns = append(spec.Columns, Column{Field: f.Name, Kind: f.Kind})
		case health.KindCategorical:
			for _, opt := range f.Options {
				spec.Columns = append(spec.Columns, Column{Field: f.Name, Kind: f.Kind, Category: opt})
			}
		case health.KindNumeric:
			values := make([]float64, len(records))
			for i, rec := range records {
				values[i] = rec.Number(f.Name)
			}
			mean, std := 0.0, 1.0
			if len(values) > 1 {
				mean, std = stat.MeanStdDev(values, nil)
			}
			if std == 0 {
				std = 1
			}
			spec.Columns = append(spec.Columns, Column{Field: f.Name, Kind: f.Kind, Mean: mean, Scale: std})
		}
	}
	return spec
}
