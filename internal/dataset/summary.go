package dataset

import (
	"sort"

	"skincheck/domain/health"

	"github.com/montanaflynn/stats"
)

// NumericSummary describes the distribution of one numeric column.
type NumericSummary struct {
	Field  string  `json:"field"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Column returns the values of a numeric field across the dataset.
func (d *Dataset) Column(field string) []float64 {
	out := make([]float64, len(d.Records))
	for i, rec := range d.Records {
		out[i] = rec.Number(field)
	}
	return out
}

// Summarize computes distribution statistics for every numeric field.
func (d *Dataset) Summarize() []NumericSummary {
	var out []NumericSummary
	for _, f := range health.Fields {
		if f.Kind != health.KindNumeric {
			continue
		}
		out = append(out, summarize(f.Name, d.Column(f.Name)))
	}
	return out
}

func summarize(field string, values []float64) NumericSummary {
	s := NumericSummary{Field: field, Count: len(values)}
	if len(values) == 0 {
		return s
	}
	data := stats.Float64Data(values)
	s.Mean, _ = data.Mean()
	s.StdDev, _ = data.StandardDeviation()
	s.Min, _ = data.Min()
	s.Max, _ = data.Max()
	s.Median, _ = data.Median()
	s.P25, _ = data.Percentile(25)
	s.P75, _ = data.Percentile(75)
	return s
}

// Options lists the distinct values of a field present in the data, in the
// field's declared order where it has one, otherwise sorted.
func (d *Dataset) Options(field string) []string {
	seen := make(map[string]bool)
	for _, rec := range d.Records {
		seen[rec.Get(field)] = true
	}
	delete(seen, "")

	var out []string
	if spec, ok := health.Spec(field); ok && len(spec.Options) > 0 {
		for _, opt := range spec.Options {
			if seen[opt] {
				out = append(out, opt)
				delete(seen, opt)
			}
		}
	}
	var rest []string
	for v := range seen {
		rest = append(rest, v)
	}
	sort.Strings(rest)
	return append(out, rest...)
}
