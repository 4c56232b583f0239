// Package dataset loads the labelled survey data used by the dashboard, the
// explanation background and model training.
package dataset

import (
	"fmt"
	"os"

	"skincheck/adapters/excel"
	"skincheck/domain/health"
	"skincheck/internal/logging"
)

// Dataset is a set of parsed records with their SkinCancer labels.
type Dataset struct {
	Records []health.Record
	Labels  []bool
	// Synthetic is set when the rows were generated rather than read from disk.
	Synthetic bool
	Source    string
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Positives counts rows labelled as skin cancer.
func (d *Dataset) Positives() int {
	n := 0
	for _, l := range d.Labels {
		if l {
			n++
		}
	}
	return n
}

// Subset returns the rows at the given indices.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		Records:   make([]health.Record, len(idx)),
		Labels:    make([]bool, len(idx)),
		Synthetic: d.Synthetic,
		Source:    d.Source,
	}
	for i, j := range idx {
		out.Records[i] = d.Records[j]
		out.Labels[i] = d.Labels[j]
	}
	return out
}

// FromExcelData parses rows into records. Rows that fail validation are
// skipped and counted; a missing target column is an error.
func FromExcelData(data *excel.ExcelData) (*Dataset, int, error) {
	if !data.HasColumn(health.TargetField) {
		return nil, 0, fmt.Errorf("dataset has no %s column", health.TargetField)
	}

	ds := &Dataset{
		Records: make([]health.Record, 0, len(data.Rows)),
		Labels:  make([]bool, 0, len(data.Rows)),
	}
	skipped := 0
	for _, row := range data.Rows {
		rec, err := health.Parse(health.MapSource(row))
		if err != nil {
			skipped++
			continue
		}
		ds.Records = append(ds.Records, rec)
		ds.Labels = append(ds.Labels, health.IsPositiveLabel(row[health.TargetField]))
	}
	return ds, skipped, nil
}

// ToExcelData renders the dataset back into tabular form, target column last.
func (d *Dataset) ToExcelData() *excel.ExcelData {
	headers := append(health.FieldNames(), health.TargetField)
	rows := make([]excel.RawRowData, len(d.Records))
	for i, rec := range d.Records {
		row := make(excel.RawRowData, len(headers))
		for _, p := range rec.Pairs() {
			row[p[0]] = p[1]
		}
		row[health.TargetField] = "No"
		if d.Labels[i] {
			row[health.TargetField] = "Yes"
		}
		rows[i] = row
	}
	return &excel.ExcelData{Headers: headers, Rows: rows}
}

// Load reads the dataset at path. When the file does not exist a synthetic
// dataset is generated from cfg instead.
func Load(path string, cfg GeneratorConfig, logger *logging.Logger) (*Dataset, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("dataset")

	if path == "" {
		logger.Warn("no dataset path configured, generating %d synthetic rows", cfg.Rows)
		return NewGenerator(cfg).Generate(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warn("dataset %s not found, generating %d synthetic rows", path, cfg.Rows)
		return NewGenerator(cfg).Generate(), nil
	}

	data, err := excel.NewDataReader(path).WithLogger(logger).ReadData()
	if err != nil {
		return nil, err
	}
	ds, skipped, err := FromExcelData(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if skipped > 0 {
		logger.Warn("skipped %d invalid rows in %s", skipped, path)
	}
	ds.Source = path
	logger.Info("loaded %d rows (%d positive) from %s", ds.Len(), ds.Positives(), path)
	return ds, nil
}
