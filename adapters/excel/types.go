package excel

// RawRowData is one data row keyed by column header
type RawRowData map[string]string

// ExcelData is a whole sheet: the header row plus every non-blank data row
type ExcelData struct {
	Headers []string
	Rows    []RawRowData
}

// HasColumn reports whether the sheet has a header with the given name
func (d *ExcelData) HasColumn(name string) bool {
	for _, h := range d.Headers {
		if h == name {
			return true
		}
	}
	return false
}
