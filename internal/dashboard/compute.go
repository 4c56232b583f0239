// Package dashboard is the analytics mini-app: filters over the survey
// dataset drive stat cards, six charts and a statistical summary.
package dashboard

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"skincheck/domain/health"
	"skincheck/internal/dataset"

	"github.com/montanaflynn/stats"
)

// Chart colours.
const (
	colorPrimary   = "#667eea"
	colorSecondary = "#764ba2"
	colorSafe      = "#48bb78"
	colorRisk      = "#f56565"
	colorHealth    = "#ed8936"
	bmiBins        = 30
	noData         = "No data"
)

// FilterFields are the dataset columns the dropdowns filter on, keyed by query parameter.
var FilterFields = []struct {
	Param string
	Field string
	Label string
}{
	{"age", health.FieldAgeCategory, "Age categories"},
	{"smoking", health.FieldSmoking, "Smoking status"},
	{"sex", health.FieldSex, "Sex"},
	{"activity", health.FieldPhysicalActivity, "Physical activity"},
}

// Filter holds the selected values per field. An empty selection, or one
// containing "all", does not filter.
type Filter map[string][]string

// ParseFilter reads selections from query or form values. Both the short
// parameter names and the field names are accepted; comma lists are split.
func ParseFilter(values url.Values) Filter {
	f := make(Filter)
	for _, ff := range FilterFields {
		var selected []string
		for _, key := range []string{ff.Param, ff.Field} {
			for _, v := range values[key] {
				for _, part := range strings.Split(v, ",") {
					if part = strings.TrimSpace(part); part != "" {
						selected = append(selected, part)
					}
				}
			}
		}
		if len(selected) > 0 {
			f[ff.Field] = selected
		}
	}
	return f
}

// Match reports whether a record passes every active selection.
func (f Filter) Match(rec health.Record) bool {
	for field, selected := range f {
		if len(selected) == 0 || contains(selected, "all") {
			continue
		}
		if !contains(selected, rec.Get(field)) {
			return false
		}
	}
	return true
}

// Apply returns the indices of matching rows.
func (f Filter) Apply(ds *dataset.Dataset) []int {
	idx := make([]int, 0, ds.Len())
	for i, rec := range ds.Records {
		if f.Match(rec) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Cards are the four headline figures, preformatted.
type Cards struct {
	Total  string `json:"total"`
	Cancer string `json:"cancer"`
	Rate   string `json:"rate"`
	BMI    string `json:"bmi"`
}

// Series is one named set of values over the figure's labels.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors,omitempty"`
}

// Figure describes one chart for the front end.
type Figure struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Type   string   `json:"type"` // bar, pie, histogram
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
	XTitle string   `json:"x_title,omitempty"`
	YTitle string   `json:"y_title,omitempty"`
	Empty  bool     `json:"empty,omitempty"`
}

// SummaryLine is one label/value row of the statistical summary.
type SummaryLine struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Result is everything one filter change recomputes.
type Result struct {
	Cards   Cards         `json:"cards"`
	Figures []Figure      `json:"figures"`
	Summary []SummaryLine `json:"summary"`
	Warning string        `json:"warning,omitempty"`
	Rows    int           `json:"rows"`
}

var figureIDs = []struct{ id, title string }{
	{"age-distribution", "Distribution by age category"},
	{"bmi-distribution", "BMI distribution"},
	{"smoking-distribution", "Smoking status"},
	{"cancer-distribution", "Skin cancer cases"},
	{"health-distribution", "General health"},
	{"heart-cancer-chart", "Heart disease vs skin cancer"},
}

// Compute recomputes the dashboard for a filter.
func Compute(ds *dataset.Dataset, f Filter) Result {
	if ds.Len() == 0 {
		return emptyResult()
	}
	sub := ds.Subset(f.Apply(ds))

	total := sub.Len()
	cancer := sub.Positives()
	rate := "0%"
	if total > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(cancer)/float64(total)*100)
	}
	bmi := fmt.Sprintf("%.1f", mean(sub.Column(health.FieldBMI)))

	res := Result{
		Cards: Cards{
			Total:  formatCount(total),
			Cancer: formatCount(cancer),
			Rate:   rate,
			BMI:    bmi,
		},
		Rows: total,
	}

	res.Figures = []Figure{
		categoryBar(sub, health.FieldAgeCategory, figureIDs[0].id, figureIDs[0].title, "Age", colorPrimary),
		bmiHistogram(sub),
		smokingPie(sub),
		{
			ID:     figureIDs[3].id,
			Title:  figureIDs[3].title,
			Type:   "pie",
			Labels: []string{"Positive", "Negative"},
			Series: []Series{{Name: "Patients", Values: []float64{float64(cancer), float64(total - cancer)}, Colors: []string{colorRisk, colorSafe}}},
		},
		categoryBar(sub, health.FieldGenHealth, figureIDs[4].id, figureIDs[4].title, "State", colorHealth),
		heartVsCancer(sub),
	}

	res.Summary = []SummaryLine{
		{"Population", formatCount(total) + " patients"},
		{"Skin cancer", fmt.Sprintf("%s cases (%s)", formatCount(cancer), rate)},
		{"Mean BMI", bmi},
		{"Heart disease", formatCount(countYes(sub, health.FieldHeartDisease))},
		{"Smokers", formatCount(countYes(sub, health.FieldSmoking))},
		{"Physical activity", formatCount(countYes(sub, health.FieldPhysicalActivity))},
		{"Mean sleep", fmt.Sprintf("%.1fh", mean(sub.Column(health.FieldSleepTime)))},
		{"Mental health", fmt.Sprintf("%.1f days", mean(sub.Column(health.FieldMentalHealth)))},
		{"Physical health", fmt.Sprintf("%.1f days", mean(sub.Column(health.FieldPhysicalHealth)))},
	}
	if total == 0 {
		res.Warning = "No patients match the selected filters"
	}
	return res
}

func emptyResult() Result {
	figs := make([]Figure, len(figureIDs))
	for i, f := range figureIDs {
		figs[i] = Figure{ID: f.id, Title: noData, Type: "bar", Labels: []string{}, Series: []Series{}, Empty: true}
	}
	return Result{
		Cards:   Cards{Total: "0", Cancer: "0", Rate: "0%", BMI: "0"},
		Figures: figs,
		Summary: []SummaryLine{},
		Warning: noData,
	}
}

// categoryBar counts a categorical field in its declared option order.
func categoryBar(ds *dataset.Dataset, field, id, title, xTitle, color string) Figure {
	counts := make(map[string]int)
	for _, rec := range ds.Records {
		counts[rec.Get(field)]++
	}
	labels := ds.Options(field)
	values := make([]float64, len(labels))
	for i, l := range labels {
		values[i] = float64(counts[l])
	}
	return Figure{
		ID:     id,
		Title:  title,
		Type:   "bar",
		Labels: labels,
		Series: []Series{{Name: "Count", Values: values, Colors: []string{color}}},
		XTitle: xTitle,
		YTitle: "Count",
	}
}

// bmiHistogram bins BMI into equal-width bins between the observed extremes.
func bmiHistogram(ds *dataset.Dataset) Figure {
	fig := Figure{
		ID:     figureIDs[1].id,
		Title:  figureIDs[1].title,
		Type:   "histogram",
		XTitle: "BMI",
		YTitle: "Count",
		Labels: []string{},
		Series: []Series{},
	}
	values := ds.Column(health.FieldBMI)
	if len(values) == 0 {
		return fig
	}
	lo, _ := stats.Min(values)
	hi, _ := stats.Max(values)
	width := (hi - lo) / bmiBins
	if width == 0 {
		width = 1
	}

	counts := make([]float64, bmiBins)
	for _, v := range values {
		bin := int((v - lo) / width)
		if bin >= bmiBins {
			bin = bmiBins - 1
		}
		counts[bin]++
	}
	labels := make([]string, bmiBins)
	for i := range labels {
		labels[i] = strconv.FormatFloat(lo+width*(float64(i)+0.5), 'f', 1, 64)
	}
	fig.Labels = labels
	fig.Series = []Series{{Name: "Count", Values: counts, Colors: []string{colorSecondary}}}
	return fig
}

// smokingPie orders slices by descending count.
func smokingPie(ds *dataset.Dataset) Figure {
	counts := make(map[string]int)
	for _, rec := range ds.Records {
		counts[rec.Get(health.FieldSmoking)]++
	}
	labels := make([]string, 0, len(counts))
	for k := range counts {
		labels = append(labels, k)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	values := make([]float64, len(labels))
	for i, l := range labels {
		values[i] = float64(counts[l])
	}
	return Figure{
		ID:     figureIDs[2].id,
		Title:  figureIDs[2].title,
		Type:   "pie",
		Labels: labels,
		Series: []Series{{Name: "Patients", Values: values, Colors: []string{colorSafe, colorRisk}}},
	}
}

// heartVsCancer groups patients by heart disease, one series per cancer label.
func heartVsCancer(ds *dataset.Dataset) Figure {
	labels := []string{"No", "Yes"}
	no := make([]float64, 2)
	yes := make([]float64, 2)
	for i, rec := range ds.Records {
		x := 0
		if health.IsYes(rec.Get(health.FieldHeartDisease)) {
			x = 1
		}
		if ds.Labels[i] {
			yes[x]++
		} else {
			no[x]++
		}
	}
	return Figure{
		ID:     figureIDs[5].id,
		Title:  figureIDs[5].title,
		Type:   "bar",
		Labels: labels,
		Series: []Series{
			{Name: "No skin cancer", Values: no, Colors: []string{colorSafe}},
			{Name: "Skin cancer", Values: yes, Colors: []string{colorRisk}},
		},
		XTitle: "Heart disease",
		YTitle: "Count",
	}
}

func countYes(ds *dataset.Dataset, field string) int {
	n := 0
	for _, rec := range ds.Records {
		if health.IsYes(rec.Get(field)) {
			n++
		}
	}
	return n
}

// mean is zero for an empty column.
func mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil || math.IsNaN(m) {
		return 0
	}
	return m
}

// formatCount renders an integer with thousands separators.
func formatCount(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return "-" + formatCount(-n)
	}
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
