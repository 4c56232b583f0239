// Package report lays out the PDF explainability report: branding, patient
// data, the prediction badge, SHAP and LIME sections, the medical reference
// pages and the sources.
package report

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"skincheck/domain/health"
	"skincheck/internal/charts"
	"skincheck/internal/errors"
	"skincheck/internal/explain"
	"skincheck/internal/logging"
	"skincheck/internal/reference"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
)

type rgb struct{ r, g, b int }

var (
	primaryColor   = rgb{37, 99, 235}
	secondaryColor = rgb{30, 64, 175}
	accentColor    = rgb{59, 130, 246}
	dangerColor    = rgb{239, 68, 68}
	successColor   = rgb{16, 185, 129}
	neutralLight   = rgb{243, 244, 246}
	mutedText      = rgb{75, 85, 99}
	white          = rgb{255, 255, 255}
	black          = rgb{0, 0, 0}
)

const (
	margin      = 20.0 // mm
	chartWidth  = 152.4
	chartHeight = 76.2
	topFeatures = 5
)

// Input is everything one report shows.
type Input struct {
	ID          uuid.UUID
	GeneratedAt time.Time
	Record      health.Record
	// Prediction is "1"/"Yes"/"Risk" for a positive result.
	Prediction  string
	Probability *float64
	Model       string
	SHAP        *explain.Explanation
	LIME        *explain.Explanation
}

// IsRisk reports whether a prediction label means a detected risk.
func IsRisk(prediction string) bool {
	switch prediction {
	case "1", "Yes", "Risk":
		return true
	}
	return false
}

// ChartFunc renders an explanation to PNG bytes.
type ChartFunc func(title string, e *explain.Explanation) ([]byte, error)

// DefaultChart draws the top contributions with gonum/plot.
func DefaultChart(title string, e *explain.Explanation) ([]byte, error) {
	return charts.Contributions(title, e, 10)
}

// Generator renders reports. It is safe for concurrent use.
type Generator struct {
	chart    ChartFunc
	logger   *logging.Logger
	medical  []reference.Section
	sources  []reference.Section
	compress bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithChartFunc replaces the chart renderer.
func WithChartFunc(f ChartFunc) Option {
	return func(g *Generator) { g.chart = f }
}

// WithoutCompression leaves page streams uncompressed.
func WithoutCompression() Option {
	return func(g *Generator) { g.compress = false }
}

// NewGenerator parses the embedded reference content once.
func NewGenerator(logger *logging.Logger, opts ...Option) (*Generator, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	medical, err := reference.Sections(reference.Medical)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load medical reference")
	}
	sources, err := reference.Sections(reference.Sources)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sources")
	}
	g := &Generator{
		chart:    DefaultChart,
		logger:   logger.Named("report"),
		medical:  medical,
		sources:  sources,
		compress: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Filename is the attachment name for a report.
func Filename(in Input) string {
	return fmt.Sprintf("skincheck_report_%s_%s.pdf", in.Model, in.GeneratedAt.Format("20060102_150405"))
}

// Render writes the PDF to w.
func (g *Generator) Render(w io.Writer, in Input) error {
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}

	d := newDocument(g.compress, in)
	d.header(in)
	d.patientTable(in.Record)
	d.result(in)

	d.pdf.AddPage()
	d.sectionHeader("1. Global analysis (SHAP)")
	d.paragraph("SHAP analysis shows how each factor pushes the prediction towards risk (red) or towards safety (green), based on a global understanding of the model.")
	d.pdf.Ln(3)
	d.chart(g.renderChart("SHAP", "Feature contributions (SHAP)", in.SHAP))
	d.factors("Main factors (SHAP):", in.SHAP)

	if in.LIME != nil {
		d.pdf.AddPage()
		d.sectionHeader("2. Local analysis (LIME)")
		d.paragraph("LIME looks at the specific impact of this patient's values by perturbing the data locally to isolate the decisive factors.")
		d.pdf.Ln(3)
		d.chart(g.renderChart("LIME", "Local explanation (LIME)", in.LIME))
		d.factors("Decisive factors (LIME):", in.LIME)
	}

	d.pdf.AddPage()
	d.sections(g.medical, false)

	d.pdf.AddPage()
	d.sections(g.sources, true)

	if err := d.pdf.Output(w); err != nil {
		return errors.ReportFailed(err)
	}
	g.logger.Debug("report %s rendered (%d pages)", in.ID, d.pdf.PageNo())
	return nil
}

// Bytes renders the PDF into memory.
func (g *Generator) Bytes(in Input) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.Render(&buf, in); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type chartResult struct {
	name string
	png  []byte
	err  error
}

// renderChart never fails the report; a broken chart becomes a placeholder.
func (g *Generator) renderChart(name, title string, e *explain.Explanation) chartResult {
	if e == nil {
		return chartResult{name: name, err: charts.ErrNoData}
	}
	img, err := g.chart(title, e)
	if err == nil {
		_, err = png.DecodeConfig(bytes.NewReader(img))
	}
	if err != nil {
		g.logger.Error("%s chart rendering failed: %v", name, err)
	}
	return chartResult{name: name, png: img, err: err}
}

type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(compress bool, in Input) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCompression(compress)
	pdf.SetTitle("SkinCheck report", true)
	pdf.SetCreator("SkinCheck", true)
	pdf.SetCreationDate(in.GeneratedAt)
	pdf.SetModificationDate(in.GeneratedAt)
	pdf.AliasNbPages("")

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		d.color(mutedText)
		pdf.CellFormat(0, 10, fmt.Sprintf("SkinCheck - page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	return d
}

func (d *document) color(c rgb) { d.pdf.SetTextColor(c.r, c.g, c.b) }
func (d *document) fill(c rgb)  { d.pdf.SetFillColor(c.r, c.g, c.b) }

func (d *document) header(in Input) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 24)
	d.color(primaryColor)
	pdf.CellFormat(0, 12, "SkinCheck", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 16)
	d.color(black)
	pdf.CellFormat(0, 10, d.tr("AI-assisted dermatological analysis report"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 9)
	d.color(mutedText)
	pdf.CellFormat(0, 5, "Generated on "+in.GeneratedAt.Format("02/01/2006 at 15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Report "+in.ID.String(), "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (d *document) sectionHeader(title string) {
	pdf := d.pdf
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 16)
	d.fill(secondaryColor)
	d.color(white)
	pdf.CellFormat(0, 11, "  "+d.tr(title), "", 1, "L", true, 0, "")
	pdf.Ln(4)
	d.color(black)
}

func (d *document) paragraph(text string) {
	d.pdf.SetFont("Helvetica", "", 10)
	d.color(black)
	d.pdf.MultiCell(0, 5, d.tr(text), "", "L", false)
}

func (d *document) small(text string) {
	d.pdf.SetFont("Helvetica", "", 9)
	d.color(mutedText)
	d.pdf.MultiCell(0, 4.5, d.tr(text), "", "L", false)
}

// patientTable lays the record out three key/value pairs per row. The first
// row carries the accent colour, the rest alternate backgrounds.
func (d *document) patientTable(rec health.Record) {
	d.sectionHeader("Patient data & risk factors")

	pdf := d.pdf
	left, _, right, _ := pdf.GetMargins()
	page, _ := pdf.GetPageSize()
	pairWidth := (page - left - right) / 3
	keyWidth := pairWidth * 0.6
	valueWidth := pairWidth - keyWidth

	pairs := rec.Pairs()
	for row := 0; row*3 < len(pairs); row++ {
		bg, fg := neutralLight, black
		if row == 0 {
			bg, fg = accentColor, white
		} else if row%2 == 0 {
			bg = white
		}
		d.fill(bg)
		d.color(fg)
		for col := 0; col < 3; col++ {
			key, value := "", ""
			if i := row*3 + col; i < len(pairs) {
				key, value = Humanize(pairs[i][0])+":", pairs[i][1]
			}
			pdf.SetFont("Helvetica", "B", 9)
			pdf.CellFormat(keyWidth, 8, d.tr(key), "", 0, "L", true, 0, "")
			pdf.SetFont("Helvetica", "", 9)
			pdf.CellFormat(valueWidth, 8, d.tr(value), "", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}
	d.color(black)
	pdf.Ln(6)
}

func (d *document) result(in Input) {
	d.sectionHeader("Analysis result")

	pdf := d.pdf
	badge, text := successColor, "NO RISK DETECTED"
	if IsRisk(in.Prediction) {
		badge, text = dangerColor, "RISK DETECTED"
	}
	pdf.SetFont("Helvetica", "B", 18)
	d.fill(badge)
	d.color(white)
	pdf.CellFormat(0, 14, text, "", 1, "C", true, 0, "")
	pdf.Ln(4)

	probability := "not available"
	if in.Probability != nil {
		probability = strconv.FormatFloat(*in.Probability*100, 'f', 1, 64) + "%"
	}
	d.paragraph("Estimated probability: " + probability)
	d.small("Model used: " + in.Model)
	pdf.Ln(6)
}

func (d *document) chart(c chartResult) {
	if c.err != nil {
		d.paragraph(fmt.Sprintf("[%s chart rendering error: %v]", c.name, c.err))
		return
	}
	pdf := d.pdf
	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader(c.name, opts, bytes.NewReader(c.png))
	left, _, _, _ := pdf.GetMargins()
	pdf.ImageOptions(c.name, left, pdf.GetY(), chartWidth, chartHeight, true, opts, 0, "")
}

func (d *document) factors(title string, e *explain.Explanation) {
	if e == nil {
		return
	}
	pdf := d.pdf
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 11)
	d.color(black)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	for _, c := range e.Top(topFeatures) {
		direction := "Safe"
		if c.Value > 0 {
			direction = "Risk"
		}
		value := strconv.FormatFloat(math.Abs(c.Value), 'f', 3, 64)
		d.small(fmt.Sprintf("• %s: %s (%s)", c.Feature, value, direction))
	}
}

// sections lays out reference content. Level-2 headings use the section
// banner; deeper ones are plain bold headings.
func (d *document) sections(sections []reference.Section, small bool) {
	pdf := d.pdf
	for _, s := range sections {
		switch {
		case s.Title == "":
		case s.Level <= 2:
			d.sectionHeader(s.Title)
		case s.Level == 3:
			pdf.Ln(4)
			pdf.SetFont("Helvetica", "B", 13)
			d.color(primaryColor)
			pdf.CellFormat(0, 8, d.tr(s.Title), "", 1, "L", false, 0, "")
		default:
			pdf.Ln(4)
			pdf.SetFont("Helvetica", "B", 11)
			d.color(black)
			pdf.CellFormat(0, 7, d.tr(s.Title), "", 1, "L", false, 0, "")
		}
		for _, b := range s.Blocks {
			d.block(b, small)
		}
	}
}

func (d *document) block(b reference.Block, small bool) {
	pdf := d.pdf
	size, height, base := 10.0, 5.0, black
	if small {
		size, height, base = 9, 4.5, mutedText
	}
	if b.Kind == reference.Bullet {
		pdf.SetFont("Helvetica", "", size)
		d.color(base)
		pdf.Write(height, d.tr("• "))
	}
	for _, s := range b.Spans {
		style := ""
		if s.Bold {
			style = "B"
		}
		text := d.tr(strings.ReplaceAll(s.Text, "\n", " "))
		if s.Href != "" {
			pdf.SetFont("Helvetica", "U", size-1)
			d.color(primaryColor)
			pdf.Ln(height)
			pdf.WriteLinkString(height, text, s.Href)
			continue
		}
		pdf.SetFont("Helvetica", style, size)
		d.color(base)
		pdf.Write(height, text)
	}
	pdf.Ln(height + 1)
}

// Humanize splits a CamelCase field name into words: "HeartDisease" becomes
// "Heart Disease" and "BMI" stays as is.
func Humanize(name string) string {
	runes := []rune(strings.ReplaceAll(name, "_", " "))
	var sb strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			sb.WriteRune(' ')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
