package dashboard

import (
	"bytes"
	"embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"skincheck/adapters/excel"
	"skincheck/internal/dataset"
	"skincheck/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed templates/* static/*
var embeddedFiles embed.FS

// App is the dashboard mini-app. Mount it under a prefix with http.StripPrefix.
type App struct {
	router    *chi.Mux
	data      *dataset.Dataset
	logger    *logging.Logger
	templates *template.Template
	basePath  string
}

// Config holds dashboard settings
type Config struct {
	// BasePath is the URL prefix the app is mounted under, e.g. "/dashboard".
	BasePath string
}

// NewApp creates the dashboard over a loaded dataset
func NewApp(config Config, data *dataset.Dataset, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if data == nil {
		data = &dataset.Dataset{}
	}
	templates, err := template.New("").ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	app := &App{
		router:    chi.NewRouter(),
		data:      data,
		logger:    logger.Named("dashboard"),
		templates: templates,
		basePath:  config.BasePath,
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app, nil
}

// ServeHTTP implements http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(a.requestLogger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		a.logger.Error("static filesystem: %v", err)
		return
	}
	a.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/_update", a.handleUpdate)
	a.router.Post("/_update", a.handleUpdate)
	a.router.Get("/options", a.handleOptions)
	a.router.Get("/export", a.handleExport)
}

func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

type option struct {
	Param  string   `json:"param"`
	Field  string   `json:"field"`
	Label  string   `json:"label"`
	Values []string `json:"values"`
}

func (a *App) options() []option {
	out := make([]option, len(FilterFields))
	for i, ff := range FilterFields {
		values := a.data.Options(ff.Field)
		if values == nil {
			values = []string{}
		}
		out[i] = option{Param: ff.Param, Field: ff.Field, Label: ff.Label, Values: values}
	}
	return out
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	initial, err := json.Marshal(Compute(a.data, Filter{}))
	if err != nil {
		http.Error(w, "failed to compute dashboard", http.StatusInternalServerError)
		return
	}
	data := map[string]interface{}{
		"BasePath":  a.basePath,
		"Options":   a.options(),
		"Initial":   template.JS(initial),
		"Synthetic": a.data.Synthetic,
		"Source":    a.data.Source,
	}
	a.renderTemplate(w, "dashboard.html", data)
}

// handleUpdate recomputes every output for the submitted filters
func (a *App) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	a.writeJSON(w, http.StatusOK, Compute(a.data, ParseFilter(r.Form)))
}

func (a *App) handleOptions(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.options())
}

// handleExport downloads the filtered rows as csv, json or xlsx
func (a *App) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	filter := ParseFilter(r.URL.Query())
	table := a.data.Subset(filter.Apply(a.data)).ToExcelData()

	var buf bytes.Buffer
	var contentType string
	switch format {
	case "csv":
		contentType = "text/csv; charset=utf-8"
		if err := writeCSV(&buf, table); err != nil {
			a.exportFailed(w, format, err)
			return
		}
	case "json":
		contentType = "application/json"
		if err := json.NewEncoder(&buf).Encode(table.Rows); err != nil {
			a.exportFailed(w, format, err)
			return
		}
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		if err := excel.WriteXLSX(&buf, table); err != nil {
			a.exportFailed(w, format, err)
			return
		}
	default:
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported export format: " + format})
		return
	}

	filename := fmt.Sprintf("dashboard-export-%s.%s", time.Now().Format("2006-01-02"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		a.logger.Warn("export write: %v", err)
	}
}

func (a *App) exportFailed(w http.ResponseWriter, format string, err error) {
	a.logger.Error("%s export failed: %v", format, err)
	a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
}

func writeCSV(buf *bytes.Buffer, table *excel.ExcelData) error {
	cw := csv.NewWriter(buf)
	if err := cw.Write(table.Headers); err != nil {
		return err
	}
	record := make([]string, len(table.Headers))
	for _, row := range table.Rows {
		for i, h := range table.Headers {
			record[i] = row[h]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// renderTemplate renders to a buffer first so a failing template never leaves a half-written page
func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		a.logger.Error("template error for %s: %v", templateName, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		a.logger.Warn("write response: %v", err)
	}
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("encode response: %v", err)
	}
}
