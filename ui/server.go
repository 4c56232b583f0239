package ui

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"skincheck/domain/health"
	"skincheck/internal/logging"
	"skincheck/internal/prediction"

	"github.com/gin-gonic/gin"
)

// AppName and Version are reported by /api/info.
const (
	AppName = "SkinCheck"
	Version = "2.0.0"
)

// maxBodyBytes caps form and JSON request bodies.
const maxBodyBytes = 1 << 20

// Server represents the SkinCheck web server
type Server struct {
	router    *gin.Engine
	service   *prediction.Service
	dashboard http.Handler
	logger    *logging.Logger
	templates *template.Template
	fields    []formField
}

// NewServer creates a new web server instance. dashboard may be nil, in which
// case /dashboard/ answers 503.
func NewServer(service *prediction.Service, dashboard http.Handler, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	router := gin.New()
	router.RedirectTrailingSlash = false
	return &Server{
		router:    router,
		service:   service,
		dashboard: dashboard,
		logger:    logger.Named("http"),
	}
}

// Initialize parses templates and registers middleware and routes
func (s *Server) Initialize() error {
	funcMap := template.FuncMap{
		"percent":  func(p float64) string { return fmt.Sprintf("%.1f%%", p*100) },
		"deref":    func(p *float64) float64 { return *p },
		"humanize": humanizeField,
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = templates
	s.fields = buildFormFields()

	if err := s.setupMiddleware(); err != nil {
		return err
	}
	s.setupRoutes()
	return nil
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() error {
	s.router.Use(
		s.requestLogger(),
		gin.Recovery(),
		limitBodySize(maxBodyBytes),
		corsMiddleware(),
	)

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create static filesystem: %w", err)
	}
	s.router.StaticFS("/static", http.FS(staticFS))
	return nil
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	// Legacy top-level routes
	s.router.GET("/", s.handleIndex)
	s.router.POST("/", s.handleIndex)
	s.router.POST("/api/predict", s.handleLegacyPredict)
	s.router.POST("/report", s.handleFormReport)

	api := s.router.Group("/api/prediction")
	{
		api.GET("/", s.handlePredictionPage)
		api.POST("/", s.handlePredictionPage)
		api.POST("/api", s.handlePredictAPI)
		api.GET("/models", s.handleModels)
		api.POST("/report", s.handleReportAPI)
		api.POST("/explain", s.handleExplainAPI)
	}

	s.router.GET("/api/health", s.handleHealth)
	s.router.GET("/api/info", s.handleInfo)
	s.router.GET("/api/dashboard/stats", s.handleDashboardStats)

	s.router.GET("/reference", s.handleReference)

	s.router.GET("/dashboard", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/dashboard/")
	})
	s.router.Any("/dashboard/*path", s.handleDashboard)

	s.router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Resource not found")
	})
}

// Handler exposes the router, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting %s on http://%s", AppName, addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}

func (s *Server) handleDashboard(c *gin.Context) {
	if s.dashboard == nil {
		respondError(c, http.StatusServiceUnavailable, "Dashboard is not available")
		return
	}
	http.StripPrefix("/dashboard", s.dashboard).ServeHTTP(c.Writer, c.Request)
}

// formField drives the prediction form template.
type formField struct {
	Name    string
	Label   string
	Numeric bool
	Default string
	Min     float64
	Max     float64
	Options []string
}

func buildFormFields() []formField {
	fields := make([]formField, 0, len(health.Fields))
	for _, f := range health.Fields {
		fields = append(fields, formField{
			Name:    f.Name,
			Label:   humanizeField(f.Name),
			Numeric: f.Kind == health.KindNumeric,
			Default: f.Default,
			Min:     f.Min,
			Max:     f.Max,
			Options: f.Options,
		})
	}
	return fields
}
