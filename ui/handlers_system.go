package ui

import (
	"html/template"
	"net/http"

	"skincheck/internal/reference"

	"github.com/gin-gonic/gin"
)

// handleHealth reports whether models could be loaded
func (s *Server) handleHealth(c *gin.Context) {
	names, err := s.service.Models()
	if err != nil {
		s.logger.Error("health check failed: %v", err)
		respondError(c, http.StatusServiceUnavailable, "Service unhealthy: "+err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	respondSuccess(c, gin.H{
		"status":           "healthy",
		"models_loaded":    len(names),
		"available_models": names,
	})
}

type endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

var endpoints = []endpoint{
	{"GET, POST", "/"},
	{"POST", "/api/predict"},
	{"GET, POST", "/api/prediction/"},
	{"POST", "/api/prediction/api"},
	{"GET", "/api/prediction/models"},
	{"POST", "/api/prediction/report"},
	{"POST", "/api/prediction/explain"},
	{"POST", "/report"},
	{"GET", "/api/health"},
	{"GET", "/api/info"},
	{"GET", "/api/dashboard/stats"},
	{"GET", "/dashboard/"},
	{"GET", "/reference"},
}

// handleInfo describes the application
func (s *Server) handleInfo(c *gin.Context) {
	respondSuccess(c, gin.H{
		"app":         AppName,
		"version":     Version,
		"description": "Skin cancer risk prediction with explainability reports",
		"endpoints":   endpoints,
	})
}

// handleDashboardStats summarises the prediction log
func (s *Server) handleDashboardStats(c *gin.Context) {
	stats, err := s.service.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("stats failed: %v", err)
		respondAppError(c, err)
		return
	}
	respondSuccess(c, stats)
}

// handleReference renders the medical reference page
func (s *Server) handleReference(c *gin.Context) {
	var body []byte
	for _, name := range []string{reference.Medical, reference.Sources} {
		html, err := reference.HTML(name)
		if err != nil {
			s.logger.Error("reference %s: %v", name, err)
			respondError(c, http.StatusInternalServerError, "Reference content unavailable")
			return
		}
		body = append(body, html...)
	}
	s.renderTemplate(c, http.StatusOK, "reference.html", gin.H{
		"Title": AppName + " - Medical reference",
		// rendered from embedded markdown only
		"Body": template.HTML(body),
	})
}
