package ui

import (
	"fmt"
	"net/http"

	"skincheck/domain/health"
	"skincheck/internal/errors"
	"skincheck/internal/explain"
	"skincheck/internal/prediction"
	"skincheck/internal/report"

	"github.com/gin-gonic/gin"
)

type modelOption struct {
	Name     string
	Label    string
	Selected bool
}

type pageResult struct {
	Prediction  int
	Risk        bool
	Probability *float64
	Model       string
	ModelLabel  string
}

type pageData struct {
	Title  string
	Action string
	Fields []formField
	Models []modelOption
	Values map[string]string
	Result *pageResult
	Error  string
}

func (s *Server) newPage(c *gin.Context, action string) *pageData {
	page := &pageData{
		Title:  AppName,
		Action: action,
		Fields: s.fields,
		Values: make(map[string]string, len(s.fields)+1),
	}
	for _, f := range s.fields {
		page.Values[f.Name] = f.Default
	}
	if c.Request.Method == http.MethodPost {
		for name, values := range c.Request.PostForm {
			if len(values) > 0 {
				page.Values[name] = values[0]
			}
		}
	}

	names, err := s.service.Models()
	if err != nil {
		s.logger.Warn("failed to list models: %v", err)
	}
	for _, name := range names {
		page.Models = append(page.Models, modelOption{
			Name:     name,
			Label:    s.service.Label(name),
			Selected: page.Values["model_choice"] == name,
		})
	}
	return page
}

// handleIndex serves the legacy top-level form page
func (s *Server) handleIndex(c *gin.Context) {
	s.servePredictionPage(c, "/")
}

// handlePredictionPage serves the form page under /api/prediction/
func (s *Server) handlePredictionPage(c *gin.Context) {
	s.servePredictionPage(c, "/api/prediction/")
}

func (s *Server) servePredictionPage(c *gin.Context, action string) {
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err != nil {
			s.logger.Warn("unreadable form: %v", err)
		}
	}
	page := s.newPage(c, action)
	if c.Request.Method == http.MethodPost {
		page.Result, page.Error = s.predictForm(c)
	}
	s.renderTemplate(c, http.StatusOK, "index.html", page)
}

// predictForm returns either a result or the message to show in its place.
func (s *Server) predictForm(c *gin.Context) (*pageResult, string) {
	model := c.PostForm("model_choice")
	if model == "" {
		s.logger.Warn("prediction attempted without a model")
		return nil, "Please select a model"
	}
	rec, err := health.Parse(health.ValuesSource(c.Request.PostForm))
	if err != nil {
		s.logger.Warn("validation error: %v", err)
		return nil, "Validation error: " + err.Error()
	}
	res, err := s.service.Predict(c.Request.Context(), model, rec, prediction.ChannelForm)
	switch {
	case errors.Is(err, errors.CodeModelUnavailable):
		s.logger.Error("model %s not found", model)
		return nil, err.Error()
	case err != nil:
		s.logger.Error("prediction failed: %v", err)
		return nil, "Server error: " + err.Error()
	}
	s.logger.Info("prediction with %s: %d", model, res.Prediction)
	return &pageResult{
		Prediction:  res.Prediction,
		Risk:        res.Prediction == 1,
		Probability: res.RoundedProbability(),
		Model:       model,
		ModelLabel:  s.service.Label(model),
	}, ""
}

// handleLegacyPredict keeps the original form-encoded JSON endpoint
func (s *Server) handleLegacyPredict(c *gin.Context) {
	fail := func(err error) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	}
	if err := c.Request.ParseForm(); err != nil {
		fail(err)
		return
	}

	model := c.PostForm("model_choice")
	if !s.hasModel(model) {
		model = prediction.DefaultModel
	}
	rec, err := health.Parse(health.ValuesSource(c.Request.PostForm))
	if err != nil {
		fail(err)
		return
	}
	res, err := s.service.Predict(c.Request.Context(), model, rec, prediction.ChannelLegacy)
	if err != nil {
		fail(err)
		return
	}

	probability := 0.0
	if res.Probability != nil {
		probability = *res.Probability
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"prediction":  res.Prediction,
		"probability": probability,
		"model":       model,
	})
}

func (s *Server) hasModel(name string) bool {
	if name == "" {
		return false
	}
	names, err := s.service.Models()
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// bindJSONRecord reads a JSON prediction body: model_choice plus record fields.
func bindJSONRecord(c *gin.Context) (string, health.Record, error) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		return "", health.Record{}, errors.InvalidInput("Model not specified")
	}
	model, _ := body["model_choice"].(string)
	if model == "" {
		return "", health.Record{}, errors.InvalidInput("Model not specified")
	}
	rec, err := health.Parse(health.AnySource(body))
	if err != nil {
		return "", health.Record{}, err
	}
	return model, rec, nil
}

// handlePredictAPI predicts from a JSON body
func (s *Server) handlePredictAPI(c *gin.Context) {
	model, rec, err := bindJSONRecord(c)
	if err != nil {
		respondAppError(c, err)
		return
	}
	res, err := s.service.Predict(c.Request.Context(), model, rec, prediction.ChannelAPI)
	if err != nil {
		s.logger.Error("api prediction failed: %v", err)
		respondAppError(c, err)
		return
	}
	respondSuccess(c, res)
}

// handleModels lists the loaded models
func (s *Server) handleModels(c *gin.Context) {
	names, err := s.service.Models()
	if err != nil {
		respondAppError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	respondSuccess(c, gin.H{"models": names})
}

// handleReportAPI renders the PDF report for a JSON body
func (s *Server) handleReportAPI(c *gin.Context) {
	model, rec, err := bindJSONRecord(c)
	if err != nil {
		respondAppError(c, err)
		return
	}
	in, pdf, err := s.service.Report(c.Request.Context(), model, rec, prediction.ChannelReport)
	if err != nil {
		s.logger.Error("report failed: %v", err)
		respondAppError(c, err)
		return
	}
	sendPDF(c, in, pdf)
}

// handleFormReport renders the PDF report for the prediction form
func (s *Server) handleFormReport(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	page := s.newPage(c, "/")

	model := c.PostForm("model_choice")
	if model == "" {
		page.Error = "Please select a model"
		s.renderTemplate(c, http.StatusBadRequest, "index.html", page)
		return
	}
	rec, err := health.Parse(health.ValuesSource(c.Request.PostForm))
	if err == nil {
		var in report.Input
		var pdf []byte
		in, pdf, err = s.service.Report(c.Request.Context(), model, rec, prediction.ChannelReport)
		if err == nil {
			sendPDF(c, in, pdf)
			return
		}
	}
	s.logger.Error("form report failed: %v", err)
	page.Error = fmt.Sprintf("Report error: %v", err)
	s.renderTemplate(c, errors.StatusCode(err), "index.html", page)
}

func sendPDF(c *gin.Context, in report.Input, pdf []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(in)))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

type shapFeature struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"shap_value"`
}

type limeFeature struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// handleExplainAPI returns the attributions behind the report
func (s *Server) handleExplainAPI(c *gin.Context) {
	model, rec, err := bindJSONRecord(c)
	if err != nil {
		respondAppError(c, err)
		return
	}
	exp, err := s.service.Explain(c.Request.Context(), model, rec)
	if err != nil {
		s.logger.Error("explanation failed: %v", err)
		respondAppError(c, err)
		return
	}
	respondSuccess(c, gin.H{
		"model": model,
		"shap": gin.H{
			"base_value":   exp.SHAP.BaseValue,
			"prediction":   exp.SHAP.Prediction,
			"top_features": shapFeatures(exp.SHAP),
		},
		"lime": gin.H{
			"intercept":   exp.LIME.BaseValue,
			"r2":          exp.LIME.R2,
			"explanation": limeFeatures(exp.LIME),
		},
	})
}

func shapFeatures(e *explain.Explanation) []shapFeature {
	top := e.Top(len(e.Contributions))
	out := make([]shapFeature, len(top))
	for i, c := range top {
		out[i] = shapFeature{Feature: c.Feature, Value: c.Value}
	}
	return out
}

func limeFeatures(e *explain.Explanation) []limeFeature {
	top := e.Top(len(e.Contributions))
	out := make([]limeFeature, len(top))
	for i, c := range top {
		out[i] = limeFeature{Feature: c.Feature, Value: c.Value}
	}
	return out
}
