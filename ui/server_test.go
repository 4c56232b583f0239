package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"skincheck/adapters/memory"
	"skincheck/adapters/modelstore"
	"skincheck/domain/health"
	"skincheck/domain/pipeline"
	"skincheck/internal/dashboard"
	"skincheck/internal/dataset"
	"skincheck/internal/explain"
	"skincheck/internal/prediction"
	"skincheck/internal/report"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// writeModels stores a logistic model that flags smokers and a linear SVM.
func writeModels(t *testing.T) (dir, manifest string) {
	t.Helper()
	dir = t.TempDir()
	spec := pipeline.FitPreprocess([]health.Record{health.Default()})
	coef := make([]float64, spec.Width())
	for i, name := range spec.FeatureNames() {
		if name == health.FieldSmoking {
			coef[i] = 3
		}
	}
	params := &pipeline.LinearParams{Coef: coef, Intercept: -1.5}
	require.NoError(t, modelstore.SaveArtifact(dir, "logistic.json", &pipeline.Artifact{
		Name: "log_reg", Kind: pipeline.KindLogisticRegression, Preprocess: spec, Logistic: params,
	}))
	require.NoError(t, modelstore.SaveArtifact(dir, "svm.json", &pipeline.Artifact{
		Name: "svm", Kind: pipeline.KindLinearSVM, Preprocess: spec, SVM: params,
	}))
	manifest = dir + "/registry.yaml"
	require.NoError(t, modelstore.WriteManifest(manifest, modelstore.Manifest{Models: []modelstore.Entry{
		{Name: "log_reg", Label: "Logistic Regression", File: "logistic.json"},
		{Name: "svm", Label: "Linear SVM", File: "svm.json"},
	}}))
	return dir, manifest
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir, manifest := writeModels(t)
	registry := modelstore.NewManager(dir, manifest, nil)

	ds := dataset.NewGenerator(dataset.GeneratorConfig{Rows: 60, Seed: 5, BaseRate: 0.2}).Generate()
	explainer := explain.New(explain.SampleBackground(ds.Records, 10, 1), explain.Options{Samples: 20, Seed: 1})
	reports, err := report.NewGenerator(nil)
	require.NoError(t, err)
	svc := prediction.NewService(registry, memory.NewPredictionRepository(), explainer, reports, nil)

	app, err := dashboard.NewApp(dashboard.Config{BasePath: "/dashboard"}, ds, nil)
	require.NoError(t, err)

	s := NewServer(svc, app, nil)
	require.NoError(t, s.Initialize())
	return s
}

func do(t *testing.T, s *Server, method, target string, body string, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func postForm(t *testing.T, s *Server, target string, values url.Values) *httptest.ResponseRecorder {
	return do(t, s, http.MethodPost, target, values.Encode(), "application/x-www-form-urlencoded")
}

func postJSON(t *testing.T, s *Server, target string, body interface{}) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return do(t, s, http.MethodPost, target, string(raw), "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestIndex_DoesNotFail(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/", "", "")
	assert.Less(t, w.Code, http.StatusInternalServerError)
	assert.Contains(t, w.Body.String(), `name="model_choice"`)
	assert.Contains(t, w.Body.String(), "Logistic Regression")
}

func TestIndex_PostPredicts(t *testing.T) {
	s := newTestServer(t)
	w := postForm(t, s, "/", url.Values{"model_choice": {"log_reg"}, "Smoking": {"Yes"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Risk detected")
	assert.Contains(t, w.Body.String(), "81.8%")
}

func TestPredictionPage_Messages(t *testing.T) {
	s := newTestServer(t)

	w := postForm(t, s, "/api/prediction/", url.Values{"Smoking": {"Yes"}})
	assert.Contains(t, w.Body.String(), "Please select a model")

	w = postForm(t, s, "/api/prediction/", url.Values{"model_choice": {"forest"}})
	assert.Contains(t, w.Body.String(), "Model forest not available")

	w = postForm(t, s, "/api/prediction/", url.Values{"model_choice": {"log_reg"}, "BMI": {"heavy"}})
	assert.Contains(t, w.Body.String(), "Validation error")

	w = postForm(t, s, "/api/prediction/", url.Values{"model_choice": {"svm"}})
	assert.Contains(t, w.Body.String(), "No risk detected")
	assert.Contains(t, w.Body.String(), "N/A")
}

func TestPredictAPI_Envelope(t *testing.T) {
	s := newTestServer(t)
	w := postJSON(t, s, "/api/prediction/api", map[string]interface{}{"model_choice": "log_reg", "Smoking": "Yes", "BMI": 31})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Success", body["message"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["prediction"])
	assert.Equal(t, "log_reg", data["model"])
	assert.InDelta(t, 0.8176, data["probability"], 1e-3)
}

func TestPredictAPI_Errors(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(t, s, "/api/prediction/api", map[string]interface{}{"Smoking": "Yes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, float64(400), body["code"])

	w = do(t, s, http.MethodPost, "/api/prediction/api", "{not json", "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, s, "/api/prediction/api", map[string]interface{}{"model_choice": "forest"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Model forest not available", decode(t, w)["message"])

	w = postJSON(t, s, "/api/prediction/api", map[string]interface{}{"model_choice": "log_reg", "BMI": 500})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNonFiniteNumbers_Rejected(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{"/api/prediction/api", "/api/prediction/explain", "/api/prediction/report"} {
		w := postJSON(t, s, target, map[string]interface{}{"model_choice": "log_reg", "BMI": "NaN"})
		require.Equal(t, http.StatusBadRequest, w.Code, target)
		body := decode(t, w)
		assert.Equal(t, "error", body["status"], target)
		assert.Contains(t, body["message"], "BMI", target)
	}

	w := postForm(t, s, "/api/predict", url.Values{"model_choice": {"log_reg"}, "SleepTime": {"Inf"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "SleepTime")
}

func TestPredictAPI_NullProbability(t *testing.T) {
	s := newTestServer(t)
	w := postJSON(t, s, "/api/prediction/api", map[string]interface{}{"model_choice": "svm"})
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Nil(t, data["probability"])
}

func TestLegacyPredict(t *testing.T) {
	s := newTestServer(t)

	w := postForm(t, s, "/api/predict", url.Values{"model_choice": {"unknown"}, "Smoking": {"Yes"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "log_reg", body["model"])
	assert.Equal(t, float64(1), body["prediction"])

	w = postForm(t, s, "/api/predict", url.Values{"model_choice": {"svm"}})
	assert.Equal(t, float64(0), decode(t, w)["probability"])

	w = postForm(t, s, "/api/predict", url.Values{"BMI": {"abc"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body = decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "BMI")
}

func TestModelsAndHealth(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/prediction/models", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	models := decode(t, w)["data"].(map[string]interface{})["models"]
	assert.Equal(t, []interface{}{"log_reg", "svm"}, models)

	w = do(t, s, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, float64(2), data["models_loaded"])

	w = do(t, s, http.MethodGet, "/api/info", "", "")
	data = decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, Version, data["version"])
	assert.NotEmpty(t, data["endpoints"])
}

func TestStatsCountsServedPredictions(t *testing.T) {
	s := newTestServer(t)
	postJSON(t, s, "/api/prediction/api", map[string]interface{}{"model_choice": "log_reg", "Smoking": "Yes"})
	postForm(t, s, "/", url.Values{"model_choice": {"svm"}})

	w := do(t, s, http.MethodGet, "/api/dashboard/stats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["totalPredictions"])
	assert.Equal(t, float64(1), data["positiveCases"])
	assert.Equal(t, 0.5, data["positiveRate"])
}

func TestReports(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(t, s, "/api/prediction/report", map[string]interface{}{"model_choice": "log_reg", "Smoking": "Yes"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "skincheck_report_log_reg_")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = postForm(t, s, "/report", url.Values{"model_choice": {"svm"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = postForm(t, s, "/report", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please select a model")
}

func TestExplainAPI(t *testing.T) {
	s := newTestServer(t)
	w := postJSON(t, s, "/api/prediction/explain", map[string]interface{}{"model_choice": "log_reg", "Smoking": "Yes"})
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]interface{})
	shap := data["shap"].(map[string]interface{})
	top := shap["top_features"].([]interface{})
	require.Len(t, top, len(health.Fields))
	assert.Equal(t, health.FieldSmoking, top[0].(map[string]interface{})["feature"])

	lime := data["lime"].(map[string]interface{})
	assert.Contains(t, lime, "r2")
	assert.Len(t, lime["explanation"], len(health.Fields))
}

func TestDashboardMount(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/dashboard", "", "")
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/dashboard/", w.Header().Get("Location"))

	w = do(t, s, http.MethodGet, "/dashboard/", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "window.DASHBOARD")

	w = do(t, s, http.MethodGet, "/dashboard/_update?smoking=Yes", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cards"`)
}

func TestDashboardUnavailable(t *testing.T) {
	dir, manifest := writeModels(t)
	svc := prediction.NewService(modelstore.NewManager(dir, manifest, nil), nil, nil, nil, nil)
	s := NewServer(svc, nil, nil)
	require.NoError(t, s.Initialize())

	w := do(t, s, http.MethodGet, "/dashboard/", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReferenceAndStatic(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/reference", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Medical reference information")
	assert.Contains(t, w.Body.String(), `target="_blank"`)

	w = do(t, s, http.MethodGet, "/static/js/form.js", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotFoundEnvelope(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", decode(t, w)["status"])
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx, "127.0.0.1:0"))
}
