package prediction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"skincheck/domain/health"
	"skincheck/domain/pipeline"
	"skincheck/internal/errors"
	"skincheck/internal/explain"
	"skincheck/internal/report"
	"skincheck/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Load(ctx context.Context) error { return nil }

func (m *mockRegistry) Get(name string) (*pipeline.Pipeline, error) {
	args := m.Called(name)
	p, _ := args.Get(0).(*pipeline.Pipeline)
	return p, args.Error(1)
}

func (m *mockRegistry) All() (map[string]*pipeline.Pipeline, error) {
	args := m.Called()
	return args.Get(0).(map[string]*pipeline.Pipeline), args.Error(1)
}

func (m *mockRegistry) Names() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRegistry) Label(name string) string { return name }

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Record(ctx context.Context, p *models.PredictionLog) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockRepo) Summary(ctx context.Context, since time.Time) (*models.PredictionSummary, error) {
	args := m.Called(ctx, since)
	s, _ := args.Get(0).(*models.PredictionSummary)
	return s, args.Error(1)
}

func (m *mockRepo) Recent(ctx context.Context, limit int) ([]*models.PredictionLog, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*models.PredictionLog), args.Error(1)
}

// smokingModel predicts risk for smokers only.
func smokingModel(t *testing.T, name, kind string) *pipeline.Pipeline {
	t.Helper()
	spec := pipeline.FitPreprocess([]health.Record{health.Default()})
	coef := make([]float64, spec.Width())
	for i, n := range spec.FeatureNames() {
		if n == health.FieldSmoking {
			coef[i] = 3
		}
	}
	a := &pipeline.Artifact{Name: name, Kind: kind, Preprocess: spec}
	params := &pipeline.LinearParams{Coef: coef, Intercept: -1.5}
	if kind == pipeline.KindLinearSVM {
		a.SVM = params
	} else {
		a.Logistic = params
	}
	p, err := pipeline.FromArtifact(a)
	require.NoError(t, err)
	return p
}

func TestService_PredictRecordsLog(t *testing.T) {
	reg := new(mockRegistry)
	repo := new(mockRepo)
	reg.On("Get", "log_reg").Return(smokingModel(t, "log_reg", pipeline.KindLogisticRegression), nil)
	repo.On("Record", mock.Anything, mock.MatchedBy(func(p *models.PredictionLog) bool {
		return p.Model == "log_reg" && p.Prediction == 1 && p.Channel == ChannelAPI && p.Probability != nil
	})).Return(nil).Once()

	svc := NewService(reg, repo, nil, nil, nil)
	res, err := svc.Predict(context.Background(), "log_reg", health.MustParse(map[string]string{"Smoking": "Yes"}), ChannelAPI)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Prediction)
	require.NotNil(t, res.Probability)
	assert.InDelta(t, 0.8176, *res.Probability, 1e-3)
	assert.Equal(t, 0.818, *res.RoundedProbability())
	repo.AssertExpectations(t)
}

func TestService_PredictWithoutProbability(t *testing.T) {
	reg := new(mockRegistry)
	reg.On("Get", "svm").Return(smokingModel(t, "svm", pipeline.KindLinearSVM), nil)

	svc := NewService(reg, nil, nil, nil, nil)
	res, err := svc.Predict(context.Background(), "svm", health.Default(), ChannelForm)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Prediction)
	assert.Nil(t, res.Probability)
	assert.Nil(t, res.RoundedProbability())
}

func TestService_PredictErrors(t *testing.T) {
	reg := new(mockRegistry)
	reg.On("Get", "nope").Return(nil, errors.ModelUnavailable("nope"))
	svc := NewService(reg, nil, nil, nil, nil)

	_, err := svc.Predict(context.Background(), "", health.Default(), ChannelAPI)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = svc.Predict(context.Background(), "nope", health.Default(), ChannelAPI)
	assert.Equal(t, errors.CodeModelUnavailable, errors.GetCode(err))
	assert.EqualError(t, err, "Model nope not available")
}

func TestService_LogFailureDoesNotFailPrediction(t *testing.T) {
	reg := new(mockRegistry)
	repo := new(mockRepo)
	reg.On("Get", "log_reg").Return(smokingModel(t, "log_reg", pipeline.KindLogisticRegression), nil)
	repo.On("Record", mock.Anything, mock.Anything).Return(fmt.Errorf("connection refused"))

	svc := NewService(reg, repo, nil, nil, nil)
	_, err := svc.Predict(context.Background(), "log_reg", health.Default(), ChannelForm)
	assert.NoError(t, err)
}

func TestService_Report(t *testing.T) {
	reg := new(mockRegistry)
	reg.On("Get", "log_reg").Return(smokingModel(t, "log_reg", pipeline.KindLogisticRegression), nil)

	bg := []health.Record{health.Default(), health.MustParse(map[string]string{"BMI": "30"})}
	gen, err := report.NewGenerator(nil)
	require.NoError(t, err)
	svc := NewService(reg, nil, explain.New(bg, explain.Options{Samples: 30, Seed: 1}), gen, nil)

	in, pdf, err := svc.Report(context.Background(), "log_reg", health.MustParse(map[string]string{"Smoking": "Yes"}), ChannelReport)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
	assert.Equal(t, "1", in.Prediction)
	require.NotNil(t, in.SHAP)
	assert.Equal(t, health.FieldSmoking, in.SHAP.Top(1)[0].Feature)
}

func TestService_ReportNotConfigured(t *testing.T) {
	svc := NewService(new(mockRegistry), nil, nil, nil, nil)
	_, _, err := svc.Report(context.Background(), "log_reg", health.Default(), ChannelReport)
	assert.Equal(t, errors.CodeUnavailable, errors.GetCode(err))
}

func TestService_Stats(t *testing.T) {
	repo := new(mockRepo)
	repo.On("Summary", mock.Anything, time.Time{}).Return(&models.PredictionSummary{TotalPredictions: 3, PositiveCases: 1}, nil)
	svc := NewService(new(mockRegistry), repo, nil, nil, nil)

	s, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalPredictions)

	empty, err := NewService(new(mockRegistry), nil, nil, nil, nil).Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, empty.TotalPredictions)
	assert.NotNil(t, empty.ByModel)
}
