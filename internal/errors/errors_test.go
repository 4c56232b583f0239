package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsInnerCode(t *testing.T) {
	err := Wrap(ModelUnavailable("knn"), "prediction failed")
	assert.Equal(t, CodeModelUnavailable, GetCode(err))
	assert.Equal(t, "prediction failed: Model knn not available", err.Error())

	plain := Wrap(fmt.Errorf("boom"), "context")
	assert.Equal(t, CodeInternalError, GetCode(plain))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestIs_WalksChain(t *testing.T) {
	inner := ValidationError("BMI must be between 0 and 200")
	err := fmt.Errorf("parse: %w", WithCode(CodeInvalidInput, inner))

	assert.True(t, Is(err, CodeInvalidInput))
	assert.False(t, Is(err, CodeNotFound))
	assert.True(t, IsAppError(err))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}

func TestStatusCode(t *testing.T) {
	cases := map[error]int{
		InvalidInput("x"):              http.StatusBadRequest,
		ValidationError("x"):           http.StatusBadRequest,
		ModelUnavailable("x"):          http.StatusNotFound,
		NotFound("x"):                  http.StatusNotFound,
		Unavailable("x"):               http.StatusServiceUnavailable,
		ReportFailed(fmt.Errorf("io")): http.StatusInternalServerError,
		fmt.Errorf("plain"):            http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusCode(err), err.Error())
	}
}
