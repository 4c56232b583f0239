package ui

import (
	"net/http"

	"skincheck/internal/errors"

	"github.com/gin-gonic/gin"
)

// successBody and errorBody are the JSON envelope of the /api routes.
type successBody struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func successEnvelope(data interface{}) successBody {
	return successBody{Status: "success", Message: "Success", Data: data}
}

func errorEnvelope(code int, message string) errorBody {
	return errorBody{Status: "error", Message: message, Code: code}
}

func respondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, successEnvelope(data))
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorEnvelope(status, message))
}

// respondAppError maps an error onto its HTTP status and envelope.
func respondAppError(c *gin.Context, err error) {
	respondError(c, errors.StatusCode(err), err.Error())
}
