package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebridge/coursebridge-backend/internal/domain/workflow"
)

type APIError struct {
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	ExistingID string `json:"existing_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// statusFor maps workflow error codes to HTTP statuses. Unknown errors are
// internal.
func statusFor(code workflow.ErrorCode) int {
	switch code {
	case workflow.CodeValidation:
		return http.StatusBadRequest
	case workflow.CodeUnauthorized:
		return http.StatusUnauthorized
	case workflow.CodeForbidden:
		return http.StatusForbidden
	case workflow.CodeNotFound:
		return http.StatusNotFound
	case workflow.CodeConflict, workflow.CodeAttemptLimit:
		return http.StatusConflict
	case workflow.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondError translates a service error into the JSON error envelope.
func RespondError(c *gin.Context, err error) {
	code := workflow.CodeOf(err)
	envelope := ErrorEnvelope{
		Error: APIError{
			Message: err.Error(),
			Code:    string(code),
		},
	}
	if existingID := workflow.ExistingIDOf(err); existingID != uuid.Nil {
		envelope.Error.ExistingID = existingID.String()
	}
	c.JSON(statusFor(code), envelope)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
