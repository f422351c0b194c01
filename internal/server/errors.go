package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	batchdomain "github.com/smallbiznis/renewly/internal/batch/domain"
	historydomain "github.com/smallbiznis/renewly/internal/history/domain"
	messagedomain "github.com/smallbiznis/renewly/internal/message/domain"
	"github.com/smallbiznis/renewly/internal/pipeline"
	"github.com/smallbiznis/renewly/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
	ErrUploadInProgress   = errors.New("upload_in_progress")
)

// validationSentinels are checked in order; the first match names the error code.
var validationSentinels = []error{
	ErrInvalidRequest,
	errInvalidTier,
	pipeline.ErrInvalidTenant,
	pipeline.ErrInputContract,
	messagedomain.ErrTemplateValidation,
	messagedomain.ErrUnknownTier,
	messagedomain.ErrInvalidTenant,
	batchdomain.ErrInvalidTenant,
	batchdomain.ErrInvalidTier,
	batchdomain.ErrInvalidRecord,
	historydomain.ErrInvalidTenant,
	historydomain.ErrInvalidBatch,
	historydomain.ErrInvalidRowCount,
	pagination.ErrInvalidPageToken,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code, err),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many uploads, retry later",
		}
	case errors.Is(err, ErrUploadInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "an upload for this tenant is already running",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, batchdomain.ErrBatchExists),
		errors.Is(err, historydomain.ErrAlreadyRecorded):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, pipeline.ErrTemplates):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same type/code a client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if errors.Is(err, pipeline.ErrPersistence) {
		code = "persistence_failure"
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, batchdomain.ErrBatchNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) (string, bool) {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "input_contract_violation":
		return "members"
	case "template_validation":
		return "body"
	case "unknown_tier":
		return "tier"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

// validationErrorMessage exposes the wrapped detail for input and template
// errors, which name the offending row or missing tokens.
func validationErrorMessage(code string, err error) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "input_contract_violation", "template_validation":
		var runErr *pipeline.RunError
		if errors.As(err, &runErr) {
			return runErr.Err.Error()
		}
		return err.Error()
	default:
		return "invalid value"
	}
}
