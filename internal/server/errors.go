package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/condoledger/pkg/errs"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errs.New(errs.KindValidation, "invalid_request")
	ErrNotFound       = errs.New(errs.KindNotFound, "not_found")
	ErrRateLimited    = errs.New(errs.KindRateLimited, "too_many_requests")
)

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

func newValidationError(code string) error {
	return errs.New(errs.KindValidation, code)
}

// mapError derives the status from the error kind. Unclassified errors are
// reported without detail.
func mapError(err error) (int, errorPayload) {
	kind := errs.KindOf(err)
	if err == nil || kind == errs.KindInternal {
		return http.StatusInternalServerError, errorPayload{
			Type:    string(errs.KindInternal),
			Message: "internal server error",
		}
	}
	return statusOf(kind), errorPayload{
		Type:    string(kind),
		Message: errs.CodeOf(err),
	}
}

func statusOf(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindState:
		return http.StatusConflict
	case errs.KindPrecondition:
		return http.StatusUnprocessableEntity
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindUnauthenticated:
		return http.StatusUnauthorized
	case errs.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// classifyErrorForLog returns the type and code logged with a failed request.
func classifyErrorForLog(err error) (string, string) {
	var classified *errs.Error
	if errors.As(err, &classified) {
		return string(classified.Kind()), classified.Code()
	}
	return string(errs.KindInternal), ""
}
