package httpapi

import (
	"errors"
	"net/http"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/gin-gonic/gin"
)

// ErrorCode is a machine-readable error identifier in API responses.
type ErrorCode string

const (
	ErrorCodeInvalidJSON     ErrorCode = "INVALID_JSON"
	ErrorCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	ErrorCodeInvalidTerm     ErrorCode = "INVALID_TERM"
	ErrorCodeTermNotFound    ErrorCode = "TERM_NOT_FOUND"
	ErrorCodeLoadCancelled   ErrorCode = "LOAD_CANCELLED"
	ErrorCodeInternalError   ErrorCode = "INTERNAL_ERROR"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// SendError writes a standardized error response carrying the request id.
func SendError(c *gin.Context, statusCode int, code ErrorCode, message string) {
	resp := APIError{Code: code, Message: message}
	if id, ok := c.Get(requestIDKey); ok {
		if s, ok := id.(string); ok {
			resp.RequestID = s
		}
	}
	c.JSON(statusCode, resp)
}

// SendInvalidJSONError reports a body that could not be bound.
func SendInvalidJSONError(c *gin.Context, err error) {
	SendError(c, http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid JSON in request body: "+err.Error())
}

// SendEngineError maps an engine error onto its HTTP status.
func SendEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, suggest.ErrNotFound):
		SendError(c, http.StatusNotFound, ErrorCodeTermNotFound, err.Error())
	case errors.Is(err, suggest.ErrInvalidTerm):
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidTerm, err.Error())
	case errors.Is(err, suggest.ErrInvalidArgument):
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidArgument, err.Error())
	default:
		SendError(c, http.StatusInternalServerError, ErrorCodeInternalError, err.Error())
	}
}
