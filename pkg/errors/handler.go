package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse represents the API error response format
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorHandler maps errors onto HTTP responses
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{
		logger: logger,
		debug:  debug,
	}
}

// HTTPStatus maps an error type to a status code
func HTTPStatus(t ErrorType) int {
	switch t {
	case ErrorTypeInvalidArgument, ErrorTypeInvalidValue, ErrorTypeUnknownAttribute:
		return http.StatusBadRequest
	case ErrorTypeImmutable, ErrorTypeInvalidTarget:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeIndexUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the text shown to API users for each error type
func publicMessage(t ErrorType) string {
	switch t {
	case ErrorTypeInvalidArgument:
		return "Invalid request"
	case ErrorTypeImmutable:
		return "This attribute cannot be changed"
	case ErrorTypeInvalidTarget:
		return "This node cannot be modified"
	case ErrorTypeInvalidValue:
		return "Value not allowed for this attribute"
	case ErrorTypeUnknownAttribute:
		return "Unknown attribute"
	case ErrorTypeNotFound:
		return "Node not found"
	case ErrorTypeIndexUnavailable:
		return "Search is temporarily unavailable"
	default:
		return "An internal error occurred"
	}
}

// Handle processes an error and sends an HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	requestID := middleware.GetReqID(r.Context())

	t := TypeOf(err)
	status := HTTPStatus(t)
	response := ErrorResponse{
		Error:     true,
		Type:      string(t),
		Message:   publicMessage(t),
		RequestID: requestID,
	}

	if appErr := GetAppError(err); appErr != nil {
		response.Code = appErr.Code
		response.Details = appErr.Details
		if h.debug || status < 500 {
			response.Message = appErr.Message
		}
	} else if h.debug {
		response.Message = err.Error()
	}

	h.logError(r, err, t, status, requestID)
	h.sendJSON(w, status, response)
}

// HandleStatus sends an error response with a specific status code
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	response := ErrorResponse{
		Error:     true,
		Type:      string(ErrorTypeInvalidArgument),
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}
	if status >= 500 {
		response.Type = string(ErrorTypeInternal)
	}

	h.logger.Warn("HTTP error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("message", message),
	)

	h.sendJSON(w, status, response)
}

// logError logs an error with a level matching its status
func (h *ErrorHandler) logError(r *http.Request, err error, t ErrorType, status int, requestID string) {
	fields := []zap.Field{
		zap.String("error_type", string(t)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", requestID),
		zap.Error(err),
	}

	switch {
	case status >= 500:
		h.logger.Error("request failed", fields...)
	default:
		h.logger.Info("request rejected", fields...)
	}
}

// sendJSON sends a JSON response
func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response",
			zap.Error(err),
			zap.Any("data", data),
		)
	}
}

// Middleware returns an HTTP middleware that converts panics into 500 responses
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
