// Package errors defines the error envelope shared by the JSON API and the
// admin endpoints.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type ErrorCode string

const (
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeValidation     ErrorCode = "VALIDATION_ERROR"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeRateLimit      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
	CodeUpstream       ErrorCode = "UPSTREAM_ERROR"
	CodeTimeout        ErrorCode = "TIMEOUT"
)

// statusByCode maps codes to HTTP statuses. Unlisted codes are 500.
var statusByCode = map[ErrorCode]int{
	CodeValidation:     http.StatusBadRequest,
	CodeBadRequest:     http.StatusBadRequest,
	CodeNotFound:       http.StatusNotFound,
	CodeUnauthorized:   http.StatusUnauthorized,
	CodeRateLimit:      http.StatusTooManyRequests,
	CodeServiceUnavail: http.StatusServiceUnavailable,
	CodeUpstream:       http.StatusBadGateway,
	CodeTimeout:        http.StatusGatewayTimeout,
}

func statusFor(code ErrorCode) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// AppError is what a handler reports to the client. Message is safe to show;
// Cause is only logged.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithDetails returns a copy carrying an extra human-readable detail line,
// e.g. the SQL text that failed validation.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusFor(code),
		Timestamp:  time.Now().UTC(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	e := New(code, message)
	e.Cause = err
	return e
}

func Internal(message string) *AppError           { return New(CodeInternal, message) }
func Validation(message string) *AppError         { return New(CodeValidation, message) }
func NotFound(message string) *AppError           { return New(CodeNotFound, message) }
func BadRequest(message string) *AppError         { return New(CodeBadRequest, message) }
func Unauthorized(message string) *AppError       { return New(CodeUnauthorized, message) }
func RateLimit(message string) *AppError          { return New(CodeRateLimit, message) }
func ServiceUnavailable(message string) *AppError { return New(CodeServiceUnavail, message) }

func ValidationWrap(err error, message string) *AppError {
	return Wrap(err, CodeValidation, message)
}

// Upstream marks a failure of the data store or the language-model API.
// Deadline errors become CodeTimeout.
func Upstream(err error, message string) *AppError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeTimeout, message)
	}
	return Wrap(err, CodeUpstream, message)
}

// As unwraps err to an *AppError; anything else becomes a generic internal
// error that keeps err as its cause.
func As(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	e := Internal("An unexpected error occurred")
	e.Cause = err
	return e
}

type ErrorResponse struct {
	Error   *AppError `json:"error"`
	Success bool      `json:"success"`
}

type SuccessResponse struct {
	Data    any  `json:"data"`
	Success bool `json:"success"`
}

// WriteError writes the error envelope for err stamped with requestID and
// logs it at warn for client errors, error otherwise. err itself is left
// untouched.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, requestID string) {
	appErr := *As(err)
	appErr.RequestID = requestID

	writeJSON(w, appErr.StatusCode, ErrorResponse{Error: &appErr})

	level := slog.LevelError
	if appErr.StatusCode < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "request failed",
		"error_code", appErr.Code,
		"error_message", appErr.Message,
		"status_code", appErr.StatusCode,
		"request_id", requestID,
		"cause", appErr.Cause,
	)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, SuccessResponse{Data: data, Success: true})
}

// WriteSuccessWithHeaders sets headers (typically Cache-Control) before the
// success envelope.
func WriteSuccessWithHeaders(w http.ResponseWriter, data any, headers map[string]string) {
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	WriteSuccess(w, data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("failed to encode response", "status", status, "error", err)
	}
}
