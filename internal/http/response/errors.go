package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diagnosis/foodshare-donations/internal/delivery"
	"github.com/diagnosis/foodshare-donations/internal/domain"
	"github.com/diagnosis/foodshare-donations/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeExpired           = "EXPIRED"
	CodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	CodeUpstream          = "DELIVERY_UNAVAILABLE"
	CodeInternalError     = "INTERNAL_ERROR"
)

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message, code string) {
	JSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, message, code, details string) {
	JSON(w, statusCode, ErrorResponse{Error: message, Code: code, Details: details})
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthenticated(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthenticated)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, CodeUnauthorized)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

// FromError maps a service error onto its status and code. Anything not
// recognised is logged and reported as an internal error without detail.
func FromError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		WriteErrorWithDetails(w, http.StatusBadRequest, "Invalid input", CodeInvalidInput, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "Donation not found")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteErrorWithDetails(w, http.StatusForbidden, "Not allowed", CodeUnauthorized, err.Error())
	case errors.Is(err, domain.ErrExpired):
		WriteErrorWithDetails(w, http.StatusGone, "Donation has expired", CodeExpired, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		WriteErrorWithDetails(w, http.StatusConflict, "Invalid status transition", CodeInvalidTransition, err.Error())
	case errors.Is(err, delivery.ErrNotConfigured):
		WriteError(w, http.StatusServiceUnavailable, "Delivery booking is not available", CodeUpstream)
	default:
		logger.ErrorContext(ctx, "Request failed", "error", err)
		InternalError(w, "Internal server error")
	}
}
