package server

import (
	"encoding/json"
	stdliberrors "errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/samanhappy/selectly/pkg/errors"
)

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// respondError sends a structured JSON error response.
func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	response := struct {
		Error     string `json:"error"`
		Status    int    `json:"status"`
		Code      string `json:"code,omitempty"`
		Message   string `json:"message"`
		Details   string `json:"details,omitempty"`
		Retryable bool   `json:"retryable,omitempty"`
		Timestamp string `json:"timestamp"`
	}{
		Status:    status,
		Message:   http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var appErr *apperrors.Error
	if stdliberrors.As(err, &appErr) {
		response.Code = string(appErr.Code)
		if appErr.UserMessage != "" {
			response.Message = appErr.UserMessage
		} else if appErr.Message != "" {
			response.Message = appErr.Message
		}
		response.Retryable = appErr.Retryable
		response.Details = appErr.Error()
	} else if err != nil {
		response.Message = err.Error()
	}

	if response.Details == "" && err != nil {
		response.Details = fmt.Sprintf("%v", err)
	}

	response.Error = response.Message
	_ = json.NewEncoder(w).Encode(response)
}

// statusForError maps the service error taxonomy onto HTTP status codes so
// the extension can branch without parsing messages.
func statusForError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidModelFormat, apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeInvalidAPIKey:
		return http.StatusUnauthorized
	case apperrors.ErrCodeBuiltInLocked:
		return http.StatusForbidden
	case apperrors.ErrCodeProviderNotConfigured:
		return http.StatusConflict
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeNetworkError, apperrors.ErrCodeServerError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
