package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/fund-ledger/internal/errors"
	"github.com/fund-ledger/internal/logging"
	"github.com/fund-ledger/internal/types"
)

// Error codes used directly by handlers; categorized errors carry
// their own codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUnavailable   = "SERVICE_UNAVAILABLE"
)

// ErrorResponse is the envelope for all error payloads.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.GetGlobalLogger().WithError(err).Error("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: types.ServiceError{Code: code, Message: message, Details: details},
	})
}

// respondMappedError maps a categorized error onto its HTTP status and
// wire code.
func respondMappedError(w http.ResponseWriter, err error) {
	categorized := apperrors.Categorize(err)
	respondError(w, apperrors.GetHTTPStatusCode(categorized), categorized.Code, categorized.Message, categorized.Details)
}
