// Package handlers implements the HTTP surface of excelquery.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/13102180531/ExcelQuery/pkg/apperrors"
	"github.com/13102180531/ExcelQuery/pkg/llm"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// StatusFromError maps service errors to an HTTP status and a stable error
// code. Provider outages are 503 so clients can retry; malformed model
// output is the server's problem and stays 500.
func StatusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperrors.ErrUnsupportedFileType):
		return http.StatusBadRequest, "unsupported_file_type"
	case errors.Is(err, apperrors.ErrUnknownProvider):
		return http.StatusBadRequest, "unknown_provider"
	case errors.Is(err, apperrors.ErrDataFileMissing):
		return http.StatusNotFound, "data_file_missing"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		switch llmErr.Kind {
		case llm.KindProviderUnavailable:
			return http.StatusServiceUnavailable, string(llmErr.Kind)
		case llm.KindResponseMalformed, llm.KindSchemaInvalid:
			return http.StatusInternalServerError, string(llmErr.Kind)
		}
	}

	return http.StatusInternalServerError, "internal_error"
}
