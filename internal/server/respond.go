package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"

	"vocatio/internal/errors"
	"vocatio/internal/factstore"
)

// parseJSONRequest parses JSON request body into the provided struct.
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response.
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: error, Message: message}, statusCode)
}

// writeAppError maps err onto a status code and writes it with its reason code.
func writeAppError(w http.ResponseWriter, title string, err error) {
	reason := errors.ReasonOf(err)
	message := err.Error()
	if msg := reason.Message(); msg != "" {
		message = msg
	}
	writeJSON(w, ErrorResponse{Error: title, Message: message, ReasonCode: reason}, statusForError(err))
}

// statusForReason maps a reason code onto an HTTP status.
func statusForReason(reason errors.ReasonCode) int {
	switch reason {
	case errors.ReasonNone:
		return http.StatusOK
	case errors.ReasonEmptyInput:
		return http.StatusBadRequest
	case errors.ReasonIntegrityViolation:
		return http.StatusUnprocessableEntity
	case errors.ReasonOracleMalformedResponse:
		return http.StatusBadGateway
	case errors.ReasonOracleUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func statusForError(err error) int {
	if reason := errors.ReasonOf(err); reason != errors.ReasonNone {
		return statusForReason(reason)
	}
	if stderrors.Is(err, factstore.ErrNotFound) || errors.HasCode(err, errors.ErrCodeNotFound) {
		return http.StatusNotFound
	}
	if errors.HasCode(err, errors.ErrCodeInProgress) {
		return http.StatusConflict
	}
	if errors.HasCode(err, errors.ErrCodeCancelled) {
		return http.StatusServiceUnavailable
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Type == errors.ErrorTypeValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
