package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"yeongsu/internal/core"
	"yeongsu/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, extra map[string]any) {
	body := map[string]any{"error": code}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeDomainError maps domain errors onto HTTP statuses and stable
// error codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var incomplete *core.IncompleteExtractionError
	if errors.As(err, &incomplete) {
		writeError(w, http.StatusUnprocessableEntity, "incomplete_extraction", map[string]any{
			"missing": incomplete.Missing,
		})
		return
	}

	var invalid *core.ValidationError
	if errors.As(err, &invalid) {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", map[string]any{
			"category":    invalid.Category,
			"subcategory": invalid.Subcategory,
		})
		return
	}

	if errors.Is(err, storage.ErrReceiptNotFound) {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}

	switch {
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyStoreName),
		errors.Is(err, core.ErrEmptyItemName),
		errors.Is(err, core.ErrNoItems):
		writeError(w, http.StatusBadRequest, "invalid_request", map[string]any{
			"detail": err.Error(),
		})
		return
	}

	writeError(w, http.StatusInternalServerError, "operation_failed", nil)
}
