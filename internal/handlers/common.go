// Package handlers provides the JSON HTTP handlers for the AssetVision API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	apperrors "assetvision/internal/errors"
)

// errorResponse is the wire shape of every error body.
type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps an error onto its HTTP status and JSON body. Anything that
// is not an AppError is logged and reported as a generic internal error so
// driver details never leak to clients.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := apperrors.HTTPStatus(appErr)
		if status >= 500 {
			log.Error().Err(appErr.Cause).Msg(appErr.Message)
			writeJSON(w, status, errorResponse{Error: "internal server error"})
			return
		}
		writeJSON(w, status, errorResponse{Error: appErr.Message, Details: appErr.Details})
		return
	}

	log.Error().Err(err).Msg("unhandled error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

// decodeJSON decodes the request body into dst, rejecting unknown fields and
// trailing garbage.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Validation("invalid JSON body: " + err.Error())
	}
	if dec.More() {
		return apperrors.Validation("unexpected data after JSON body")
	}
	return nil
}

// Health reports service liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
