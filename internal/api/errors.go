// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"net/http"

	xglog "github.com/ManuGH/examcap/internal/log"
)

// Error codes returned in the "error" field.
const (
	CodeBadRequest     = "bad_request"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeUnprocessable  = "unprocessable"
	CodeUnavailable    = "unavailable"
	CodeGatewayTimeout = "ack_timeout"
	CodeInternal       = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	if status >= http.StatusInternalServerError {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Str(xglog.FieldEvent, "api.error").
			Str(xglog.FieldPath, r.URL.Path).
			Str("code", code).
			Str("detail", detail).
			Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: code, Detail: detail})
}

// decodeJSON reads a single bounded JSON object from the body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
