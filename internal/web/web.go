// Package web holds the JSON plumbing shared by the HTTP handlers.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"littlelemon/internal/apperr"
	"littlelemon/internal/logger"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status code and writes an ErrorResponse. Internal and
// upstream failures are logged with their cause; the client only sees the public message.
func WriteError(w http.ResponseWriter, r *http.Request, log *logger.Logger, action string, err error) {
	requestID := logger.RequestIDFromContext(r.Context())
	status := apperr.HTTPStatus(err)

	if status >= http.StatusInternalServerError && log != nil {
		log.Error(action, "Request failed", requestID, err, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}

	resp := ErrorResponse{
		Error:     apperr.PublicMessage(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		resp.Field = appErr.Field
		resp.Retryable = appErr.Retryable
	}
	_ = WriteJSON(w, status, resp)
}

// DecodeJSON decodes the request body into dst, rejecting other content types,
// unknown fields and trailing data.
func DecodeJSON(r *http.Request, dst interface{}) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return apperr.Validation("", "Content-Type must be application/json")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("", "Request body must not be empty")
		}
		return apperr.Validation("", fmt.Sprintf("Invalid JSON format: %v", err))
	}
	if decoder.More() {
		return apperr.Validation("", "Request body must contain a single JSON object")
	}
	return nil
}

// PathID parses the named path wildcard as a positive integer id.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NotFound("Resource")
	}
	return id, nil
}

// QueryInt parses an optional positive integer query parameter.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return v, nil
}
