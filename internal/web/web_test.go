package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"littlelemon/internal/apperr"
	"littlelemon/internal/logger"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		message   string
		field     string
		retryable bool
	}{
		{"validation", apperr.Validation("quantity", "must be at least 1"), http.StatusBadRequest, "quantity: must be at least 1", "quantity", false},
		{"retryable", apperr.Retryable("Could not set featured due to concurrency. Please retry.", nil), http.StatusBadRequest, "Could not set featured due to concurrency. Please retry.", "", true},
		{"forbidden", apperr.PermissionDenied("nope"), http.StatusForbidden, "nope", "", false},
		{"not found", apperr.NotFound("Order"), http.StatusNotFound, "Order not found", "", false},
		{"conflict", apperr.Conflict("This user already has a cart."), http.StatusConflict, "This user already has a cart.", "", false},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "Internal server error", "", false},
	}

	var logs strings.Builder
	log := logger.NewWithOptions("test", logger.Options{Output: &logs})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
			r = r.WithContext(logger.WithRequestID(r.Context(), "req-42"))
			w := httptest.NewRecorder()

			WriteError(w, r, log, "test_action", tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Error)
			assert.Equal(t, tt.field, body.Field)
			assert.Equal(t, tt.retryable, body.Retryable)
			assert.Equal(t, "req-42", body.RequestID)
		})
	}

	assert.Contains(t, logs.String(), "pq: connection reset")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Quantity int `json:"quantity"`
	}

	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
	}{
		{"ok", "application/json", `{"quantity": 2}`, false},
		{"charset", "application/json; charset=utf-8", `{"quantity": 2}`, false},
		{"wrong type", "text/plain", `{"quantity": 2}`, true},
		{"unknown field", "application/json", `{"quantity": 2, "price": "1.00"}`, true},
		{"empty", "application/json", ``, true},
		{"trailing", "application/json", `{"quantity": 2}{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/cart-items", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)

			var p payload
			err := DecodeJSON(r, &p)
			if tt.wantErr {
				assert.True(t, apperr.Is(err, apperr.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, p.Quantity)
		})
	}
}

func TestPathIDAndQueryInt(t *testing.T) {
	mux := http.NewServeMux()
	var got int64
	var gotErr error
	mux.HandleFunc("GET /orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = PathID(r, "id")
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/12", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(12), got)

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	assert.True(t, apperr.Is(gotErr, apperr.KindNotFound))

	r := httptest.NewRequest(http.MethodGet, "/menu-items?page=3&page_size=x", nil)
	page, err := QueryInt(r, "page", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page)
	_, err = QueryInt(r, "page_size", 10)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	def, err := QueryInt(r, "missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, def)
}
