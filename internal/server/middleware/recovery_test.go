package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/chatsync/pkg/api"
)

func TestRecoveryMiddleware_PanicBecomesJSON500(t *testing.T) {
	tests := []struct {
		panicValue any
		name       string
		wantLogged string
	}{
		{name: "string", panicValue: "nil reaction map", wantLogged: "nil reaction map"},
		{name: "error", panicValue: errors.New("storage closed"), wantLogged: "storage closed"},
		{name: "struct", panicValue: struct{ ID string }{ID: "m-1"}, wantLogged: "m-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := RecoveryMiddleware(newJSONLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(tt.panicValue)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/messages/m-1/reactions", nil))

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			// детали паники клиенту не отдаются
			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, api.ErrorResponse{Error: "Internal Server Error", Message: "internal server error"}, resp)

			record := decodeRecord(t, &buf)
			assert.Equal(t, "Panic recovered", record["msg"])
			assert.Equal(t, "/api/v1/messages/m-1/reactions", record["path"])
			assert.Contains(t, fmt.Sprint(record["error"]), tt.wantLogged)
			assert.NotEmpty(t, record["stack"])
		})
	}
}

func TestRecoveryMiddleware_PassesThrough(t *testing.T) {
	handler := RecoveryMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/messages/m-1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecoveryMiddleware_RepanicsAbortHandler(t *testing.T) {
	handler := RecoveryMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))
	})
}

func TestRecoveryMiddleware_InsideLoggingRecords500(t *testing.T) {
	var buf bytes.Buffer
	handler := LoggingMiddleware(newJSONLogger(&buf))(
		RecoveryMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	record := decodeRecord(t, &buf)
	assert.EqualValues(t, http.StatusInternalServerError, record["status"])
	assert.Equal(t, "ERROR", record["level"])
}
