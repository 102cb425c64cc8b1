package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/handler"
)

type envelope struct {
	Error struct {
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", appErrors.NewValidation("Campaign has not started yet"), 400, "Campaign has not started yet"},
		{"not found", appErrors.NewCampaignNotFound(4), 404, "campaign with ID 4 not found"},
		{"conflict", appErrors.NewConflict("already staked"), 409, "already staked"},
		{"internal", errors.New("pq: connection refused"), 500, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			var body envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Error.StatusCode)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}

type pinger struct{ err error }

func (p pinger) PingContext(ctx context.Context) error { return p.err }

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Task string `json:"task"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"task":"discord_join"}`))
	require.NoError(t, handler.DecodeJSON(httptest.NewRecorder(), r, &body))
	assert.Equal(t, "discord_join", body.Task)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"task":`))
	err := handler.DecodeJSON(httptest.NewRecorder(), r, &body)
	assert.Equal(t, http.StatusBadRequest, appErrors.StatusCode(err))

	huge := `{"task":"` + strings.Repeat("x", handler.MaxBodyBytes) + `"}`
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	err = handler.DecodeJSON(httptest.NewRecorder(), r, &body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, appErrors.StatusCode(err))
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	(&handler.HealthHandler{DB: pinger{}, Version: "test"}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)

	w = httptest.NewRecorder()
	(&handler.HealthHandler{DB: pinger{err: errors.New("down")}}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	(&handler.HealthHandler{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
