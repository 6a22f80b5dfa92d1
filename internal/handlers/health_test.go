package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/pipescope/core/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()

	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHealthHandler(t *testing.T) {
	registry := parser.NewRegistry(parser.NewGitLabParser(), parser.NewGitHubParser())
	handler := HealthHandler(registry)

	t.Run("returns healthy JSON for GET request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		response := decodeHealth(t, w)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, ServiceName, response.Service)
		assert.NotEmpty(t, response.Uptime)
	})

	t.Run("timestamp is recent RFC3339", func(t *testing.T) {
		before := time.Now().UTC().Add(-time.Second)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		after := time.Now().UTC().Add(time.Second)

		ts, err := time.Parse(time.RFC3339, decodeHealth(t, w).Timestamp)
		require.NoError(t, err)
		assert.True(t, ts.After(before) && ts.Before(after), "timestamp %s outside [%s, %s]", ts, before, after)
	})

	t.Run("details carry runtime info", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		details := decodeHealth(t, w).Details
		assert.Equal(t, runtime.Version(), details["go_version"])
		assert.Equal(t, strconv.Itoa(runtime.NumCPU()), details["num_cpu"])
	})

	t.Run("lists registered frameworks", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, []string{parser.FrameworkGitLabCI, parser.FrameworkGitHubActions}, decodeHealth(t, w).Frameworks)
	})

	t.Run("rejects other methods", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			req := httptest.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()

			handler(w, req)

			assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
			assert.Contains(t, w.Body.String(), "Method not allowed")
		}
	})

	t.Run("handles multiple concurrent requests", func(t *testing.T) {
		numRequests := 10
		results := make(chan int, numRequests)

		for i := 0; i < numRequests; i++ {
			go func() {
				req := httptest.NewRequest(http.MethodGet, "/health", nil)
				w := httptest.NewRecorder()
				handler(w, req)
				results <- w.Code
			}()
		}

		for i := 0; i < numRequests; i++ {
			assert.Equal(t, http.StatusOK, <-results)
		}
	})
}
