// Package handlers provides HTTP request handlers for the API endpoints:
// health, pipeline file parsing, execution planning and simulation.
package handlers

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/pipescope/core/internal/parser"
)

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Service    string            `json:"service"`
	Uptime     string            `json:"uptime,omitempty"`
	Frameworks []string          `json:"frameworks"`
	Details    map[string]string `json:"details,omitempty"`
}

// ServiceName identifies this API in health responses.
const ServiceName = "pipescope-api"

var startTime = time.Now()

// HealthHandler reports liveness together with the pipeline formats the
// registry can parse, in detection order.
func HealthHandler(registry *parser.Registry) http.HandlerFunc {
	frameworks := registry.Frameworks()

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		writeJSON(w, r, http.StatusOK, HealthResponse{
			Status:     "healthy",
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Service:    ServiceName,
			Uptime:     time.Since(startTime).Round(time.Millisecond).String(),
			Frameworks: frameworks,
			Details: map[string]string{
				"go_version": runtime.Version(),
				"num_cpu":    strconv.Itoa(runtime.NumCPU()),
			},
		})
	}
}
