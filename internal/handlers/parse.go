package handlers

import (
	"errors"
	"net/http"

	"github.com/pipescope/core/internal/ctxlog"
	"github.com/pipescope/core/internal/parser"
)

// ParseHandler builds the graph of the pipeline file posted as the request
// body. The file query parameter names the file and selects the format.
func ParseHandler(registry *parser.Registry, maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		filePath := r.URL.Query().Get("file")
		if filePath == "" {
			http.Error(w, "Missing file parameter", http.StatusBadRequest)
			return
		}

		body, err := readBody(w, r, maxBodyBytes)
		if err != nil {
			http.Error(w, "Failed to read body: "+err.Error(), http.StatusBadRequest)
			return
		}

		graph, err := registry.Parse(r.Context(), filePath, body)
		if errors.Is(err, parser.ErrUnsupported) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			ctxlog.FromContext(r.Context()).Error("Parse failed.", "file", filePath, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, r, http.StatusOK, graph)
	}
}
