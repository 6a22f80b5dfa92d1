package handlers

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pipescope/core/internal/ctxlog"
	"github.com/pipescope/core/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 10 << 20

//go:embed graph.schema.json
var graphSchemaSource string

var graphSchema = jsonschema.MustCompileString("graph.schema.json", graphSchemaSource)

// readBody reads at most limit bytes. Larger bodies are rejected.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, err
	}
	return body, nil
}

// decodeGraph validates body against the graph schema and decodes it.
func decodeGraph(body []byte) (models.Graph, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.Graph{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := graphSchema.Validate(doc); err != nil {
		return models.Graph{}, fmt.Errorf("invalid graph: %w", err)
	}

	var graph models.Graph
	if err := json.Unmarshal(body, &graph); err != nil {
		return models.Graph{}, fmt.Errorf("invalid graph: %w", err)
	}

	seen := make(map[string]bool, len(graph.Nodes))
	for _, n := range graph.Nodes {
		if seen[n.ID] {
			return models.Graph{}, fmt.Errorf("invalid graph: duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
	}
	return graph, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	if r.URL.Query().Get("pretty") == "true" {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(body); err != nil {
		ctxlog.FromContext(r.Context()).Error("Error encoding response.", "error", err)
	}
}
