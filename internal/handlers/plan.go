package handlers

import (
	"errors"
	"net/http"

	"github.com/pipescope/core/internal/plan"
)

type PlanResponse struct {
	Plan      []string `json:"plan"`
	Unplanned []string `json:"unplanned"`
	Warning   string   `json:"warning,omitempty"`
}

// PlanHandler returns the execution order of the posted graph. Nodes caught
// in a cycle are listed as unplanned with a warning; the request still
// succeeds.
func PlanHandler(maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := readBody(w, r, maxBodyBytes)
		if err != nil {
			http.Error(w, "Failed to read body: "+err.Error(), http.StatusBadRequest)
			return
		}

		graph, err := decodeGraph(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		order, err := plan.Validate(graph.Nodes, graph.Edges)
		response := PlanResponse{Plan: order, Unplanned: []string{}}
		if response.Plan == nil {
			response.Plan = []string{}
		}

		var cycle *plan.CycleError
		if errors.As(err, &cycle) {
			response.Unplanned = cycle.NodeIDs
			response.Warning = cycle.Error()
		}

		writeJSON(w, r, http.StatusOK, response)
	}
}
