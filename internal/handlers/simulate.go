package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/pipescope/core/internal/ctxlog"
	"github.com/pipescope/core/internal/models"
	"github.com/pipescope/core/internal/simulator"
)

type SimulateResponse struct {
	RunID         string                   `json:"run_id"`
	Graph         models.Graph             `json:"graph"`
	Notifications []simulator.Notification `json:"notifications"`
}

type notificationLog struct {
	mu    sync.Mutex
	items []simulator.Notification
}

func (l *notificationLog) Notify(_ context.Context, n simulator.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, n)
}

// SimulateHandler replays the posted graph without step delays and returns
// the final statuses. The fail query parameter makes the named node fail.
func SimulateHandler(metrics *simulator.Metrics, maxBodyBytes int64) http.HandlerFunc {
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

		events := &notificationLog{}
		opts := []simulator.Option{
			simulator.WithStepDelay(0),
			simulator.WithStepPause(0),
			simulator.WithNotifier(events),
			simulator.WithLogger(ctxlog.FromContext(r.Context())),
		}
		if metrics != nil {
			opts = append(opts, simulator.WithMetrics(metrics))
		}
		if failAt := r.URL.Query().Get("fail"); failAt != "" {
			opts = append(opts, simulator.WithOutcome(simulator.FailAt(failAt)))
		}

		sim := simulator.New(graph, opts...)
		if err := sim.Run(r.Context()); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, simulator.ErrAlreadyRunning) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}

		result := sim.Snapshot()
		result.ComputeStats()

		response := SimulateResponse{Graph: result, Notifications: events.items}
		if len(events.items) > 0 {
			response.RunID = events.items[0].RunID
		}

		writeJSON(w, r, http.StatusOK, response)
	}
}
