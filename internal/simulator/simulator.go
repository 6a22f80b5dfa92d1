// Package simulator replays a pipeline graph in execution-plan order, moving
// each node and its incoming edges through idle, processing and a final
// status. No real work is performed.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pipescope/core/internal/ctxlog"
	"github.com/pipescope/core/internal/models"
	"github.com/pipescope/core/internal/plan"
)

// ErrAlreadyRunning is returned by Run while another run is in progress.
var ErrAlreadyRunning = errors.New("simulation already running")

const (
	DefaultStepDelay = 500 * time.Millisecond
	DefaultStepPause = 100 * time.Millisecond
)

// OutcomeFunc decides whether a node succeeds. A non-nil error fails the node
// and ends the run.
type OutcomeFunc func(ctx context.Context, node models.Node) error

type Option func(*Simulator)

func WithStepDelay(d time.Duration) Option {
	return func(s *Simulator) { s.stepDelay = d }
}

// WithStepPause sets the pause between two successful nodes.
func WithStepPause(d time.Duration) Option {
	return func(s *Simulator) { s.stepPause = d }
}

func WithOutcome(fn OutcomeFunc) Option {
	return func(s *Simulator) { s.outcome = fn }
}

func WithNotifier(n Notifier) Option {
	return func(s *Simulator) { s.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// FailAt returns an outcome that fails the node with the given id and lets
// every other node succeed.
func FailAt(nodeID string) OutcomeFunc {
	return func(_ context.Context, node models.Node) error {
		if node.ID == nodeID {
			return fmt.Errorf("step %q failed", node.DisplayName())
		}
		return nil
	}
}

type Simulator struct {
	store     *store
	token     CancelToken
	stepDelay time.Duration
	stepPause time.Duration
	outcome   OutcomeFunc
	notifier  Notifier
	logger    *slog.Logger
	metrics   *Metrics

	mu      sync.Mutex
	running bool
}

func New(graph models.Graph, opts ...Option) *Simulator {
	s := &Simulator{
		store:     newStore(graph),
		stepDelay: DefaultStepDelay,
		stepPause: DefaultStepPause,
		notifier:  nopNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsRunning reports whether a run is in progress.
func (s *Simulator) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop requests cancellation. The run loop observes it after the current
// step delay and reverts the in-flight node to idle. Stop changes no status
// by itself.
func (s *Simulator) Stop() {
	s.token.Cancel()
}

// Snapshot returns a copy of the current graph.
func (s *Simulator) Snapshot() models.Graph {
	return s.store.snapshot()
}

// Subscribe registers fn to receive a snapshot after every status change.
// Calling the returned function unsubscribes.
func (s *Simulator) Subscribe(fn func(models.Graph)) (unsubscribe func()) {
	return s.store.subscribe(fn)
}

type runResult struct {
	stopped bool
	failed  *models.Node
	err     error
}

// Run simulates one pass over the graph. It returns ErrAlreadyRunning if a
// run is in progress and nil otherwise; how the run ended is reported through
// the notifier. A cancelled ctx is treated like Stop.
func (s *Simulator) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.token.Reset()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.token.Reset()
		s.mu.Unlock()
	}()

	runID := uuid.NewString()
	logger := s.logger
	if logger == nil {
		logger = ctxlog.FromContext(ctx)
	}
	logger = logger.With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	if s.metrics != nil {
		s.metrics.ActiveRuns.Inc()
		defer s.metrics.ActiveRuns.Dec()
	}

	s.store.update(resetStatuses)
	graph := s.store.snapshot()
	order := plan.Build(graph.Nodes, graph.Edges)

	logger.Info("Simulation started.", "nodes", len(graph.Nodes), "planned", len(order))
	s.notifier.Notify(ctx, Notification{
		Kind:    NotificationStarted,
		RunID:   runID,
		Message: "Pipeline started",
	})

	start := time.Now()
	result := s.execute(ctx, graph, order)

	n := s.terminal(ctx, runID, result)
	if s.metrics != nil {
		s.metrics.Runs.WithLabelValues(string(n.Kind)).Inc()
		s.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}

	logger.Info("Simulation finished.", "outcome", n.Kind, "duration", time.Since(start))
	s.notifier.Notify(ctx, n)

	return nil
}

func (s *Simulator) execute(ctx context.Context, graph models.Graph, order []string) runResult {
	logger := ctxlog.FromContext(ctx)

	for i, id := range order {
		node, ok := graph.NodeByID(id)
		if !ok {
			continue
		}

		stepStart := time.Now()
		s.store.update(func(g *models.Graph) { setStatus(g, id, models.StatusProcessing) })
		logger.Debug("Step processing.", "node", id)

		sleep(ctx, s.stepDelay)

		if s.stopRequested(ctx) {
			s.store.update(func(g *models.Graph) { setStatus(g, id, models.StatusIdle) })
			logger.Debug("Step cancelled.", "node", id)
			return runResult{stopped: true}
		}

		var err error
		if s.outcome != nil {
			err = s.outcome(ctx, node)
		}

		status := models.StatusSuccess
		if err != nil {
			status = models.StatusFailed
		}
		s.store.update(func(g *models.Graph) { setStatus(g, id, status) })
		s.observeStep(status, time.Since(stepStart))

		if err != nil {
			logger.Debug("Step failed.", "node", id, "error", err)
			return runResult{failed: &node, err: err}
		}
		logger.Debug("Step succeeded.", "node", id)

		if i < len(order)-1 {
			sleep(ctx, s.stepPause)
		}
	}

	return runResult{}
}

// terminal picks the single closing notification: a stop request wins over
// a failure, which wins over completion.
func (s *Simulator) terminal(ctx context.Context, runID string, r runResult) Notification {
	switch {
	case r.stopped || s.stopRequested(ctx):
		return Notification{
			Kind:    NotificationStopped,
			RunID:   runID,
			Message: "Pipeline stopped",
		}
	case r.failed != nil:
		return Notification{
			Kind:    NotificationFailed,
			RunID:   runID,
			NodeID:  r.failed.ID,
			Message: fmt.Sprintf("Pipeline failed at step %q", r.failed.DisplayName()),
		}
	default:
		return Notification{
			Kind:    NotificationCompleted,
			RunID:   runID,
			Message: "Pipeline completed successfully",
		}
	}
}

func (s *Simulator) stopRequested(ctx context.Context) bool {
	return s.token.Cancelled() || ctx.Err() != nil
}

func (s *Simulator) observeStep(status models.Status, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.Steps.WithLabelValues(string(status)).Inc()
	s.metrics.StepDuration.WithLabelValues(string(status)).Observe(d.Seconds())
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
