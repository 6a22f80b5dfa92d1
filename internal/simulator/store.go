package simulator

import (
	"sync"

	"github.com/pipescope/core/internal/models"
)

// store holds the current graph. Every update replaces the held graph with a
// modified copy, so snapshots handed out earlier never change. Subscribers
// are notified in subscription order; an unsubscribed slot is set to nil.
type store struct {
	mu    sync.Mutex
	graph models.Graph
	subs  []func(models.Graph)
	live  int
}

func newStore(graph models.Graph) *store {
	return &store{graph: graph.Clone()}
}

func (s *store) snapshot() models.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Clone()
}

// update applies fn to a copy of the current graph, stores the copy and
// delivers it to subscribers outside the lock.
func (s *store) update(fn func(g *models.Graph)) {
	s.mu.Lock()
	next := s.graph.Clone()
	fn(&next)
	s.graph = next

	subs := make([]func(models.Graph), 0, s.live)
	for _, sub := range s.subs {
		if sub != nil {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(next.Clone())
	}
}

func (s *store) subscribe(fn func(models.Graph)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := len(s.subs)
	s.subs = append(s.subs, fn)
	s.live++

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.subs[slot] != nil {
			s.subs[slot] = nil
			s.live--
		}
	}
}

// setStatus marks the node and every edge targeting it.
func setStatus(g *models.Graph, nodeID string, status models.Status) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == nodeID {
			g.Nodes[i].Status = status
		}
	}
	for i := range g.Edges {
		if g.Edges[i].Target == nodeID {
			g.Edges[i].Status = status
		}
	}
}

func resetStatuses(g *models.Graph) {
	for i := range g.Nodes {
		g.Nodes[i].Status = models.StatusIdle
	}
	for i := range g.Edges {
		g.Edges[i].Status = models.StatusIdle
	}
}
