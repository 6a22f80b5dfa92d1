// Package models defines the core data structures exchanged between the
// pipeline builders, the execution planner and the simulator.
package models

// NodeType distinguishes units of work from synthesized data outputs.
type NodeType string

const (
	NodeTypeDefault  NodeType = "default"
	NodeTypeArtifact NodeType = "artifact"
)

// Status is the execution state of a node or edge.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known statuses. The empty status is
// accepted and means idle.
func (s Status) Valid() bool {
	switch s {
	case "", StatusIdle, StatusProcessing, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

type Graph struct {
	FilePath  string `json:"filePath,omitempty"`
	Framework string `json:"framework,omitempty"`
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
	Error     string `json:"error,omitempty"`
	Stats     *Stats `json:"stats,omitempty"`
}

type Node struct {
	ID     string         `json:"id"`
	Label  string         `json:"label"`
	Type   NodeType       `json:"type,omitempty"`
	Status Status         `json:"status,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
	Status Status `json:"status,omitempty"`
}

type Stats struct {
	TotalNodes    int            `json:"total_nodes"`
	TotalEdges    int            `json:"total_edges"`
	NodesByType   map[string]int `json:"nodes_by_type,omitempty"`
	NodesByStatus map[string]int `json:"nodes_by_status,omitempty"`
}

// NewGraph returns an empty graph tagged with its origin.
func NewGraph(filePath, framework string) *Graph {
	return &Graph{
		FilePath:  filePath,
		Framework: framework,
		Nodes:     []Node{},
		Edges:     []Edge{},
	}
}

// DisplayName returns the label if present, else the id.
func (n Node) DisplayName() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// EffectiveStatus maps the empty status to idle.
func (n Node) EffectiveStatus() Status {
	if n.Status == "" {
		return StatusIdle
	}
	return n.Status
}

// Clone returns a copy whose node and edge slices can be modified without
// affecting g. Node data maps are shared.
func (g Graph) Clone() Graph {
	out := g
	out.Nodes = append([]Node(nil), g.Nodes...)
	out.Edges = append([]Edge(nil), g.Edges...)
	if out.Nodes == nil {
		out.Nodes = []Node{}
	}
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	if g.Stats != nil {
		stats := *g.Stats
		out.Stats = &stats
	}
	return out
}

// NodeByID looks a node up by id.
func (g Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// ComputeStats fills g.Stats from the current nodes and edges.
func (g *Graph) ComputeStats() *Stats {
	stats := &Stats{
		TotalNodes:    len(g.Nodes),
		TotalEdges:    len(g.Edges),
		NodesByType:   make(map[string]int),
		NodesByStatus: make(map[string]int),
	}

	for _, n := range g.Nodes {
		nodeType := n.Type
		if nodeType == "" {
			nodeType = NodeTypeDefault
		}
		stats.NodesByType[string(nodeType)]++
		stats.NodesByStatus[string(n.EffectiveStatus())]++
	}

	g.Stats = stats
	return stats
}
