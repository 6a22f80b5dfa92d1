// Package plan turns a pipeline graph into a linear execution order.
package plan

import (
	"fmt"
	"strings"

	"github.com/pipescope/core/internal/models"
)

// Build returns node ids in a dependency-respecting order using Kahn's
// algorithm. Zero in-degree nodes are seeded in node order and successors
// are released in edge order, so identical inputs always give identical
// output. Edges whose target is unknown are ignored. An edge from an unknown
// source still counts toward its target's in-degree, so the target and
// everything behind it are left out, as are nodes that sit on or behind a
// cycle; use Validate to detect that. The arguments are not modified.
func Build(nodes []models.Node, edges []models.Edge) []string {
	known := make(map[string]bool, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
		inDegree[n.ID] = 0
	}

	outgoing := make(map[string][]string, len(nodes))
	for _, e := range edges {
		if !known[e.Target] {
			continue
		}
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
		inDegree[e.Target]++
	}

	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(nodes))
	visited := make(map[string]bool, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if visited[id] {
			continue
		}
		visited[id] = true
		order = append(order, id)

		for _, next := range outgoing[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return order
}

// Unplanned returns, in node order, the ids of nodes missing from order.
func Unplanned(nodes []models.Node, order []string) []string {
	planned := make(map[string]bool, len(order))
	for _, id := range order {
		planned[id] = true
	}

	var missing []string
	for _, n := range nodes {
		if !planned[n.ID] {
			missing = append(missing, n.ID)
		}
	}
	return missing
}

// CycleError names the nodes that could not be scheduled, either because
// they are on or behind a cycle or because they depend on an unknown node.
type CycleError struct {
	NodeIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency graph contains a cycle or an unknown dependency: %d node(s) cannot be scheduled: %s",
		len(e.NodeIDs), strings.Join(e.NodeIDs, ", "))
}

// Validate builds the plan and reports a *CycleError when some nodes are
// unreachable because of a cycle.
func Validate(nodes []models.Node, edges []models.Edge) ([]string, error) {
	order := Build(nodes, edges)
	if missing := Unplanned(nodes, order); len(missing) > 0 {
		return order, &CycleError{NodeIDs: missing}
	}
	return order, nil
}
