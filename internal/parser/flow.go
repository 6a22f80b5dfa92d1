package parser

import (
	"regexp"
	"strings"
)

// FlowDiagram is the stage graph recovered from a flowchart text such as the
// output of `dvc dag --mermaid`.
type FlowDiagram struct {
	Nodes []FlowNode
	Edges []FlowEdge
}

type FlowNode struct {
	ID    string
	Label string
}

type FlowEdge struct {
	Source string
	Target string
}

var (
	flowNodeDecl = regexp.MustCompile(`^([A-Za-z0-9_.:@/-]+)\s*\[\s*(?:"(.*)"|([^\]"]*))\s*\]$`)
	flowNodeRef  = regexp.MustCompile(`^[A-Za-z0-9_.:@/-]+$`)
)

// ParseFlow reads node declarations (id["label"]) and directed edges
// (A --> B, chains allowed). Unrecognised lines are ignored.
func ParseFlow(text string) FlowDiagram {
	var diagram FlowDiagram
	index := make(map[string]int)

	declare := func(id, label string) {
		if i, ok := index[id]; ok {
			if label != "" && diagram.Nodes[i].Label == id {
				diagram.Nodes[i].Label = label
			}
			return
		}
		if label == "" {
			label = id
		}
		index[id] = len(diagram.Nodes)
		diagram.Nodes = append(diagram.Nodes, FlowNode{ID: id, Label: label})
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, ";"))
		if line == "" || isFlowDirective(line) {
			continue
		}

		parts := strings.Split(line, "-->")
		parsed := make([]FlowNode, 0, len(parts))
		for _, part := range parts {
			id, label, ok := parseFlowNode(strings.TrimSpace(part))
			if !ok {
				parsed = nil
				break
			}
			parsed = append(parsed, FlowNode{ID: id, Label: label})
		}

		ids := make([]string, 0, len(parsed))
		for _, fn := range parsed {
			declare(fn.ID, fn.Label)
			ids = append(ids, fn.ID)
		}

		for i := 0; i+1 < len(ids); i++ {
			diagram.Edges = append(diagram.Edges, FlowEdge{Source: ids[i], Target: ids[i+1]})
		}
	}

	return diagram
}

func isFlowDirective(line string) bool {
	if strings.HasPrefix(line, "%%") {
		return true
	}
	keyword := strings.ToLower(strings.Fields(line)[0])
	switch keyword {
	case "flowchart", "graph", "subgraph", "end", "classdef", "class", "style", "linkstyle", "direction", "click":
		return true
	}
	return false
}

func parseFlowNode(s string) (id, label string, ok bool) {
	if m := flowNodeDecl.FindStringSubmatch(s); m != nil {
		label = m[2]
		if label == "" {
			label = strings.TrimSpace(m[3])
		}
		return m[1], label, true
	}
	if flowNodeRef.MatchString(s) {
		return s, "", true
	}
	return "", "", false
}
