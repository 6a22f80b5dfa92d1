// Package parser provides the format builders that turn declarative pipeline
// files into the canonical node/edge graph, and the registry that picks the
// builder for a given file.
package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/pipescope/core/internal/ctxlog"
	"github.com/pipescope/core/internal/models"
)

// ErrUnsupported is returned by Registry.Parse when no parser accepts a file.
var ErrUnsupported = errors.New("unsupported pipeline file")

// Parser is implemented by each format builder. Parse never fails: malformed
// input yields an empty graph with Graph.Error set.
type Parser interface {
	Framework() string
	CanParse(fileName string, content []byte) bool
	Parse(ctx context.Context, content []byte, filePath string) *models.Graph
}

// Registry is an ordered set of parsers. Detection tries them in order.
type Registry struct {
	parsers []Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// DefaultRegistry wires every supported format. source may be nil, in which
// case DVC files parse to an empty graph with an error marker.
func DefaultRegistry(source StageSource) *Registry {
	return NewRegistry(
		NewGitLabParser(),
		NewGitHubParser(),
		NewDVCParser(source),
		NewTerraformParser(),
	)
}

// Frameworks lists the registered framework names in detection order.
func (r *Registry) Frameworks() []string {
	names := make([]string, 0, len(r.parsers))
	for _, p := range r.parsers {
		names = append(names, p.Framework())
	}
	return names
}

// Detect returns the first parser that accepts the file.
func (r *Registry) Detect(fileName string, content []byte) (Parser, bool) {
	for _, p := range r.parsers {
		if p.CanParse(fileName, content) {
			return p, true
		}
	}
	return nil, false
}

// Parse detects the format of filePath and builds its graph.
func (r *Registry) Parse(ctx context.Context, filePath string, content []byte) (*models.Graph, error) {
	p, ok := r.Detect(filePath, content)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(filePath))
	}

	logger := ctxlog.FromContext(ctx).With("framework", p.Framework(), "file", filePath)
	logger.Debug("Parsing pipeline file.")

	graph := p.Parse(ctx, content, filePath)
	if graph.Error != "" {
		logger.Warn("Pipeline file could not be fully parsed.", "error", graph.Error)
	}
	graph.ComputeStats()
	logger.Debug("Pipeline graph built.", "nodes", len(graph.Nodes), "edges", len(graph.Edges))

	return graph, nil
}

func failedGraph(filePath, framework string, err error) *models.Graph {
	graph := models.NewGraph(filePath, framework)
	graph.Error = err.Error()
	return graph
}
