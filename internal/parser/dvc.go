package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pipescope/core/internal/ctxlog"
	"github.com/pipescope/core/internal/models"
	"gopkg.in/yaml.v3"
)

const FrameworkDVC = "dvc"

// StageSource is the dependency-tool collaborator: for a working directory it
// reports the stage flow diagram and the stage metadata.
type StageSource interface {
	Load(ctx context.Context, workDir string) (*models.ToolOutput, error)
}

// DVCParser builds a stage/artifact graph for a DVC project.
type DVCParser struct {
	source StageSource
}

func NewDVCParser(source StageSource) *DVCParser {
	return &DVCParser{source: source}
}

func (p *DVCParser) Framework() string {
	return FrameworkDVC
}

func (p *DVCParser) CanParse(fileName string, _ []byte) bool {
	base := strings.ToLower(filepath.Base(fileName))
	return base == "dvc.yaml" || base == "dvc.lock"
}

func (p *DVCParser) Parse(ctx context.Context, content []byte, filePath string) *models.Graph {
	logger := ctxlog.FromContext(ctx).With("framework", FrameworkDVC)

	if p.source == nil {
		return failedGraph(filePath, FrameworkDVC, errors.New("dependency tool is not configured"))
	}

	out, err := p.source.Load(ctx, filepath.Dir(filePath))
	if err != nil {
		logger.Warn("Dependency tool unavailable.", "error", err)
		return failedGraph(filePath, FrameworkDVC, fmt.Errorf("dependency tool unavailable: %w", err))
	}
	if out == nil {
		out = &models.ToolOutput{}
	}

	stageFile := out.Stages
	if stageFile == nil && len(strings.TrimSpace(string(content))) > 0 {
		var file models.StageFile
		if err := yaml.Unmarshal(content, &file); err != nil {
			return failedGraph(filePath, FrameworkDVC, fmt.Errorf("parse stage file: %w", err))
		}
		stageFile = &file
	}

	stageToOutputs, stageToDeps := BuildStageMaps(stageFile)
	nodes, artifactByPath := BuildStageAndArtifactNodes(out.Flow, stageToOutputs, stageToDeps, out.Artifacts)
	edges := BuildEdges(out.Flow, nodes, stageToOutputs, stageToDeps, artifactByPath)

	logger.Debug("Stage graph assembled.", "stages", len(nodes)-len(artifactByPath), "artifacts", len(artifactByPath))

	graph := models.NewGraph(filePath, FrameworkDVC)
	graph.Nodes = append(graph.Nodes, nodes...)
	graph.Edges = append(graph.Edges, edges...)
	return graph
}
