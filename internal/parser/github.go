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

const FrameworkGitHubActions = "github-actions"

// GitHubParser builds one node per workflow job. Dependencies come only from
// each job's needs field.
type GitHubParser struct{}

func NewGitHubParser() *GitHubParser {
	return &GitHubParser{}
}

type githubJob struct {
	Name   string    `yaml:"name"`
	RunsOn any       `yaml:"runs-on"`
	Uses   string    `yaml:"uses"`
	Needs  yaml.Node `yaml:"needs"`
}

func (p *GitHubParser) Framework() string {
	return FrameworkGitHubActions
}

func (p *GitHubParser) CanParse(fileName string, content []byte) bool {
	if !isYAMLFile(fileName) {
		return false
	}
	if strings.Contains(filepath.ToSlash(fileName), ".github/workflows/") {
		return true
	}

	root, err := decodeDocument(content)
	if err != nil {
		return false
	}
	return lookupKey(root, "on") != nil && lookupKey(root, "jobs") != nil
}

func (p *GitHubParser) Parse(ctx context.Context, content []byte, filePath string) *models.Graph {
	logger := ctxlog.FromContext(ctx).With("framework", FrameworkGitHubActions)

	root, err := decodeDocument(content)
	if err != nil {
		return failedGraph(filePath, FrameworkGitHubActions, fmt.Errorf("parse workflow: %w", err))
	}

	jobsNode := lookupKey(root, "jobs")
	if jobsNode == nil {
		return models.NewGraph(filePath, FrameworkGitHubActions)
	}
	if jobsNode.Kind != yaml.MappingNode {
		return failedGraph(filePath, FrameworkGitHubActions, errors.New("parse workflow: jobs is not a mapping"))
	}

	graph := models.NewGraph(filePath, FrameworkGitHubActions)
	needsByJob := make(map[string][]string)
	known := make(map[string]bool)

	for _, pair := range mappingPairs(jobsNode) {
		var job githubJob
		if err := pair.Value.Decode(&job); err != nil {
			return failedGraph(filePath, FrameworkGitHubActions, fmt.Errorf("parse job %q: %w", pair.Key, err))
		}

		data := map[string]any{}
		if job.Name != "" {
			data["name"] = job.Name
		}
		if job.RunsOn != nil {
			data["runs-on"] = job.RunsOn
		}
		if job.Uses != "" {
			data["uses"] = job.Uses
		}

		label := job.Name
		if label == "" {
			label = pair.Key
		}

		graph.Nodes = append(graph.Nodes, models.Node{
			ID:     pair.Key,
			Label:  label,
			Type:   models.NodeTypeDefault,
			Status: models.StatusIdle,
			Data:   data,
		})
		known[pair.Key] = true
		needsByJob[pair.Key], _ = parseNeeds(job.Needs)
	}

	for _, node := range graph.Nodes {
		for _, need := range needsByJob[node.ID] {
			if !known[need] {
				logger.Debug("Dropping needs reference to unknown job.", "job", node.ID, "needs", need)
				continue
			}
			graph.Edges = append(graph.Edges, models.Edge{
				ID:     fmt.Sprintf("e-%s-%s", need, node.ID),
				Source: need,
				Target: node.ID,
			})
		}
	}

	return graph
}
