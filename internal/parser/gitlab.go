package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pipescope/core/internal/ctxlog"
	"github.com/pipescope/core/internal/models"
	"gopkg.in/yaml.v3"
)

const FrameworkGitLabCI = "gitlab-ci"

const defaultGitLabStage = "test"

var defaultGitLabStages = []string{".pre", "build", "test", "deploy", ".post"}

// reservedGitLabKeys are top-level keywords that never define a job.
var reservedGitLabKeys = map[string]bool{
	"image":         true,
	"services":      true,
	"stages":        true,
	"types":         true,
	"variables":     true,
	"cache":         true,
	"before_script": true,
	"after_script":  true,
	"include":       true,
	"default":       true,
	"workflow":      true,
}

// GitLabParser builds one node per job and infers dependencies from needs
// and, for jobs without needs, from stage order.
type GitLabParser struct{}

func NewGitLabParser() *GitLabParser {
	return &GitLabParser{}
}

type gitlabJob struct {
	Stage   string    `yaml:"stage"`
	Extends yaml.Node `yaml:"extends"`
	Needs   yaml.Node `yaml:"needs"`
}

type gitlabJobInfo struct {
	name          string
	stage         string
	needs         []string
	needsDeclared bool
}

func (p *GitLabParser) Framework() string {
	return FrameworkGitLabCI
}

func (p *GitLabParser) CanParse(fileName string, _ []byte) bool {
	base := strings.ToLower(filepath.Base(fileName))
	return base == ".gitlab-ci.yml" || base == ".gitlab-ci.yaml"
}

func (p *GitLabParser) Parse(ctx context.Context, content []byte, filePath string) *models.Graph {
	logger := ctxlog.FromContext(ctx).With("framework", FrameworkGitLabCI)

	root, err := decodeDocument(content)
	if err != nil {
		return failedGraph(filePath, FrameworkGitLabCI, fmt.Errorf("parse pipeline: %w", err))
	}

	templates := make(map[string]gitlabJob)
	var jobs []gitlabJobInfo

	for _, pair := range mappingPairs(root) {
		if reservedGitLabKeys[pair.Key] || pair.Value == nil || pair.Value.Kind != yaml.MappingNode {
			continue
		}
		var job gitlabJob
		if err := pair.Value.Decode(&job); err != nil {
			return failedGraph(filePath, FrameworkGitLabCI, fmt.Errorf("parse job %q: %w", pair.Key, err))
		}
		templates[pair.Key] = job
		if strings.HasPrefix(pair.Key, ".") {
			continue
		}
		jobs = append(jobs, gitlabJobInfo{name: pair.Key})
	}

	for i := range jobs {
		resolved := resolveGitLabJob(jobs[i].name, templates, map[string]bool{})
		jobs[i].stage = resolved.Stage
		if jobs[i].stage == "" {
			jobs[i].stage = defaultGitLabStage
		}
		jobs[i].needs, jobs[i].needsDeclared = parseNeeds(resolved.Needs)
	}

	stages := gitlabStages(scalarList(lookupKey(root, "stages")), jobs)
	stageIndex := make(map[string]int, len(stages))
	for i, s := range stages {
		stageIndex[s] = i
	}

	graph := models.NewGraph(filePath, FrameworkGitLabCI)
	known := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		graph.Nodes = append(graph.Nodes, models.Node{
			ID:     job.name,
			Label:  job.name,
			Type:   models.NodeTypeDefault,
			Status: models.StatusIdle,
			Data: map[string]any{
				"stage":          job.stage,
				"needs_declared": job.needsDeclared,
			},
		})
		known[job.name] = true
	}

	for _, job := range jobs {
		if job.needsDeclared {
			graph.Edges = append(graph.Edges, explicitGitLabEdges(job, known, logger.Debug)...)
			continue
		}
		graph.Edges = append(graph.Edges, implicitGitLabEdges(job, jobs, stages, stageIndex)...)
	}

	return graph
}

// resolveGitLabJob fills stage and needs from the extends chain when the job
// does not set them itself.
func resolveGitLabJob(name string, templates map[string]gitlabJob, seen map[string]bool) gitlabJob {
	job, ok := templates[name]
	if !ok || seen[name] {
		return gitlabJob{}
	}
	seen[name] = true

	for _, parent := range scalarList(&job.Extends) {
		inherited := resolveGitLabJob(parent, templates, seen)
		if job.Stage == "" {
			job.Stage = inherited.Stage
		}
		if job.Needs.Kind == 0 {
			job.Needs = inherited.Needs
		}
	}
	return job
}

// gitlabStages returns the declared stage order with .pre first and .post
// last. Job stages missing from the list are appended in first-seen order.
func gitlabStages(declared []string, jobs []gitlabJobInfo) []string {
	if len(declared) == 0 {
		declared = defaultGitLabStages
	}

	stages := make([]string, 0, len(declared)+2)
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			stages = append(stages, s)
		}
	}

	add(".pre")
	for _, s := range declared {
		if s != ".post" {
			add(s)
		}
	}
	for _, job := range jobs {
		if job.stage != ".post" {
			add(job.stage)
		}
	}
	add(".post")

	return stages
}

func explicitGitLabEdges(job gitlabJobInfo, known map[string]bool, debug func(string, ...any)) []models.Edge {
	var edges []models.Edge
	for _, need := range job.needs {
		if !known[need] {
			debug("Dropping needs reference to unknown job.", "job", job.name, "needs", need)
			continue
		}
		edges = append(edges, models.Edge{
			ID:     fmt.Sprintf("e-%s-needs-%s", need, job.name),
			Source: need,
			Target: job.name,
		})
	}
	return edges
}

// implicitGitLabEdges links every job of every earlier stage to job, whether
// or not the stages in between have jobs.
func implicitGitLabEdges(job gitlabJobInfo, jobs []gitlabJobInfo, stages []string, stageIndex map[string]int) []models.Edge {
	var edges []models.Edge
	own := stageIndex[job.stage]
	for _, stage := range stages[:own] {
		for _, other := range jobs {
			if other.stage != stage {
				continue
			}
			edges = append(edges, models.Edge{
				ID:     fmt.Sprintf("e-%s-%s-%s", other.name, other.stage, job.name),
				Source: other.name,
				Target: job.name,
			})
		}
	}
	return edges
}
