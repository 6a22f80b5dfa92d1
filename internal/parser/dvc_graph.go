package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pipescope/core/internal/models"
)

// StagePaths maps a stage name to its paths in declaration order.
type StagePaths map[string][]models.PathEntry

// BuildStageMaps extracts outputs and dependencies per stage. A nil file
// yields empty maps.
func BuildStageMaps(file *models.StageFile) (stageToOutputs, stageToDeps StagePaths) {
	stageToOutputs = make(StagePaths)
	stageToDeps = make(StagePaths)
	if file == nil {
		return stageToOutputs, stageToDeps
	}

	for name, stage := range file.Stages {
		stageToOutputs[name] = normalizeEntries(stage.Outputs())
		stageToDeps[name] = normalizeEntries(stage.Deps)
	}
	return stageToOutputs, stageToDeps
}

func normalizeEntries(entries []models.PathEntry) []models.PathEntry {
	out := make([]models.PathEntry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Path) == "" {
			continue
		}
		p, dir := normalizeArtifactPath(e.Path)
		out = append(out, models.PathEntry{Path: p, MD5: e.MD5, IsDir: e.IsDir || dir})
	}
	return out
}

func stageNodeID(name string) string {
	return "stage-" + name
}

func artifactNodeID(p string) string {
	return "artifact:" + p
}

func edgeID(source, target string) string {
	return fmt.Sprintf("e-%s-%s", source, target)
}

// BuildStageAndArtifactNodes creates one node per stage of the flow diagram,
// a synthesized node for each stage that only appears in the metadata, and
// one artifact node per distinct output path. The returned map resolves an
// output path to its artifact node.
func BuildStageAndArtifactNodes(flowText string, stageToOutputs, stageToDeps StagePaths, extra map[string]models.ArtifactMeta) ([]models.Node, map[string]models.Node) {
	diagram := ParseFlow(flowText)

	var stages []models.Node
	seenStage := make(map[string]bool)
	for _, fn := range diagram.Nodes {
		stages = append(stages, models.Node{
			ID:     fn.ID,
			Label:  fn.Label,
			Type:   models.NodeTypeDefault,
			Status: models.StatusIdle,
			Data:   map[string]any{"stage": fn.Label},
		})
		seenStage[fn.Label] = true
	}

	var missing []string
	for _, paths := range []StagePaths{stageToOutputs, stageToDeps} {
		for name := range paths {
			if !seenStage[name] {
				seenStage[name] = true
				missing = append(missing, name)
			}
		}
	}
	sort.Strings(missing)
	for _, name := range missing {
		stages = append(stages, models.Node{
			ID:     stageNodeID(name),
			Label:  name,
			Type:   models.NodeTypeDefault,
			Status: models.StatusIdle,
			Data:   map[string]any{"stage": name},
		})
	}

	meta := make(map[string]models.ArtifactMeta, len(extra))
	for p, m := range extra {
		normalized, _ := normalizeArtifactPath(p)
		meta[normalized] = m
	}

	nodes := append([]models.Node(nil), stages...)
	artifactByPath := make(map[string]models.Node)
	for _, stage := range stages {
		for _, out := range stageToOutputs[stage.Label] {
			if _, exists := artifactByPath[out.Path]; exists {
				continue
			}
			kind := ClassifyArtifact(out.Path, out.IsDir, meta[out.Path])
			artifact := models.Node{
				ID:     artifactNodeID(out.Path),
				Label:  out.Path,
				Type:   models.NodeTypeArtifact,
				Status: models.StatusIdle,
				Data: map[string]any{
					"path":  out.Path,
					"kind":  string(kind),
					"stage": stage.Label,
				},
			}
			nodes = append(nodes, artifact)
			artifactByPath[out.Path] = artifact
		}
	}

	return nodes, artifactByPath
}

// BuildEdges links stages through the artifacts they exchange. Each stage
// points to its outputs; each dependency that resolves to a known artifact
// (or lies inside a folder artifact) points to the consuming stage. A flow
// edge between two stages is kept as a direct edge only when no artifact
// already connects them.
func BuildEdges(flowText string, nodes []models.Node, stageToOutputs, stageToDeps StagePaths, artifactByPath map[string]models.Node) []models.Edge {
	edges := make([]models.Edge, 0)
	seen := make(map[string]bool)
	add := func(source, target string) {
		id := edgeID(source, target)
		if seen[id] {
			return
		}
		seen[id] = true
		edges = append(edges, models.Edge{ID: id, Source: source, Target: target})
	}

	stageIDs := make(map[string]bool)
	stageIDByName := make(map[string]string)
	for _, n := range nodes {
		if n.Type == models.NodeTypeArtifact {
			continue
		}
		stageIDs[n.ID] = true
		if _, ok := stageIDByName[n.Label]; !ok {
			stageIDByName[n.Label] = n.ID
		}
	}

	linked := make(map[[2]string]bool)
	for _, n := range nodes {
		if n.Type == models.NodeTypeArtifact {
			continue
		}

		for _, out := range stageToOutputs[n.Label] {
			artifact, ok := artifactByPath[out.Path]
			if !ok || artifact.Data["stage"] != n.Label {
				continue
			}
			add(n.ID, artifact.ID)
		}

		for _, dep := range stageToDeps[n.Label] {
			artifact, ok := resolveArtifact(dep.Path, artifactByPath)
			if !ok {
				continue
			}
			producer, _ := artifact.Data["stage"].(string)
			if producer == n.Label {
				continue
			}
			add(artifact.ID, n.ID)
			if producerID, ok := stageIDByName[producer]; ok {
				linked[[2]string{producerID, n.ID}] = true
			}
		}
	}

	for _, fe := range ParseFlow(flowText).Edges {
		if !stageIDs[fe.Source] || !stageIDs[fe.Target] {
			continue
		}
		if linked[[2]string{fe.Source, fe.Target}] {
			continue
		}
		add(fe.Source, fe.Target)
	}

	return edges
}

// resolveArtifact finds the artifact for p, falling back to the deepest
// folder artifact that contains it.
func resolveArtifact(p string, artifactByPath map[string]models.Node) (models.Node, bool) {
	if artifact, ok := artifactByPath[p]; ok {
		return artifact, true
	}
	for dir := parentDir(p); dir != ""; dir = parentDir(dir) {
		artifact, ok := artifactByPath[dir]
		if ok && artifact.Data["kind"] == string(ArtifactFolder) {
			return artifact, true
		}
	}
	return models.Node{}, false
}

func parentDir(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return ""
	}
	return p[:i]
}
