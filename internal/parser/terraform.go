package parser

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pipescope/core/internal/models"
)

type terraformDep struct {
	address  string
	edgeType string
}

func BuildTerraformGraph(state *models.TerraformState) *models.Graph {
	graph := models.NewGraph("", FrameworkTerraform)
	nodeMap := make(map[string]bool)
	depsByNode := make(map[string][]terraformDep)

	for _, res := range state.Resources {
		for i, instance := range res.Instances {
			nodeID := buildNodeID(res, instance, i)

			if nodeMap[nodeID] {
				continue
			}

			graph.Nodes = append(graph.Nodes, models.Node{
				ID:     nodeID,
				Label:  nodeID,
				Type:   models.NodeTypeDefault,
				Status: models.StatusIdle,
				Data:   buildMetadata(res, instance),
			})
			nodeMap[nodeID] = true
			depsByNode[nodeID] = collectDependencies(res.DependsOn, instance.Dependencies)
		}
	}

	for _, node := range graph.Nodes {
		for _, dep := range depsByNode[node.ID] {
			for _, source := range resolveAddress(dep.address, graph.Nodes, nodeMap) {
				if source == node.ID {
					continue
				}
				graph.Edges = append(graph.Edges, models.Edge{
					ID:     fmt.Sprintf("e-%s-%s-%s", source, dep.edgeType, node.ID),
					Source: source,
					Target: node.ID,
					Label:  dep.edgeType,
				})
			}
		}
	}

	return graph
}

func buildNodeID(res models.ResourceState, instance models.ResourceInstance, instanceIndex int) string {
	parts := []string{}

	if res.Module != "" {
		parts = append(parts, res.Module)
	}
	if res.Mode == "data" {
		parts = append(parts, "data")
	}

	parts = append(parts, res.Type, res.Name)
	id := strings.Join(parts, ".")

	if len(res.Instances) > 1 || instance.IndexKey != nil {
		key := instance.IndexKey
		if key != nil {
			val := reflect.ValueOf(key)
			if val.Kind() == reflect.Ptr && !val.IsNil() {
				val = val.Elem()
			}
			if s, ok := val.Interface().(string); ok {
				return fmt.Sprintf("%s[%q]", id, s)
			}
			return fmt.Sprintf("%s[%v]", id, val.Interface())
		}
		return fmt.Sprintf("%s[%d]", id, instanceIndex)
	}

	return id
}

func extractProviderName(providerString string) string {
	providerString = strings.TrimPrefix(providerString, "provider[\"")
	providerString = strings.TrimSuffix(providerString, "\"]")

	parts := strings.Split(providerString, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}

	return providerString
}

func buildMetadata(res models.ResourceState, instance models.ResourceInstance) map[string]any {
	metadata := map[string]any{
		"mode":          res.Mode,
		"resource_type": res.Type,
		"provider":      extractProviderName(res.Provider),
	}

	if res.Module != "" {
		metadata["module"] = res.Module
	}

	for _, key := range []string{"id", "name", "arn"} {
		if v, ok := instance.Attributes[key]; ok {
			metadata[key] = v
		}
	}

	if tags, ok := instance.Attributes["tags"].(map[string]any); ok {
		metadata["tags"] = tags
	}

	if instance.IndexKey != nil {
		metadata["index_key"] = instance.IndexKey
	}

	return metadata
}

// collectDependencies merges explicit depends_on entries with the implicit
// instance dependencies, explicit first, each list sorted.
func collectDependencies(explicit, implicit []string) []terraformDep {
	seen := make(map[string]bool)
	var deps []terraformDep

	add := func(list []string, edgeType string) {
		sorted := append([]string(nil), list...)
		sort.Strings(sorted)
		for _, dep := range sorted {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			deps = append(deps, terraformDep{address: dep, edgeType: edgeType})
		}
	}

	add(explicit, "depends_on")
	add(implicit, "implicit")
	return deps
}

// resolveAddress maps a dependency address to node ids. An address without
// an index refers to every instance of a counted resource. Unknown addresses
// resolve to nothing.
func resolveAddress(address string, nodes []models.Node, nodeMap map[string]bool) []string {
	if nodeMap[address] {
		return []string{address}
	}

	var ids []string
	for _, n := range nodes {
		if strings.HasPrefix(n.ID, address+"[") {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
