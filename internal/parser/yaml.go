package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type yamlPair struct {
	Key   string
	Value *yaml.Node
}

// decodeDocument parses content and returns its top-level mapping node.
func decodeDocument(content []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}
	root := resolveAlias(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("top-level value is not a mapping")
	}
	return root, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// mappingPairs returns the entries of a mapping node in document order.
// Merge keys are skipped.
func mappingPairs(n *yaml.Node) []yamlPair {
	n = resolveAlias(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	pairs := make([]yamlPair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if key == "<<" {
			continue
		}
		pairs = append(pairs, yamlPair{Key: key, Value: resolveAlias(n.Content[i+1])})
	}
	return pairs
}

func lookupKey(n *yaml.Node, key string) *yaml.Node {
	for _, pair := range mappingPairs(n) {
		if pair.Key == key {
			return pair.Value
		}
	}
	return nil
}

// scalarList reads a scalar or a sequence of scalars.
func scalarList(n *yaml.Node) []string {
	n = resolveAlias(n)
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" || n.Value == "" {
			return nil
		}
		return []string{n.Value}
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			item = resolveAlias(item)
			if item.Kind == yaml.ScalarNode && item.Value != "" {
				out = append(out, item.Value)
			}
		}
		return out
	}
	return nil
}

// parseNeeds reads a needs field: a job name, or a list of job names and
// {job: name} objects. declared is false only when the field is absent.
func parseNeeds(n yaml.Node) (names []string, declared bool) {
	if n.Kind == 0 {
		return nil, false
	}
	node := resolveAlias(&n)

	switch node.Kind {
	case yaml.ScalarNode:
		return scalarList(node), true
	case yaml.SequenceNode:
		for _, item := range node.Content {
			item = resolveAlias(item)
			switch item.Kind {
			case yaml.ScalarNode:
				if item.Value != "" {
					names = append(names, item.Value)
				}
			case yaml.MappingNode:
				if job := lookupKey(item, "job"); job != nil && job.Kind == yaml.ScalarNode && job.Value != "" {
					names = append(names, job.Value)
				}
			}
		}
	case yaml.MappingNode:
		if job := lookupKey(node, "job"); job != nil && job.Kind == yaml.ScalarNode && job.Value != "" {
			names = append(names, job.Value)
		}
	}
	return names, true
}

func isYAMLFile(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}
