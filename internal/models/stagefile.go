package models

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// StageFile is the stage metadata produced by the dependency tool: either a
// lock file (entries carry a path key) or a stage definition file (entries
// are plain paths or single-key option maps).
type StageFile struct {
	Schema string               `yaml:"schema,omitempty"`
	Stages map[string]StageSpec `yaml:"stages"`
}

type StageSpec struct {
	Cmd     any         `yaml:"cmd,omitempty"`
	Deps    []PathEntry `yaml:"deps,omitempty"`
	Outs    []PathEntry `yaml:"outs,omitempty"`
	Metrics []PathEntry `yaml:"metrics,omitempty"`
	Plots   []PathEntry `yaml:"plots,omitempty"`
}

// Outputs returns outs followed by metrics and plots.
func (s StageSpec) Outputs() []PathEntry {
	out := make([]PathEntry, 0, len(s.Outs)+len(s.Metrics)+len(s.Plots))
	out = append(out, s.Outs...)
	out = append(out, s.Metrics...)
	out = append(out, s.Plots...)
	return out
}

// PathEntry is one dependency or output of a stage.
type PathEntry struct {
	Path  string
	MD5   string
	IsDir bool
}

type lockPathEntry struct {
	Path   string `yaml:"path"`
	MD5    string `yaml:"md5"`
	IsDir  bool   `yaml:"isdir"`
	NFiles int    `yaml:"nfiles"`
	Type   string `yaml:"type"`
}

func (p lockPathEntry) dir() bool {
	return p.IsDir || p.NFiles > 0 || strings.HasSuffix(p.MD5, ".dir") || p.Type == "folder"
}

// UnmarshalYAML accepts "path", {path: p, ...} and {p: {options}}.
func (p *PathEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		p.Path = value.Value
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			if value.Content[i].Value == "path" {
				var entry lockPathEntry
				if err := value.Decode(&entry); err != nil {
					return fmt.Errorf("decode path entry: %w", err)
				}
				*p = PathEntry{Path: entry.Path, MD5: entry.MD5, IsDir: entry.dir()}
				return nil
			}
		}
		if len(value.Content) != 2 {
			return fmt.Errorf("line %d: path entry without a path key", value.Line)
		}
		var opts lockPathEntry
		if value.Content[1].Kind == yaml.MappingNode {
			if err := value.Content[1].Decode(&opts); err != nil {
				return fmt.Errorf("decode options for %q: %w", value.Content[0].Value, err)
			}
		}
		*p = PathEntry{Path: value.Content[0].Value, MD5: opts.MD5, IsDir: opts.dir()}
		return nil
	}
	return fmt.Errorf("line %d: unsupported path entry", value.Line)
}

// ArtifactMeta is extra information about an output path supplied by the
// dependency tool, such as an explicit folder marker.
type ArtifactMeta struct {
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// ToolOutput is what the dependency tool reports for one working directory.
type ToolOutput struct {
	Flow      string
	Stages    *StageFile
	Artifacts map[string]ArtifactMeta
}
