package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pipescope/core/internal/models"
)

const FrameworkTerraform = "terraform"

func ParseTfstate(data []byte) (*models.TerraformState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty tfstate data")
	}

	var state models.TerraformState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tfstate: %w", err)
	}

	if state.Version == 0 {
		return nil, fmt.Errorf("invalid tfstate: missing version field")
	}

	if state.TerraformVersion == "" {
		return nil, fmt.Errorf("invalid tfstate: missing terraform_version field")
	}

	return &state, nil
}

// TerraformParser builds a resource graph from a Terraform state file. Edges
// point from a dependency to the resource that depends on it.
type TerraformParser struct{}

func NewTerraformParser() *TerraformParser {
	return &TerraformParser{}
}

func (p *TerraformParser) Framework() string {
	return FrameworkTerraform
}

func (p *TerraformParser) CanParse(fileName string, content []byte) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".tfstate":
		return true
	case ".json":
		return bytes.Contains(content, []byte(`"terraform_version"`))
	}
	return false
}

func (p *TerraformParser) Parse(_ context.Context, content []byte, filePath string) *models.Graph {
	state, err := ParseTfstate(content)
	if err != nil {
		return failedGraph(filePath, FrameworkTerraform, err)
	}

	graph := BuildTerraformGraph(state)
	graph.FilePath = filePath
	return graph
}
