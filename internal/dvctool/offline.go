package dvctool

import (
	"context"

	"github.com/pipescope/core/internal/models"
	"github.com/pipescope/core/internal/parser"
)

var _ parser.StageSource = Offline{}

// Offline is a stage source that never runs the dvc executable. It reports
// no flow diagram and no stage metadata, so the DVC parser builds the graph
// from the posted file content alone.
type Offline struct{}

func (Offline) Load(context.Context, string) (*models.ToolOutput, error) {
	return &models.ToolOutput{}, nil
}
