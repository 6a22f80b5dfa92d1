package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/pipescope/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDetect(t *testing.T) {
	reg := DefaultRegistry(nil)

	tests := []struct {
		name      string
		fileName  string
		content   string
		framework string
	}{
		{name: "gitlab", fileName: "repo/.gitlab-ci.yml", framework: FrameworkGitLabCI},
		{name: "github", fileName: ".github/workflows/ci.yml", framework: FrameworkGitHubActions},
		{name: "dvc stage file", fileName: "dvc.yaml", framework: FrameworkDVC},
		{name: "dvc lock", fileName: "ml/dvc.lock", framework: FrameworkDVC},
		{name: "terraform", fileName: "terraform.tfstate", framework: FrameworkTerraform},
		{name: "github by content", fileName: "build.yaml", content: "on: push\njobs: {}\n", framework: FrameworkGitHubActions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := reg.Detect(tt.fileName, []byte(tt.content))

			require.True(t, ok)
			assert.Equal(t, tt.framework, p.Framework())
		})
	}

	t.Run("unknown file", func(t *testing.T) {
		_, ok := reg.Detect("README.md", []byte("# hi"))

		assert.False(t, ok)
	})

	t.Run("frameworks in detection order", func(t *testing.T) {
		assert.Equal(t, []string{FrameworkGitLabCI, FrameworkGitHubActions, FrameworkDVC, FrameworkTerraform}, reg.Frameworks())
	})
}

func TestRegistryParse(t *testing.T) {
	reg := DefaultRegistry(nil)

	t.Run("unsupported file", func(t *testing.T) {
		graph, err := reg.Parse(context.Background(), "notes.txt", []byte("hello"))

		assert.Nil(t, graph)
		assert.True(t, errors.Is(err, ErrUnsupported))
	})

	t.Run("parses and computes stats", func(t *testing.T) {
		content := "on: push\njobs:\n  build: {runs-on: ubuntu-latest}\n  test: {needs: build}\n"

		graph, err := reg.Parse(context.Background(), ".github/workflows/ci.yml", []byte(content))

		require.NoError(t, err)
		require.NotNil(t, graph.Stats)
		assert.Equal(t, 2, graph.Stats.TotalNodes)
		assert.Equal(t, 1, graph.Stats.TotalEdges)
		assert.Equal(t, 2, graph.Stats.NodesByStatus[string(models.StatusIdle)])
	})

	t.Run("parse failures are not errors", func(t *testing.T) {
		graph, err := reg.Parse(context.Background(), ".gitlab-ci.yml", []byte("a: [b"))

		require.NoError(t, err)
		assert.NotEmpty(t, graph.Error)
		assert.Empty(t, graph.Nodes)
	})

	t.Run("custom parser set", func(t *testing.T) {
		custom := NewRegistry(NewTerraformParser())

		_, err := custom.Parse(context.Background(), ".gitlab-ci.yml", nil)

		assert.ErrorIs(t, err, ErrUnsupported)
	})
}
