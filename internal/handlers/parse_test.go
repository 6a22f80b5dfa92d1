package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pipescope/core/internal/dvctool"
	"github.com/pipescope/core/internal/models"
	"github.com/pipescope/core/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gitlabPipeline = `
stages: [build, test]
compile:
  stage: build
  script: make
unit:
  stage: test
  script: make test
`

const validTfstate = `{
	"version": 4,
	"terraform_version": "1.5.0",
	"serial": 1,
	"lineage": "abc-123",
	"resources": [
		{
			"mode": "managed",
			"type": "aws_s3_bucket",
			"name": "assets",
			"provider": "provider[\"registry.terraform.io/hashicorp/aws\"]",
			"instances": [{"schema_version": 0, "attributes": {"id": "my-bucket"}}]
		}
	]
}`

func newParseHandler() http.HandlerFunc {
	return ParseHandler(parser.NewRegistry(
		parser.NewGitLabParser(),
		parser.NewGitHubParser(),
		parser.NewTerraformParser(),
	), 0)
}

func postParse(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestParseHandler(t *testing.T) {
	t.Run("returns graph for GitLab pipeline", func(t *testing.T) {
		w := postParse(t, newParseHandler(), "/parse?file=.gitlab-ci.yml", gitlabPipeline)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var graph models.Graph
		require.NoError(t, json.NewDecoder(w.Body).Decode(&graph))

		assert.Equal(t, parser.FrameworkGitLabCI, graph.Framework)
		assert.Equal(t, ".gitlab-ci.yml", graph.FilePath)
		require.Len(t, graph.Nodes, 2)
		require.Len(t, graph.Edges, 1)
		assert.Equal(t, "compile", graph.Edges[0].Source)
		assert.Equal(t, "unit", graph.Edges[0].Target)
		require.NotNil(t, graph.Stats)
		assert.Equal(t, 2, graph.Stats.TotalNodes)
	})

	t.Run("returns graph for Terraform state", func(t *testing.T) {
		w := postParse(t, newParseHandler(), "/parse?file=terraform.tfstate", validTfstate)

		require.Equal(t, http.StatusOK, w.Code)

		var graph models.Graph
		require.NoError(t, json.NewDecoder(w.Body).Decode(&graph))

		require.Len(t, graph.Nodes, 1)
		assert.Equal(t, "aws_s3_bucket.assets", graph.Nodes[0].ID)
		assert.Equal(t, "aws_s3_bucket", graph.Nodes[0].Data["resource_type"])
	})

	t.Run("malformed file yields empty graph with error marker", func(t *testing.T) {
		w := postParse(t, newParseHandler(), "/parse?file=.github/workflows/ci.yml", "jobs: [unclosed")

		require.Equal(t, http.StatusOK, w.Code)

		var graph models.Graph
		require.NoError(t, json.NewDecoder(w.Body).Decode(&graph))

		assert.Empty(t, graph.Nodes)
		assert.Empty(t, graph.Edges)
		assert.NotEmpty(t, graph.Error)
	})

	t.Run("pretty prints when requested", func(t *testing.T) {
		w := postParse(t, newParseHandler(), "/parse?file=.gitlab-ci.yml&pretty=true", gitlabPipeline)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "\n  \"")
	})

	t.Run("returns 400 for unsupported file", func(t *testing.T) {
		w := postParse(t, newParseHandler(), "/parse?file=README.md", "# hello")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unsupported pipeline file")
	})

	t.Run("returns 400 without file parameter", func(t *testing.T) {
		w := postParse(t, newParseHandler(), "/parse", gitlabPipeline)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Missing file parameter")
	})

	t.Run("returns 400 for oversized body", func(t *testing.T) {
		h := ParseHandler(parser.NewRegistry(parser.NewGitLabParser()), 8)

		w := postParse(t, h, "/parse?file=.gitlab-ci.yml", gitlabPipeline)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "exceeds 8 bytes")
	})

	t.Run("returns 405 for GET request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/parse?file=.gitlab-ci.yml", nil)
		w := httptest.NewRecorder()

		newParseHandler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

const dvcStages = `
stages:
  prepare:
    cmd: python prepare.py
    outs:
      - data/prepared.csv
  train:
    cmd: python train.py
    deps:
      - data/prepared.csv
    outs:
      - model.pkl
`

func TestParseHandlerDVC(t *testing.T) {
	t.Run("offline source builds graph from posted content", func(t *testing.T) {
		h := ParseHandler(parser.DefaultRegistry(dvctool.Offline{}), 0)

		w := postParse(t, h, "/parse?file="+url.QueryEscape("/srv/project/dvc.yaml"), dvcStages)
		require.Equal(t, http.StatusOK, w.Code)

		var graph models.Graph
		require.NoError(t, json.NewDecoder(w.Body).Decode(&graph))

		assert.Empty(t, graph.Error)
		assert.Equal(t, parser.FrameworkDVC, graph.Framework)
		assert.Contains(t, nodeIDList(graph), "stage-prepare")
		assert.Contains(t, nodeIDList(graph), "stage-train")
		assert.Contains(t, nodeIDList(graph), "artifact:data/prepared.csv")
	})

	t.Run("project outside root is never executed", func(t *testing.T) {
		root := t.TempDir()
		outside := t.TempDir()

		venvBin := filepath.Join(outside, ".venv", "bin")
		require.NoError(t, os.MkdirAll(venvBin, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(venvBin, "dvc"), []byte("#!/bin/sh\n"), 0o755))

		ran := false
		source := dvctool.New(
			dvctool.WithRoot(root),
			dvctool.WithoutVirtualenv(),
			dvctool.WithLookPath(func(string) (string, error) { return "/usr/bin/dvc", nil }),
			dvctool.WithRunner(func(context.Context, string, string, ...string) ([]byte, error) {
				ran = true
				return nil, nil
			}),
		)
		h := ParseHandler(parser.DefaultRegistry(source), 0)

		target := "/parse?file=" + url.QueryEscape(filepath.Join(outside, "dvc.yaml"))
		w := postParse(t, h, target, dvcStages)
		require.Equal(t, http.StatusOK, w.Code)

		var graph models.Graph
		require.NoError(t, json.NewDecoder(w.Body).Decode(&graph))

		assert.False(t, ran)
		assert.Empty(t, graph.Nodes)
		assert.Contains(t, graph.Error, "outside project root")
	})

	t.Run("project inside root runs the tool", func(t *testing.T) {
		root := t.TempDir()
		project := filepath.Join(root, "project")
		require.NoError(t, os.MkdirAll(project, 0o755))

		var ranIn string
		source := dvctool.New(
			dvctool.WithRoot(root),
			dvctool.WithoutVirtualenv(),
			dvctool.WithLookPath(func(string) (string, error) { return "/usr/bin/dvc", nil }),
			dvctool.WithRunner(func(_ context.Context, dir, _ string, _ ...string) ([]byte, error) {
				ranIn = dir
				return []byte("flowchart TD\n"), nil
			}),
		)
		h := ParseHandler(parser.DefaultRegistry(source), 0)

		target := "/parse?file=" + url.QueryEscape(filepath.Join(project, "dvc.yaml"))
		w := postParse(t, h, target, dvcStages)
		require.Equal(t, http.StatusOK, w.Code)

		resolved, err := filepath.EvalSymlinks(project)
		require.NoError(t, err)
		assert.Equal(t, resolved, ranIn)
	})
}

func nodeIDList(g models.Graph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
