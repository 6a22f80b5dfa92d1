package parser

import (
	"context"
	"testing"

	"github.com/pipescope/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTfstate(t *testing.T) {
	t.Run("valid state", func(t *testing.T) {
		state, err := ParseTfstate([]byte(`{"version": 4, "terraform_version": "1.5.0", "resources": []}`))

		require.NoError(t, err)
		assert.Equal(t, 4, state.Version)
	})

	t.Run("empty data", func(t *testing.T) {
		_, err := ParseTfstate(nil)

		assert.EqualError(t, err, "empty tfstate data")
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseTfstate([]byte(`{invalid json}`))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal tfstate")
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := ParseTfstate([]byte(`{"terraform_version": "1.5.0"}`))

		assert.EqualError(t, err, "invalid tfstate: missing version field")
	})

	t.Run("missing terraform version", func(t *testing.T) {
		_, err := ParseTfstate([]byte(`{"version": 4}`))

		assert.EqualError(t, err, "invalid tfstate: missing terraform_version field")
	})
}

func TestBuildTerraformGraph(t *testing.T) {
	t.Run("empty state returns empty graph", func(t *testing.T) {
		graph := BuildTerraformGraph(&models.TerraformState{})

		assert.NotNil(t, graph)
		assert.Empty(t, graph.Nodes)
		assert.Empty(t, graph.Edges)
	})

	t.Run("single resource creates single node", func(t *testing.T) {
		state := &models.TerraformState{
			Resources: []models.ResourceState{
				{
					Type:     "aws_s3_bucket",
					Name:     "assets",
					Mode:     "managed",
					Provider: "provider[\"registry.terraform.io/hashicorp/aws\"]",
					Instances: []models.ResourceInstance{
						{Attributes: map[string]any{"id": "my-bucket", "name": "assets-bucket"}},
					},
				},
			},
		}

		graph := BuildTerraformGraph(state)

		require.Len(t, graph.Nodes, 1)
		node := graph.Nodes[0]
		assert.Equal(t, "aws_s3_bucket.assets", node.ID)
		assert.Equal(t, "aws_s3_bucket.assets", node.Label)
		assert.Equal(t, models.StatusIdle, node.Status)
		assert.Equal(t, "aws_s3_bucket", node.Data["resource_type"])
		assert.Equal(t, "aws", node.Data["provider"])
		assert.Equal(t, "my-bucket", node.Data["id"])
		assert.Equal(t, "assets-bucket", node.Data["name"])
		assert.Empty(t, graph.Edges)
	})

	t.Run("resource with module prefix", func(t *testing.T) {
		state := &models.TerraformState{
			Resources: []models.ResourceState{
				{Type: "aws_instance", Name: "web", Mode: "managed", Module: "module.app",
					Instances: []models.ResourceInstance{{}}},
			},
		}

		graph := BuildTerraformGraph(state)

		assert.Equal(t, "module.app.aws_instance.web", graph.Nodes[0].ID)
		assert.Equal(t, "module.app", graph.Nodes[0].Data["module"])
	})

	t.Run("data sources are prefixed", func(t *testing.T) {
		state := &models.TerraformState{
			Resources: []models.ResourceState{
				{Type: "aws_ami", Name: "ubuntu", Mode: "data", Instances: []models.ResourceInstance{{}}},
			},
		}

		graph := BuildTerraformGraph(state)

		assert.Equal(t, "data.aws_ami.ubuntu", graph.Nodes[0].ID)
	})

	t.Run("dependency edges point to the dependent", func(t *testing.T) {
		state := &models.TerraformState{
			Resources: []models.ResourceState{
				{Type: "aws_vpc", Name: "main", Mode: "managed", Instances: []models.ResourceInstance{{}}},
				{
					Type: "aws_subnet", Name: "private", Mode: "managed",
					DependsOn: []string{"aws_vpc.main"},
					Instances: []models.ResourceInstance{{Dependencies: []string{"aws_vpc.main", "aws_iam_role.missing"}}},
				},
			},
		}

		graph := BuildTerraformGraph(state)

		require.Len(t, graph.Edges, 1)
		edge := graph.Edges[0]
		assert.Equal(t, "aws_vpc.main", edge.Source)
		assert.Equal(t, "aws_subnet.private", edge.Target)
		assert.Equal(t, "depends_on", edge.Label)
		assert.Equal(t, "e-aws_vpc.main-depends_on-aws_subnet.private", edge.ID)
	})

	t.Run("counted resources expand dependencies", func(t *testing.T) {
		state := &models.TerraformState{
			Resources: []models.ResourceState{
				{Type: "aws_instance", Name: "web", Mode: "managed", Instances: []models.ResourceInstance{
					{IndexKey: float64(0)}, {IndexKey: float64(1)},
				}},
				{Type: "aws_lb", Name: "front", Mode: "managed", Instances: []models.ResourceInstance{
					{Dependencies: []string{"aws_instance.web"}},
				}},
			},
		}

		graph := BuildTerraformGraph(state)

		assert.Equal(t, []string{"aws_instance.web[0]", "aws_instance.web[1]", "aws_lb.front"}, nodeIDs(graph.Nodes))
		assert.Equal(t, [][2]string{
			{"aws_instance.web[0]", "aws_lb.front"},
			{"aws_instance.web[1]", "aws_lb.front"},
		}, edgePairs(graph.Edges))
		assert.Equal(t, "implicit", graph.Edges[0].Label)
	})

	t.Run("string index keys are quoted", func(t *testing.T) {
		state := &models.TerraformState{
			Resources: []models.ResourceState{
				{Type: "aws_iam_user", Name: "team", Mode: "managed", Instances: []models.ResourceInstance{
					{IndexKey: "alice"},
				}},
			},
		}

		graph := BuildTerraformGraph(state)

		assert.Equal(t, `aws_iam_user.team["alice"]`, graph.Nodes[0].ID)
		assert.Equal(t, "alice", graph.Nodes[0].Data["index_key"])
	})

	t.Run("duplicate nodes are skipped", func(t *testing.T) {
		res := models.ResourceState{Type: "aws_vpc", Name: "main", Instances: []models.ResourceInstance{{}}}
		graph := BuildTerraformGraph(&models.TerraformState{Resources: []models.ResourceState{res, res}})

		assert.Len(t, graph.Nodes, 1)
	})
}

func TestTerraformParser(t *testing.T) {
	p := NewTerraformParser()

	t.Run("can parse", func(t *testing.T) {
		assert.True(t, p.CanParse("prod.tfstate", nil))
		assert.True(t, p.CanParse("state.json", []byte(`{"terraform_version": "1.5.0"}`)))
		assert.False(t, p.CanParse("package.json", []byte(`{"name": "x"}`)))
		assert.False(t, p.CanParse("main.tf", nil))
	})

	t.Run("parse failure sets error marker", func(t *testing.T) {
		graph := p.Parse(context.Background(), []byte(`{"version": 4}`), "prod.tfstate")

		assert.Empty(t, graph.Nodes)
		assert.Equal(t, "prod.tfstate", graph.FilePath)
		assert.Equal(t, FrameworkTerraform, graph.Framework)
		assert.Contains(t, graph.Error, "terraform_version")
	})

	t.Run("parse success", func(t *testing.T) {
		content := `{"version": 4, "terraform_version": "1.5.0", "resources": [
			{"mode": "managed", "type": "aws_vpc", "name": "main", "instances": [{"attributes": {"id": "vpc-1"}}]}
		]}`

		graph := p.Parse(context.Background(), []byte(content), "prod.tfstate")

		assert.Empty(t, graph.Error)
		assert.Equal(t, "prod.tfstate", graph.FilePath)
		assert.Equal(t, []string{"aws_vpc.main"}, nodeIDs(graph.Nodes))
	})
}
