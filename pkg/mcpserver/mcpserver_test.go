package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillcortex/pkg/index"
	"github.com/jingkaihe/skillcortex/pkg/query"
	"github.com/jingkaihe/skillcortex/pkg/scanner"
	"github.com/jingkaihe/skillcortex/pkg/tags"
	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()

	writeSkill := func(relDir, name, description string, skillTags string) {
		dir := filepath.Join(root, filepath.FromSlash(relDir))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		content := "---\nname: " + name + "\ndescription: " + description + "\n"
		if skillTags != "" {
			content += "tags: [" + skillTags + "]\n"
		}
		content += "---\nInstructions for " + name + ".\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, skilltypes.SkillFileName), []byte(content), 0o644))
	}
	writeSkill("db/postgres/tune-queries", "tune-queries", "Tune slow Postgres queries", "db")
	writeSkill("db/backup", "backup", "Back up databases", "")

	sc, err := scanner.New([]string{root})
	require.NoError(t, err)
	registry, err := tags.Load(filepath.Join(t.TempDir(), "tags.yaml"))
	require.NoError(t, err)
	require.NoError(t, registry.Add("db", "Database work"))

	store := index.NewStore(sc, registry, index.NewJSONCacheStore(filepath.Join(t.TempDir(), "index.json")))
	t.Cleanup(func() { store.Close() })
	_, err = store.Load(context.Background())
	require.NoError(t, err)

	return New(store, query.NewEngine(store), registry)
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	return request
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, target interface{}) {
	t.Helper()
	require.False(t, result.IsError)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), target))
}

func TestHandleRebuild(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleRebuild(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var output rebuildOutput
	decodeResult(t, result, &output)
	require.NotNil(t, output.Stats)
	assert.Equal(t, 2, output.Stats.Scanned)
	assert.Empty(t, output.Error)
}

func TestHandleListTree(t *testing.T) {
	s := newTestServer(t)

	t.Run("full tree", func(t *testing.T) {
		result, err := s.handleListTree(context.Background(), callRequest(nil))
		require.NoError(t, err)

		var node skilltypes.TreeNode
		decodeResult(t, result, &node)
		require.Len(t, node.Children, 1)
		assert.Equal(t, "db", node.Children[0].Name)
	})

	t.Run("subtree", func(t *testing.T) {
		result, err := s.handleListTree(context.Background(), callRequest(map[string]interface{}{
			"path": "db/postgres",
		}))
		require.NoError(t, err)

		var node skilltypes.TreeNode
		decodeResult(t, result, &node)
		assert.Equal(t, "postgres", node.Name)
		require.Len(t, node.Skills, 1)
		assert.Equal(t, "db/postgres/tune-queries", node.Skills[0].ID)
	})
}

func TestHandleSearch(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleSearch(context.Background(), callRequest(map[string]interface{}{
		"query": "postgres",
		"tags":  []interface{}{"db"},
	}))
	require.NoError(t, err)

	var output struct {
		Count   int                  `json:"count"`
		Results []skilltypes.Summary `json:"results"`
	}
	decodeResult(t, result, &output)
	require.Equal(t, 1, output.Count)
	assert.Equal(t, "db/postgres/tune-queries", output.Results[0].ID)
}

func TestHandleDetails(t *testing.T) {
	s := newTestServer(t)

	t.Run("found", func(t *testing.T) {
		result, err := s.handleDetails(context.Background(), callRequest(map[string]interface{}{
			"skill_id": "db/backup",
		}))
		require.NoError(t, err)

		var entry skilltypes.Entry
		decodeResult(t, result, &entry)
		assert.Equal(t, "backup", entry.Name)
		assert.Contains(t, entry.Body, "Instructions for backup.")
	})

	t.Run("not found", func(t *testing.T) {
		result, err := s.handleDetails(context.Background(), callRequest(map[string]interface{}{
			"skill_id": "nope",
		}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "not found")
	})
}

func TestHandleListTags(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleListTags(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var output listTagsOutput
	decodeResult(t, result, &output)
	require.Len(t, output.Tags, 1)
	assert.Equal(t, "db", output.Tags[0].Name)

	// db/backup has no tags, so it shows up under issues.
	require.Len(t, output.Issues, 1)
	assert.Equal(t, "db/backup", output.Issues[0].ID)
	assert.Equal(t, []string{"missing_tags"}, output.Issues[0].TagIssues)
}

func TestHandleApplyTags(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleApplyTags(context.Background(), callRequest(map[string]interface{}{
		"updates": []interface{}{
			map[string]interface{}{"skillId": "db/backup", "tags": []interface{}{"db"}},
		},
	}))
	require.NoError(t, err)

	var output struct {
		Results []index.TagUpdateResult `json:"results"`
		Error   string                  `json:"error"`
	}
	decodeResult(t, result, &output)
	require.Len(t, output.Results, 1)
	assert.Empty(t, output.Error)
	assert.Equal(t, []string{"db"}, output.Results[0].Tags)

	entry, ok := s.store.Snapshot().Get("db/backup")
	require.True(t, ok)
	assert.Equal(t, []string{"db"}, entry.Tags)
	assert.Empty(t, entry.TagIssues)
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema[detailsInput]()
	raw, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "skill_id")
	assert.Contains(t, string(raw), `"additionalProperties":false`)
}
