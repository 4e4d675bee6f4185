// Package mcpserver exposes the skill index to tool-calling clients
// over the Model Context Protocol. It is the composition point between
// the transport and the engine: every tool handler delegates to the
// index store, query engine, or tag registry and serializes the result
// as JSON text content.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillcortex/pkg/index"
	"github.com/jingkaihe/skillcortex/pkg/logger"
	"github.com/jingkaihe/skillcortex/pkg/query"
	"github.com/jingkaihe/skillcortex/pkg/tags"
	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
	"github.com/jingkaihe/skillcortex/pkg/version"
)

// GenerateSchema reflects a JSON schema from the input struct type.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

const serverInstructions = `skillcortex indexes skill definitions (directories containing a SKILL.md
file) and serves hierarchical browsing, tag-filtered full-text search, and
per-skill detail lookup. Call list_skill_tree or search_skills to find a
skill, then get_skill_details to read its full instructions.`

// Server wires the engine components behind MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	store     *index.Store
	engine    *query.Engine
	registry  *tags.Registry
}

// New builds the MCP server with all tools registered.
func New(store *index.Store, engine *query.Engine, registry *tags.Registry) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"skillcortex",
			version.Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
			server.WithInstructions(serverInstructions),
		),
		store:    store,
		engine:   engine,
		registry: registry,
	}

	s.addTool("rebuild_index",
		"Rescan the skill roots and reconcile the index. Returns rebuild statistics and any validation problems.",
		GenerateSchema[rebuildInput](), s.handleRebuild)
	s.addTool("list_skill_tree",
		"Browse the skill hierarchy. Pass an optional slash-separated path to narrow to a subtree; omit it for the full tree.",
		GenerateSchema[listTreeInput](), s.handleListTree)
	s.addTool("search_skills",
		"Search skills by free-text query (matched against name, description and body) and/or a set of required tags.",
		GenerateSchema[searchInput](), s.handleSearch)
	s.addTool("get_skill_details",
		"Fetch the full definition of one skill by id, including its body.",
		GenerateSchema[detailsInput](), s.handleDetails)
	s.addTool("list_tags",
		"List the allowed tags with their descriptions, plus the skills whose tags need attention.",
		GenerateSchema[listTagsInput](), s.handleListTags)
	s.addTool("apply_tags",
		"Replace the tag sets of one or more skills. Rewrites each skill's SKILL.md frontmatter so the change survives rebuilds.",
		GenerateSchema[applyTagsInput](), s.handleApplyTags)

	return s
}

func (s *Server) addTool(name, description string, schema *jsonschema.Schema, handler server.ToolHandlerFunc) {
	raw, err := json.Marshal(schema)
	if err != nil {
		// Schemas are reflected from static structs; a failure here is
		// a programming error.
		panic(errors.Wrapf(err, "failed to marshal schema for %s", name))
	}
	s.mcpServer.AddTool(mcp.NewToolWithRawSchema(name, description, raw), handler)
}

// ServeStdio runs the server over stdin/stdout until the client
// disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// MCPServer exposes the underlying server for alternative transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

type rebuildInput struct{}

type listTreeInput struct {
	Path string `json:"path,omitempty" jsonschema_description:"Slash-separated path prefix to narrow the tree, e.g. 'db/postgres'"`
}

type searchInput struct {
	Query string   `json:"query,omitempty" jsonschema_description:"Free-text query matched case-insensitively against name, description and body"`
	Tags  []string `json:"tags,omitempty" jsonschema_description:"Tags the skill must all carry"`
}

type detailsInput struct {
	SkillID string `json:"skill_id" jsonschema_description:"Skill id as returned by search or tree listings"`
}

type listTagsInput struct{}

type applyTagsInput struct {
	Updates []index.TagUpdate `json:"updates" jsonschema_description:"Per-skill tag replacements"`
}

type rebuildOutput struct {
	Stats    *skilltypes.RebuildStats `json:"stats"`
	Problems []skilltypes.Problem     `json:"problems,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

type listTagsOutput struct {
	Tags   []tags.Tag           `json:"tags"`
	Issues []skilltypes.Summary `json:"issues,omitempty"`
}

func decodeInput(request mcp.CallToolRequest, target interface{}) error {
	raw, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return errors.Wrap(err, "failed to encode arguments")
	}
	return errors.Wrap(json.Unmarshal(raw, target), "failed to decode arguments")
}

func jsonResult(payload interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode result")
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleRebuild(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.Rebuild(ctx)
	output := rebuildOutput{
		Stats:    stats,
		Problems: s.store.Snapshot().Problems(),
	}
	if err != nil {
		output.Error = err.Error()
	}
	return jsonResult(output)
}

func (s *Server) handleListTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input listTreeInput
	if err := decodeInput(request, &input); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	logger.G(ctx).WithField("path", input.Path).Debug("listing skill tree")
	return jsonResult(s.engine.Tree(input.Path))
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input searchInput
	if err := decodeInput(request, &input); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results := s.engine.Search(input.Query, input.Tags)
	logger.G(ctx).WithFields(map[string]interface{}{
		"query":   input.Query,
		"tags":    input.Tags,
		"results": len(results),
	}).Debug("searched skills")
	return jsonResult(map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleDetails(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input detailsInput
	if err := decodeInput(request, &input); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.engine.Details(input.SkillID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entry)
}

func (s *Server) handleListTags(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	output := listTagsOutput{Tags: s.registry.List()}
	for _, entry := range s.store.Snapshot().Valid() {
		if len(entry.TagIssues) > 0 {
			output.Issues = append(output.Issues, entry.Summarize())
		}
	}
	return jsonResult(output)
}

func (s *Server) handleApplyTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input applyTagsInput
	if err := decodeInput(request, &input); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.store.ApplyTags(ctx, input.Updates)
	payload := map[string]interface{}{"results": results}
	if err != nil {
		payload["error"] = err.Error()
	}
	return jsonResult(payload)
}
