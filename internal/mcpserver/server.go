// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Karta tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/karta-graph/karta/internal/models"
	"github.com/karta-graph/karta/internal/service"
)

// Server wraps the MCP server with Karta tools.
type Server struct {
	mcp *server.MCPServer
	svc *service.Service
}

// New creates a new MCP server with all Karta tools registered.
func New(svc *service.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Karta",
		models.KartaVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Fuzzy search over node names across the whole vault, "+
			"including files not opened yet."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("open_node",
		mcp.WithDescription("Fetch a single node with its attributes."),
		mcp.WithString("handle", mcp.Required(), mcp.Description("Node UUID or vault path (e.g. projects/notes.md)")),
	), s.openNode)

	s.mcp.AddTool(mcp.NewTool("open_context",
		mcp.WithDescription("Open the context around a focal node: the node itself, "+
			"its neighbors, the edges among them, and saved view placements."),
		mcp.WithString("handle", mcp.Required(), mcp.Description("Focal node UUID or vault path")),
	), s.openContext)

	s.mcp.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a node under an existing parent. Filesystem types "+
			"(core/fs/dir, core/fs/file) also create the entry on disk; omitting ntype "+
			"creates a graph-only virtual node. Read the karta://graph-model resource "+
			"or call get_graph_model for the type catalog and naming rules."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Node name (no path separators)")),
		mcp.WithString("parent_path", mcp.Description("Vault path of the parent (empty for the root)")),
		mcp.WithString("ntype", mcp.Description("Node type path, e.g. core/fs/dir (default core/virtual_generic)")),
	), s.createNode)

	s.mcp.AddTool(mcp.NewTool("connect_nodes",
		mcp.WithDescription("Create a user edge between two existing nodes. "+
			"Parent-child containment is system-owned and cannot be created this way."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source node UUID")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target node UUID")),
		mcp.WithString("etype", mcp.Description("Edge type (default base)")),
	), s.connectNodes)

	s.mcp.AddTool(mcp.NewTool("fetch_asset",
		mcp.WithDescription("Fetch a file from an http(s) URL or base64 data URI and "+
			"save it into the vault as an asset node. The write bypasses the undo "+
			"history."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Source URL or data URI")),
		mcp.WithString("parent_path", mcp.Description("Vault directory to save under (default the root)")),
		mcp.WithString("filename", mcp.Description("File name override; the extension decides the node type")),
	), s.fetchAsset)

	s.mcp.AddTool(mcp.NewTool("get_graph_model",
		mcp.WithDescription("Returns the Karta graph model reference: handles, node "+
			"types, naming rules, and edge semantics. Call this before creating nodes."),
	), s.getGraphModel)

	// Resource: graph model reference.
	s.mcp.AddResource(
		mcp.NewResource("karta://graph-model", "Graph Model",
			mcp.WithResourceDescription("Node types, handles, and edge semantics tools operate on."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGraphModelResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, 20, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) openNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := req.RequireString("handle")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.OpenNode(ctx, handle)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(n, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) openContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, err := req.RequireString("handle")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cv, err := s.svc.OpenContext(ctx, handle)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(cv, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	spec := service.CreateNodeRequest{Name: name}
	if v, pErr := req.RequireString("parent_path"); pErr == nil {
		spec.ParentPath = v
	}
	if v, tErr := req.RequireString("ntype"); tErr == nil {
		spec.NType = v
	}

	results, err := s.svc.CreateNodes(ctx, []service.CreateNodeRequest{spec})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := results[0]
	if !res.Created {
		return mcp.NewToolResultText(fmt.Sprintf("already exists: %s (%s)", res.Node.Path, res.Node.UUID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", res.Node.Path, res.Node.UUID)), nil
}

func (s *Server) connectNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawSource, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawTarget, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := uuid.Parse(rawSource)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid source uuid: %s", rawSource)), nil
	}
	target, err := uuid.Parse(rawTarget)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid target uuid: %s", rawTarget)), nil
	}
	spec := service.EdgeRequest{Source: source, Target: target}
	if v, tErr := req.RequireString("etype"); tErr == nil {
		spec.EType = v
	}

	if _, err := s.svc.CreateEdges(ctx, []service.EdgeRequest{spec}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("connected: %s -> %s", source, target)), nil
}

func (s *Server) getGraphModel(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(GraphModelContract), nil
}

func (s *Server) readGraphModelResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "karta://graph-model",
			MIMEType: "text/markdown",
			Text:     GraphModelContract,
		},
	}, nil
}
