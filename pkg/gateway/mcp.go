package gateway

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer builds the MCP server exposing the controller's two tools.
// The caller picks the transport (stdio or HTTP).
func NewMCPServer(c *Controller, name, version string) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(false),
	)

	queryTool := mcp.NewTool("query_personal_memory",
		mcp.WithDescription("Retrieve privacy-sanitized personal memory for a topic. "+
			"Returns sanitized context, NO_CONTEXT_FOUND when nothing matches, or "+
			"NO_CONTEXT when the content is blocked pending consent."),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Natural-language topic or question to search memory for"),
		),
	)
	s.AddTool(queryTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcp.NewToolResultError("'topic' parameter is required"), nil
		}
		return mcp.NewToolResultText(c.QueryPersonalMemory(ctx, topic)), nil
	})

	saveTool := mcp.NewTool("save_memory",
		mcp.WithDescription("Save a personal fact to memory."),
		mcp.WithString("fact",
			mcp.Required(),
			mcp.Description("The fact to remember"),
		),
		mcp.WithString("category",
			mcp.Description("Optional category label (default: general)"),
		),
	)
	s.AddTool(saveTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fact := req.GetString("fact", "")
		category := req.GetString("category", "")
		return mcp.NewToolResultText(c.SaveMemory(ctx, fact, category)), nil
	})

	return s
}

// ServeStdio runs the MCP server over stdio until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
