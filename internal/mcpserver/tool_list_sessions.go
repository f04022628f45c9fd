package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

func addListSessionsTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_list_sessions",
		mcp.WithDescription("List all active automation sessions with their workbook paths"),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return forward(ctx, c, "session.list", "", nil)
	}))
}
