// Package mcpserver exposes the daemon's command surface as MCP tools over
// stdio. Every tool forwards to the daemon socket, so MCP clients and CLI
// invocations share the same sessions.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

// Server is the MCP stdio front-end
type Server struct {
	server *server.MCPServer
	client *client.Client
}

// New builds the MCP server and registers the tool set
func New(c *client.Client, version string) *Server {
	s := &Server{
		server: server.NewMCPServer("exceld", version),
		client: c,
	}
	addCreateSessionTool(s.server, c)
	addCloseSessionTool(s.server, c)
	addListSessionsTool(s.server, c)
	addDescribeSheetsTool(s.server, c)
	addReadRangeTool(s.server, c)
	addWriteRangeTool(s.server, c)
	addSetFormulaTool(s.server, c)
	addCreateTableTool(s.server, c)
	addAddChartTool(s.server, c)
	addAddPivotTableTool(s.server, c)
	addRunMacroTool(s.server, c)
	addCalculationModeTool(s.server, c)
	addScreenshotTool(s.server, c)
	addCommandTool(s.server, c)
	return s
}

// Start makes sure a daemon is running and serves MCP over stdio until the
// client disconnects.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.EnsureDaemon(ctx); err != nil {
		return err
	}
	return server.ServeStdio(s.server)
}
