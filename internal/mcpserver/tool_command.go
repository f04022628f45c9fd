package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
	"github.com/codefionn/exceld/internal/protocol"
)

type commandArguments struct {
	Command   string `zog:"command"`
	SessionID string `zog:"sessionId"`
	Args      string `zog:"args"`
}

var commandArgumentsSchema = z.Struct(z.Shape{
	"command":   z.String().Required(),
	"sessionId": z.String(),
	"args":      z.String(),
})

// The generic passthrough keeps the full daemon vocabulary reachable from
// MCP clients without one wrapper tool per action.
func addCommandTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_command",
		mcp.WithDescription("Send any daemon command, like 'sheet.rename' or 'namedrange.list'. Covers actions without a dedicated tool."),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Dot-separated category.action, like range.merge"),
		),
		mcp.WithString("sessionId",
			mcp.Description("Session id for session-scoped categories"),
		),
		mcp.WithString("args",
			mcp.Description("JSON object with the action's arguments"),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := commandArguments{}
		if issues := commandArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		req := &protocol.Request{Command: args.Command, SessionID: args.SessionID}
		if args.Args != "" {
			if !json.Valid([]byte(args.Args)) {
				return mcp.NewToolResultError(fmt.Sprintf("args is not valid JSON: %s", args.Args)), nil
			}
			req.Args = json.RawMessage(args.Args)
		}
		resp, err := c.Send(ctx, req)
		if err != nil {
			return nil, err
		}
		return renderResponse(resp), nil
	}))
}
