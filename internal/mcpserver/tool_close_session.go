package mcpserver

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type closeSessionArguments struct {
	SessionID string `zog:"sessionId"`
	Save      bool   `zog:"save"`
}

var closeSessionArgumentsSchema = z.Struct(z.Shape{
	"sessionId": z.String().Required(),
	"save":      z.Bool(),
})

func addCloseSessionTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_close_session",
		mcp.WithDescription("Close an automation session, optionally saving the workbook first"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id returned by excel_create_session"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Save the workbook before closing"),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := closeSessionArguments{}
		if issues := closeSessionArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		return forward(ctx, c, "session.close", args.SessionID, map[string]any{
			"save": args.Save,
		})
	}))
}
