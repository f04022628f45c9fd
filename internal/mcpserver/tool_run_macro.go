package mcpserver

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type runMacroArguments struct {
	SessionID string   `zog:"sessionId"`
	Macro     string   `zog:"macro"`
	Args      []string `zog:"args"`
}

var runMacroArgumentsSchema = z.Struct(z.Shape{
	"sessionId": z.String().Required(),
	"macro":     z.String().Required(),
	"args":      z.Slice(z.String()),
})

func addRunMacroTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_run_macro",
		mcp.WithDescription("Run a VBA macro. Requires the workbook to be open in a live Excel instance."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id returned by excel_create_session"),
		),
		mcp.WithString("macro",
			mcp.Required(),
			mcp.Description("Macro name, like Module1.DoExport"),
		),
		mcp.WithArray("args",
			mcp.Description("String arguments passed to the macro"),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := runMacroArguments{}
		if issues := runMacroArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		return forward(ctx, c, "vba.run-macro", args.SessionID, map[string]any{
			"macro": args.Macro,
			"args":  args.Args,
		})
	}))
}
