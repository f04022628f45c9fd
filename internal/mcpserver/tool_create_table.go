package mcpserver

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type createTableArguments struct {
	SessionID string `zog:"sessionId"`
	Sheet     string `zog:"sheet"`
	Range     string `zog:"range"`
	Name      string `zog:"name"`
}

var createTableArgumentsSchema = z.Struct(z.Shape{
	"sessionId": z.String().Required(),
	"sheet":     z.String().Required(),
	"range":     z.String().Required(),
	"name":      z.String().Required(),
})

func addCreateTableTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_create_table",
		mcp.WithDescription("Create a table over a range; the first row becomes the header"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id returned by excel_create_session"),
		),
		mcp.WithString("sheet",
			mcp.Required(),
			mcp.Description("Worksheet name"),
		),
		mcp.WithString("range",
			mcp.Required(),
			mcp.Description("Table range including the header row, like A1:D20"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Table name, unique within the workbook"),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := createTableArguments{}
		if issues := createTableArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		return forward(ctx, c, "table.create", args.SessionID, map[string]any{
			"sheet": args.Sheet,
			"range": args.Range,
			"name":  args.Name,
		})
	}))
}
