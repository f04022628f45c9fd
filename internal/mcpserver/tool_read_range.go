package mcpserver

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type readRangeArguments struct {
	SessionID string `zog:"sessionId"`
	Sheet     string `zog:"sheet"`
	Range     string `zog:"range"`
	Formulas  bool   `zog:"formulas"`
}

var readRangeArgumentsSchema = z.Struct(z.Shape{
	"sessionId": z.String().Required(),
	"sheet":     z.String().Required(),
	"range":     z.String().Required(),
	"formulas":  z.Bool(),
})

func addReadRangeTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_read_range",
		mcp.WithDescription("Read cell values (or formulas) from a range"),
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
			mcp.Description("Cell range like A1:C10"),
		),
		mcp.WithBoolean("formulas",
			mcp.Description("Return formulas instead of display values"),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := readRangeArguments{}
		if issues := readRangeArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		command := "range.get-values"
		if args.Formulas {
			command = "range.get-formulas"
		}
		return forward(ctx, c, command, args.SessionID, map[string]any{
			"sheet": args.Sheet,
			"range": args.Range,
		})
	}))
}
