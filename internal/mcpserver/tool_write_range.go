package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type writeRangeArguments struct {
	SessionID string `zog:"sessionId"`
	Sheet     string `zog:"sheet"`
	StartCell string `zog:"startCell"`
	Values    string `zog:"values"`
}

var writeRangeArgumentsSchema = z.Struct(z.Shape{
	"sessionId": z.String().Required(),
	"sheet":     z.String().Required(),
	"startCell": z.String().Required(),
	"values":    z.String().Required(),
})

func addWriteRangeTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_write_range",
		mcp.WithDescription("Write a 2D block of values starting at a cell"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id returned by excel_create_session"),
		),
		mcp.WithString("sheet",
			mcp.Required(),
			mcp.Description("Worksheet name"),
		),
		mcp.WithString("startCell",
			mcp.Required(),
			mcp.Description("Top-left cell of the target block, like B2"),
		),
		mcp.WithString("values",
			mcp.Required(),
			mcp.Description(`JSON array of rows, like [["Name","Qty"],["Bolts",40]]`),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := writeRangeArguments{}
		if issues := writeRangeArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		var values [][]any
		if err := json.Unmarshal([]byte(args.Values), &values); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("values is not a JSON array of rows: %v", err)), nil
		}
		return forward(ctx, c, "range.set-values", args.SessionID, map[string]any{
			"sheet":     args.Sheet,
			"startCell": args.StartCell,
			"values":    values,
		})
	}))
}
