package mcpserver

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type addPivotTableArguments struct {
	SessionID   string   `zog:"sessionId"`
	Sheet       string   `zog:"sheet"`
	Name        string   `zog:"name"`
	DataRange   string   `zog:"dataRange"`
	TargetRange string   `zog:"targetRange"`
	Rows        []string `zog:"rows"`
	Columns     []string `zog:"columns"`
	Values      []string `zog:"values"`
	Filters     []string `zog:"filters"`
}

var addPivotTableArgumentsSchema = z.Struct(z.Shape{
	"sessionId":   z.String().Required(),
	"sheet":       z.String().Required(),
	"name":        z.String().Required(),
	"dataRange":   z.String().Required(),
	"targetRange": z.String().Required(),
	"rows":        z.Slice(z.String()),
	"columns":     z.Slice(z.String()),
	"values":      z.Slice(z.String()),
	"filters":     z.Slice(z.String()),
})

func addAddPivotTableTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_add_pivot_table",
		mcp.WithDescription("Create a pivot table from a data range"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id returned by excel_create_session"),
		),
		mcp.WithString("sheet",
			mcp.Required(),
			mcp.Description("Worksheet receiving the pivot table"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Pivot table name"),
		),
		mcp.WithString("dataRange",
			mcp.Required(),
			mcp.Description("Source data range including headers, like Sheet1!A1:D100"),
		),
		mcp.WithString("targetRange",
			mcp.Required(),
			mcp.Description("Range where the pivot table is placed, like F1:K20"),
		),
		mcp.WithArray("rows",
			mcp.Description("Field names used as row labels"),
		),
		mcp.WithArray("columns",
			mcp.Description("Field names used as column labels"),
		),
		mcp.WithArray("values",
			mcp.Description("Field names aggregated as values"),
		),
		mcp.WithArray("filters",
			mcp.Description("Field names used as report filters"),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := addPivotTableArguments{}
		if issues := addPivotTableArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		return forward(ctx, c, "pivottable.create", args.SessionID, map[string]any{
			"sheet":       args.Sheet,
			"name":        args.Name,
			"dataRange":   args.DataRange,
			"targetRange": args.TargetRange,
			"rows":        args.Rows,
			"columns":     args.Columns,
			"values":      args.Values,
			"filters":     args.Filters,
		})
	}))
}
