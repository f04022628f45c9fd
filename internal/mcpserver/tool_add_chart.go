package mcpserver

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type addChartArguments struct {
	SessionID  string `zog:"sessionId"`
	Sheet      string `zog:"sheet"`
	Cell       string `zog:"cell"`
	ChartType  string `zog:"chartType"`
	Title      string `zog:"title"`
	Categories string `zog:"categories"`
	Values     string `zog:"values"`
}

var addChartArgumentsSchema = z.Struct(z.Shape{
	"sessionId":  z.String().Required(),
	"sheet":      z.String().Required(),
	"cell":       z.String().Required(),
	"chartType":  z.String().Required(),
	"title":      z.String(),
	"categories": z.String(),
	"values":     z.String().Required(),
})

func addAddChartTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_add_chart",
		mcp.WithDescription("Create a chart anchored at a cell"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id returned by excel_create_session"),
		),
		mcp.WithString("sheet",
			mcp.Required(),
			mcp.Description("Worksheet name"),
		),
		mcp.WithString("cell",
			mcp.Required(),
			mcp.Description("Top-left anchor cell for the chart"),
		),
		mcp.WithString("chartType",
			mcp.Required(),
			mcp.Description("One of: col, col-stacked, bar, bar-stacked, line, pie, doughnut, scatter, area, radar"),
		),
		mcp.WithString("title",
			mcp.Description("Chart title"),
		),
		mcp.WithString("categories",
			mcp.Description("Category axis range, like Sheet1!A2:A10"),
		),
		mcp.WithString("values",
			mcp.Required(),
			mcp.Description("Value range, like Sheet1!B2:B10"),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := addChartArguments{}
		if issues := addChartArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		return forward(ctx, c, "chart.create", args.SessionID, map[string]any{
			"sheet": args.Sheet,
			"cell":  args.Cell,
			"type":  args.ChartType,
			"title": args.Title,
			"series": []map[string]any{{
				"categories": args.Categories,
				"values":     args.Values,
			}},
		})
	}))
}
