package mcpserver

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type setFormulaArguments struct {
	SessionID string `zog:"sessionId"`
	Sheet     string `zog:"sheet"`
	Cell      string `zog:"cell"`
	Formula   string `zog:"formula"`
}

var setFormulaArgumentsSchema = z.Struct(z.Shape{
	"sessionId": z.String().Required(),
	"sheet":     z.String().Required(),
	"cell":      z.String().Required(),
	"formula":   z.String().Required(),
})

func addSetFormulaTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_set_formula",
		mcp.WithDescription("Set a formula on a single cell"),
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
			mcp.Description("Target cell, like D5"),
		),
		mcp.WithString("formula",
			mcp.Required(),
			mcp.Description("Formula text, with or without the leading ="),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := setFormulaArguments{}
		if issues := setFormulaArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		return forward(ctx, c, "range.set-formula", args.SessionID, map[string]any{
			"sheet":   args.Sheet,
			"cell":    args.Cell,
			"formula": args.Formula,
		})
	}))
}
