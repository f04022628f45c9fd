package mcpserver

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type calculationModeArguments struct {
	SessionID string `zog:"sessionId"`
	Mode      string `zog:"mode"`
}

var calculationModeArgumentsSchema = z.Struct(z.Shape{
	"sessionId": z.String().Required(),
	"mode":      z.String(),
})

func addCalculationModeTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_calculation_mode",
		mcp.WithDescription("Get or set the workbook calculation mode. Switch to manual before large batch writes to avoid recalculating after every cell, then recalculate and switch back to automatic. Requires a live Excel instance."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id returned by excel_create_session"),
		),
		mcp.WithString("mode",
			mcp.Description("automatic, manual, semiautomatic, or recalculate to force a full recalculation. Omit to read the current mode."),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := calculationModeArguments{}
		if issues := calculationModeArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		switch args.Mode {
		case "":
			return forward(ctx, c, "session.get-calculation-mode", args.SessionID, nil)
		case "recalculate":
			return forward(ctx, c, "session.recalculate", args.SessionID, nil)
		default:
			return forward(ctx, c, "session.set-calculation-mode", args.SessionID, map[string]any{
				"mode": args.Mode,
			})
		}
	}))
}
