package mcpserver

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type screenshotArguments struct {
	SessionID  string `zog:"sessionId"`
	Sheet      string `zog:"sheet"`
	Range      string `zog:"range"`
	OutputPath string `zog:"outputPath"`
}

var screenshotArgumentsSchema = z.Struct(z.Shape{
	"sessionId":  z.String().Required(),
	"sheet":      z.String().Required(),
	"range":      z.String().Required(),
	"outputPath": z.String().Required().Test(absolutePathTest()),
})

func addScreenshotTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_screenshot",
		mcp.WithDescription("Render a worksheet range to an image file, useful for visually verifying chart and dashboard layout. Requires a live Excel instance."),
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
			mcp.Description("Range to capture, like A1:M40"),
		),
		mcp.WithString("outputPath",
			mcp.Required(),
			mcp.Description("Absolute path of the image file to write (.png)"),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := screenshotArguments{}
		if issues := screenshotArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		return forward(ctx, c, "range.screenshot", args.SessionID, map[string]any{
			"sheet":      args.Sheet,
			"range":      args.Range,
			"outputPath": args.OutputPath,
		})
	}))
}
