package mcpserver

import (
	"context"
	"path/filepath"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zconst"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type createSessionArguments struct {
	FilePath       string `zog:"filePath"`
	NewFile        bool   `zog:"newFile"`
	TimeoutSeconds int    `zog:"timeoutSeconds"`
}

var createSessionArgumentsSchema = z.Struct(z.Shape{
	"filePath":       z.String().Test(absolutePathTest()).Required(),
	"newFile":        z.Bool(),
	"timeoutSeconds": z.Int(),
})

// absolutePathTest rejects relative paths; the daemon may run with a
// different working directory than the MCP client.
func absolutePathTest() z.Test[*string] {
	return z.TestFunc(zconst.IssueCodeCustom, func(val *string, ctx z.Ctx) bool {
		return filepath.IsAbs(*val)
	}, z.Message("must be an absolute path"))
}

func addCreateSessionTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_create_session",
		mcp.WithDescription("Open (or create) an Excel workbook and start an automation session. Returns the session id used by all other tools."),
		mcp.WithString("filePath",
			mcp.Required(),
			mcp.Description("Absolute path to the workbook file"),
		),
		mcp.WithBoolean("newFile",
			mcp.Description("Create a new workbook at filePath instead of opening an existing one"),
		),
		mcp.WithNumber("timeoutSeconds",
			mcp.Description("Per-operation timeout for this session"),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := createSessionArguments{}
		if issues := createSessionArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		return forward(ctx, c, "session.create", "", map[string]any{
			"filePath":       args.FilePath,
			"newFile":        args.NewFile,
			"timeoutSeconds": args.TimeoutSeconds,
		})
	}))
}
