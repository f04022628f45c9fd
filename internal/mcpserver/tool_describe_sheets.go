package mcpserver

import (
	"context"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
)

type describeSheetsArguments struct {
	SessionID string `zog:"sessionId"`
}

var describeSheetsArgumentsSchema = z.Struct(z.Shape{
	"sessionId": z.String().Required(),
})

func addDescribeSheetsTool(s *server.MCPServer, c *client.Client) {
	s.AddTool(mcp.NewTool("excel_describe_sheets",
		mcp.WithDescription("List the worksheets of a session's workbook"),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id returned by excel_create_session"),
		),
	), withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := describeSheetsArguments{}
		if issues := describeSheetsArgumentsSchema.Parse(request.GetArguments(), &args); len(issues) != 0 {
			return zogIssueResult(issues), nil
		}
		return forward(ctx, c, "sheet.list", args.SessionID, nil)
	}))
}
