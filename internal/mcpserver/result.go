package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codefionn/exceld/internal/client"
	"github.com/codefionn/exceld/internal/protocol"
)

// withRecovery wraps a tool handler with panic recovery so one bad request
// cannot take the stdio server down.
func withRecovery(handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("internal error: %v", r)
				result = nil
			}
		}()
		return handler(ctx, request)
	}
}

// zogIssueResult converts schema validation issues into a tool error result
func zogIssueResult(issues z.ZogIssueMap) *mcp.CallToolResult {
	fields := make([]string, 0, len(issues))
	for field := range issues {
		if field == "$root" {
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("Invalid arguments:\n")
	for _, field := range fields {
		for _, issue := range issues[field] {
			fmt.Fprintf(&b, "- %s: %s\n", field, issue.Message)
		}
	}
	return mcp.NewToolResultError(b.String())
}

// forward sends one command to the daemon and renders the response as a
// tool result. Daemon-side failures become error results, not Go errors, so
// the model sees the message.
func forward(ctx context.Context, c *client.Client, command, sessionID string, args any) (*mcp.CallToolResult, error) {
	resp, err := c.Command(ctx, command, sessionID, args)
	if err != nil {
		return nil, err
	}
	return renderResponse(resp), nil
}

func renderResponse(resp *protocol.Response) *mcp.CallToolResult {
	if !resp.Success {
		return mcp.NewToolResultError(resp.ErrorMessage)
	}
	if len(resp.Result) == 0 {
		return mcp.NewToolResultText("OK")
	}
	return mcp.NewToolResultText(string(resp.Result))
}
