package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/exceld/internal/protocol"
)

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	content, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return content.Text
}

func TestRenderSuccessWithResult(t *testing.T) {
	resp := &protocol.Response{Success: true, Result: json.RawMessage(`{"n":1}`)}
	result := renderResponse(resp)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"n":1}`, textContent(t, result))
}

func TestRenderSuccessWithoutResult(t *testing.T) {
	result := renderResponse(&protocol.Response{Success: true})
	assert.False(t, result.IsError)
	assert.Equal(t, "OK", textContent(t, result))
}

func TestRenderFailure(t *testing.T) {
	result := renderResponse(&protocol.Response{Success: false, ErrorMessage: "Session 'x' not found"})
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "not found")
}

func TestWithRecoveryTurnsPanicIntoError(t *testing.T) {
	handler := withRecovery(func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("boom")
	})

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "boom")
}

func TestAbsolutePathValidation(t *testing.T) {
	args := createSessionArguments{}
	issues := createSessionArgumentsSchema.Parse(map[string]any{
		"filePath": "relative/path.xlsx",
	}, &args)
	require.NotEmpty(t, issues)

	result := zogIssueResult(issues)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "filePath")
}
