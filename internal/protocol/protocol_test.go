package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		command  string
		category string
		action   string
	}{
		{"session.create", "session", "create"},
		{"sheet.set-visibility", "sheet", "set-visibility"},
		{"range.get-values", "range", "get-values"},
		{"daemon", "daemon", ""},
		{"a.b.c", "a", "b.c"},
		{"", "", ""},
	}
	for _, tt := range tests {
		category, action := SplitCommand(tt.command)
		assert.Equal(t, tt.category, category, tt.command)
		assert.Equal(t, tt.action, action, tt.command)
	}
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest(`{"command":"sheet.list","sessionId":"abc"}` + "\n")
	require.NoError(t, err)
	assert.Equal(t, "sheet.list", req.Command)
	assert.Equal(t, "abc", req.SessionID)
}

func TestParseRequestKeepsArgsOpaque(t *testing.T) {
	req, err := ParseRequest(`{"command":"range.set-values","args":{"values":[[1,"x"]]}}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"values":[[1,"x"]]}`, string(req.Args))
}

func TestParseRequestErrors(t *testing.T) {
	for _, line := range []string{"", "   \n", "{broken", `{"sessionId":"abc"}`} {
		_, err := ParseRequest(line)
		assert.Error(t, err, "line %q must fail", line)
	}
}

func TestOkAndFail(t *testing.T) {
	resp := Ok(map[string]int{"n": 3})
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"n":3}`, string(resp.Result))

	resp = Ok(nil)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Result)

	resp = Failf("bad %s", "thing")
	assert.False(t, resp.Success)
	assert.Equal(t, "bad thing", resp.ErrorMessage)
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)

	require.NoError(t, WriteLine(writer, Ok("done")))

	line := buf.String()
	require.NotEmpty(t, line)
	assert.Equal(t, byte('\n'), line[len(line)-1])

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	assert.True(t, resp.Success)
}

func TestResponseOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Ok(nil))
	require.NoError(t, err)
	assert.Equal(t, `{"success":true}`, string(data))

	data, err = json.Marshal(Fail("boom"))
	require.NoError(t, err)
	assert.Equal(t, `{"success":false,"errorMessage":"boom"}`, string(data))
}
