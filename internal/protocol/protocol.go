// Package protocol defines the request/response envelope exchanged between
// clients and the daemon. Each connection carries exactly one request line
// and one response line, both UTF-8 JSON terminated by a newline.
package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
)

// Request is a single unit of work sent by a client
type Request struct {
	// Command is the dot-separated "category.action" string
	Command string `json:"command"`
	// SessionID addresses a session for session-scoped categories
	SessionID string `json:"sessionId,omitempty"`
	// Args is the action-specific argument object, left opaque here
	Args json.RawMessage `json:"args,omitempty"`
}

// Response is the single reply written for a request
type Response struct {
	Success      bool            `json:"success"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// Ok builds a success response carrying result (nil for void actions)
func Ok(result any) *Response {
	if result == nil {
		return &Response{Success: true}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return Fail(fmt.Sprintf("failed to serialize result: %v", err))
	}
	return &Response{Success: true, Result: data}
}

// Fail builds a failure response with the given message
func Fail(message string) *Response {
	return &Response{Success: false, ErrorMessage: message}
}

// Failf builds a failure response with a formatted message
func Failf(format string, args ...any) *Response {
	return Fail(fmt.Sprintf(format, args...))
}

// SplitCommand splits "category.action" on the first dot. A command without
// a dot yields an empty action.
func SplitCommand(command string) (category, action string) {
	if i := strings.Index(command, "."); i >= 0 {
		return command[:i], command[i+1:]
	}
	return command, ""
}

// ParseRequest decodes one request line. An empty or malformed line is an
// error; the connection handler converts it into an "Invalid request"
// response instead of crashing.
func ParseRequest(line string) (*Request, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty request line")
	}
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return nil, fmt.Errorf("malformed request: %w", err)
	}
	if req.Command == "" {
		return nil, fmt.Errorf("request is missing a command")
	}
	return &req, nil
}

// WriteLine serializes v as a single newline-terminated line and flushes the
// writer so the peer sees the full payload before the connection closes.
func WriteLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
