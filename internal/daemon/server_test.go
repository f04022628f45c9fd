package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/exceld/internal/config"
	"github.com/codefionn/exceld/internal/ipc"
	"github.com/codefionn/exceld/internal/protocol"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SocketDir = dir
	cfg.IdleTimeoutMinutes = 60

	manager, _ := newTestManager()
	server := NewServer(cfg, manager, nil, "test")

	done := make(chan error, 1)
	go func() { done <- server.Start(context.Background()) }()
	t.Cleanup(func() {
		server.Stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	socketPath := ipc.SocketPath(dir)
	require.Eventually(t, func() bool {
		return ipc.Detect(socketPath)
	}, 5*time.Second, 20*time.Millisecond, "server did not start listening")

	return server, socketPath
}

func exchange(t *testing.T, socketPath, line string) protocol.Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	_, err = conn.Write([]byte(line + "\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	respLine, err := reader.ReadString('\n')
	require.NoError(t, err)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal([]byte(respLine), &resp))

	// Exactly one response, then the server closes the connection
	_, err = reader.ReadString('\n')
	assert.Error(t, err, "expected the connection to close after one response")

	return resp
}

func TestServerPing(t *testing.T) {
	_, socketPath := startTestServer(t)

	resp := exchange(t, socketPath, `{"command":"daemon.ping"}`)
	assert.True(t, resp.Success)
	assert.Equal(t, `"pong"`, string(resp.Result))
}

func TestServerInvalidJSON(t *testing.T) {
	_, socketPath := startTestServer(t)

	resp := exchange(t, socketPath, `{not json`)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "Invalid request")
}

func TestServerMissingCommand(t *testing.T) {
	_, socketPath := startTestServer(t)

	resp := exchange(t, socketPath, `{"args":{}}`)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "missing a command")
}

func TestServerUnknownCommandDoesNotKillDaemon(t *testing.T) {
	_, socketPath := startTestServer(t)

	resp := exchange(t, socketPath, `{"command":"bogus.op"}`)
	assert.False(t, resp.Success)

	// The daemon still answers afterwards
	resp = exchange(t, socketPath, `{"command":"daemon.ping"}`)
	assert.True(t, resp.Success)
}

func TestServerConcurrentRequests(t *testing.T) {
	_, socketPath := startTestServer(t)

	const clients = 8
	results := make(chan bool, clients)
	for i := 0; i < clients; i++ {
		go func() {
			conn, err := net.Dial("unix", socketPath)
			if err != nil {
				results <- false
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(5 * time.Second))
			if _, err := conn.Write([]byte(`{"command":"daemon.ping"}` + "\n")); err != nil {
				results <- false
				return
			}
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err != nil {
				results <- false
				return
			}
			var resp protocol.Response
			results <- json.Unmarshal([]byte(line), &resp) == nil && resp.Success
		}()
	}
	for i := 0; i < clients; i++ {
		select {
		case ok := <-results:
			assert.True(t, ok)
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for concurrent clients")
		}
	}
}

func TestServerServesBeyondConcurrencyLimit(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SocketDir = dir
	cfg.IdleTimeoutMinutes = 60
	cfg.MaxConnections = 1

	manager, _ := newTestManager()
	server := NewServer(cfg, manager, nil, "test")

	done := make(chan error, 1)
	go func() { done <- server.Start(context.Background()) }()
	t.Cleanup(func() {
		server.Stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	socketPath := ipc.SocketPath(dir)
	require.Eventually(t, func() bool { return ipc.Detect(socketPath) },
		5*time.Second, 20*time.Millisecond)

	// With a single slot, excess connections queue instead of being
	// rejected; every client still gets its response.
	const clients = 5
	results := make(chan bool, clients)
	for i := 0; i < clients; i++ {
		go func() {
			conn, err := net.Dial("unix", socketPath)
			if err != nil {
				results <- false
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(10 * time.Second))
			if _, err := conn.Write([]byte(`{"command":"daemon.ping"}` + "\n")); err != nil {
				results <- false
				return
			}
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err != nil {
				results <- false
				return
			}
			var resp protocol.Response
			results <- json.Unmarshal([]byte(line), &resp) == nil && resp.Success
		}()
	}
	for i := 0; i < clients; i++ {
		select {
		case ok := <-results:
			assert.True(t, ok)
		case <-time.After(15 * time.Second):
			t.Fatal("timed out waiting for queued clients")
		}
	}
}

func TestServerTracksActivity(t *testing.T) {
	server, socketPath := startTestServer(t)

	before := server.LastActivity()
	time.Sleep(10 * time.Millisecond)
	exchange(t, socketPath, `{"command":"daemon.ping"}`)

	assert.True(t, server.LastActivity().After(before))
}

func TestServerShutdownCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SocketDir = dir

	manager, _ := newTestManager()
	server := NewServer(cfg, manager, nil, "test")

	done := make(chan error, 1)
	go func() { done <- server.Start(context.Background()) }()

	socketPath := ipc.SocketPath(dir)
	require.Eventually(t, func() bool { return ipc.Detect(socketPath) },
		5*time.Second, 20*time.Millisecond)

	resp := exchange(t, socketPath, `{"command":"daemon.shutdown"}`)
	assert.True(t, resp.Success)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after daemon.shutdown")
	}
}
