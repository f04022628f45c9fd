// Package client implements the daemon-side of CLI and MCP front-ends: it
// connects to the per-user daemon socket, transparently starting the daemon
// when none is running, and performs one request/response exchange per call.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/codefionn/exceld/internal/ipc"
	"github.com/codefionn/exceld/internal/logger"
	"github.com/codefionn/exceld/internal/protocol"
)

const (
	// startupAttempts bounds how long we wait for a freshly spawned daemon
	startupAttempts = 20
	startupInterval = 250 * time.Millisecond
)

// Client talks to the exceld daemon over its per-user socket
type Client struct {
	socketPath string
	timeout    time.Duration
	log        *logger.Logger
}

// New creates a client for the given socket directory override (empty for
// the platform default).
func New(socketDir string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		socketPath: ipc.SocketPath(socketDir),
		timeout:    timeout,
		log:        logger.WithPrefix("client"),
	}
}

// SocketPath returns the resolved daemon socket path
func (c *Client) SocketPath() string {
	return c.socketPath
}

// Send performs one request/response exchange on a fresh connection
func (c *Client) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := ipc.Dial(ctx, c.socketPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	writer := bufio.NewWriter(conn)
	if err := protocol.WriteLine(writer, req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("daemon closed the connection without responding: %w", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("malformed response from daemon: %w", err)
	}
	return &resp, nil
}

// Command is a convenience wrapper building the request from parts
func (c *Client) Command(ctx context.Context, command, sessionID string, args any) (*protocol.Response, error) {
	req := &protocol.Request{Command: command, SessionID: sessionID}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize arguments: %w", err)
		}
		req.Args = data
	}
	return c.Send(ctx, req)
}

// EnsureDaemon makes sure a daemon is accepting connections, spawning one
// from the current executable if needed.
func (c *Client) EnsureDaemon(ctx context.Context) error {
	if ipc.Detect(c.socketPath) {
		return nil
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot determine own executable to start the daemon: %w", err)
	}

	c.log.Info("No daemon detected, starting %s --daemon", executable)
	cmd := exec.Command(executable, "--daemon")
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	// The daemon outlives us; don't leave a zombie behind
	go cmd.Wait()

	for attempt := 0; attempt < startupAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(startupInterval):
		}
		if ipc.Detect(c.socketPath) {
			return nil
		}
	}
	return fmt.Errorf("daemon did not start listening on %s", c.socketPath)
}
