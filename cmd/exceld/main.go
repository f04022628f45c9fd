package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codefionn/exceld/internal/client"
	"github.com/codefionn/exceld/internal/config"
	"github.com/codefionn/exceld/internal/daemon"
	"github.com/codefionn/exceld/internal/engine"
	"github.com/codefionn/exceld/internal/history"
	"github.com/codefionn/exceld/internal/ipc"
	"github.com/codefionn/exceld/internal/lockfile"
	"github.com/codefionn/exceld/internal/logger"
	"github.com/codefionn/exceld/internal/mcpserver"
	"github.com/codefionn/exceld/internal/pidfile"
	"github.com/codefionn/exceld/internal/protocol"
)

var version = "0.3.0"

func main() {
	var (
		daemonMode  = flag.Bool("daemon", false, "Run as the background daemon")
		mcpMode     = flag.Bool("mcp", false, "Serve MCP over stdio")
		stopDaemon  = flag.Bool("stop", false, "Stop a running daemon")
		showStatus  = flag.Bool("status", false, "Show daemon status")
		showVersion = flag.Bool("version", false, "Print version and exit")
		sessionID   = flag.String("session", "", "Session id for session-scoped commands")
		socketDir   = flag.String("socket-dir", "", "Override the per-user socket directory")
		configPath  = flag.String("config", config.GetConfigPath(), "Configuration file path")
		timeout     = flag.Duration("timeout", 30*time.Second, "Request timeout")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error, none")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("exceld %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *socketDir != "" {
		cfg.SocketDir = *socketDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	switch {
	case *daemonMode:
		err = runDaemon(cfg)
	case *mcpMode:
		err = runMCP(cfg, *timeout)
	case *stopDaemon:
		err = runStop(cfg, *timeout)
	case *showStatus:
		err = runStatus(cfg, *timeout)
	default:
		err = runCommand(cfg, *timeout, *sessionID, flag.Args())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `exceld %s - Excel automation daemon

Usage:
  exceld [flags] <command> [json-args]   Send one command to the daemon
  exceld --daemon                        Run the daemon in the foreground
  exceld --mcp                           Serve MCP tools over stdio
  exceld --stop                          Stop a running daemon
  exceld --status                        Show daemon status

Commands are category.action pairs, for example:

  exceld 'session.create' '{"filePath":"/data/report.xlsx"}'
  exceld --session <id> 'sheet.list'
  exceld --session <id> 'range.get-values' '{"sheet":"Sheet1","range":"A1:C10"}'

Flags:
`, version)
	flag.PrintDefaults()
}

// runDaemon runs the daemon in the foreground until a signal or a shutdown
// command arrives. Single-instance semantics come from the lockfile.
func runDaemon(cfg *config.Config) error {
	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Global().Close()

	if _, err := ipc.EnsureRuntimeDir(cfg.SocketDir); err != nil {
		return err
	}

	lock := lockfile.New(ipc.LockfilePath(cfg.SocketDir))
	if err := lock.TryAcquire(); err != nil {
		return err
	}
	defer lock.Release()

	pf := pidfile.New(ipc.PidfilePath(cfg.SocketDir))
	if err := pf.Write(); err != nil {
		return err
	}
	defer pf.Remove()

	var hist *history.Store
	if cfg.HistoryPath != "" {
		var err error
		hist, err = history.Open(cfg.HistoryPath)
		if err != nil {
			logger.Warn("History recording disabled: %v", err)
		} else {
			defer hist.Close()
		}
	}

	sessions := daemon.NewSessionManager(engine.NewFactory(), hist,
		time.Duration(cfg.DefaultTimeoutSeconds)*time.Second)
	server := daemon.NewServer(cfg, sessions, hist, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received %v, shutting down", sig)
		cancel()
	}()

	logger.Info("Starting exceld %s", version)
	return server.Start(ctx)
}

func runMCP(cfg *config.Config, timeout time.Duration) error {
	// Logging must never touch stdout here; MCP owns it
	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Global().Close()

	c := client.New(cfg.SocketDir, timeout)
	return mcpserver.New(c, version).Start(context.Background())
}

func runStop(cfg *config.Config, timeout time.Duration) error {
	pf := pidfile.New(ipc.PidfilePath(cfg.SocketDir))
	status, pid := pf.Check()
	if status == pidfile.NotRunning && !ipc.Detect(ipc.SocketPath(cfg.SocketDir)) {
		fmt.Println("Daemon is not running")
		return nil
	}

	c := client.New(cfg.SocketDir, timeout)
	resp, err := c.Command(context.Background(), "daemon.shutdown", "", nil)
	if err != nil {
		return fmt.Errorf("failed to reach daemon (pid %d): %w", pid, err)
	}
	if !resp.Success {
		return fmt.Errorf("daemon refused shutdown: %s", resp.ErrorMessage)
	}
	fmt.Println("Daemon is shutting down")
	return nil
}

func runStatus(cfg *config.Config, timeout time.Duration) error {
	pf := pidfile.New(ipc.PidfilePath(cfg.SocketDir))
	status, pid := pf.Check()

	switch status {
	case pidfile.NotRunning:
		fmt.Println("Daemon is not running")
		return nil
	case pidfile.Unknown:
		fmt.Printf("Daemon state unknown (pid %d could not be probed)\n", pid)
	}

	c := client.New(cfg.SocketDir, timeout)
	resp, err := c.Command(context.Background(), "daemon.status", "", nil)
	if err != nil {
		return fmt.Errorf("pidfile reports pid %d but the daemon is unreachable: %w", pid, err)
	}
	if !resp.Success {
		return fmt.Errorf("daemon error: %s", resp.ErrorMessage)
	}

	var pretty map[string]any
	if err := json.Unmarshal(resp.Result, &pretty); err != nil {
		fmt.Println(string(resp.Result))
		return nil
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return nil
}

/// runCommand is the default CLI mode: send one command, print the result,
// exit non-zero on daemon-side failure. Starts the daemon if none runs.
func runCommand(cfg *config.Config, timeout time.Duration, sessionID string, args []string) error {
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	command := args[0]

	var rawArgs json.RawMessage
	if len(args) > 1 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("arguments must be a JSON object, got: %s", args[1])
		}
		rawArgs = json.RawMessage(args[1])
	}
	if len(args) > 2 {
		return fmt.Errorf("unexpected extra arguments: %v", args[2:])
	}

	c := client.New(cfg.SocketDir, timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.EnsureDaemon(ctx); err != nil {
		return err
	}

	resp, err := c.Send(ctx, &protocol.Request{
		Command:   command,
		SessionID: sessionID,
		Args:      rawArgs,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.ErrorMessage)
	}
	if len(resp.Result) > 0 {
		var pretty any
		if err := json.Unmarshal(resp.Result, &pretty); err == nil {
			if out, err := json.MarshalIndent(pretty, "", "  "); err == nil {
				fmt.Println(string(out))
				return nil
			}
		}
		fmt.Println(string(resp.Result))
	} else {
		fmt.Println("OK")
	}
	return nil
}
