package daemon

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codefionn/exceld/internal/config"
	"github.com/codefionn/exceld/internal/history"
	"github.com/codefionn/exceld/internal/ipc"
	"github.com/codefionn/exceld/internal/logger"
	"github.com/codefionn/exceld/internal/protocol"
)

// readTimeout bounds how long a connected client may take to send its
// request line.
const readTimeout = 30 * time.Second

// Server owns the daemon's socket listener, session manager and idle
// monitor. One Server per process.
type Server struct {
	cfg      *config.Config
	sessions *SessionManager
	router   *Router
	history  *history.Store
	listener net.Listener
	log      *logger.Logger

	// Bounded concurrency: one slot per in-flight connection
	slots chan struct{}

	// Unix nanoseconds of the last completed request
	lastActivity atomic.Int64

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer wires up a daemon server. version identifies the build in
// daemon.status responses.
func NewServer(cfg *config.Config, sessions *SessionManager, hist *history.Store, version string) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		history:  hist,
		slots:    make(chan struct{}, cfg.MaxConnections),
		stopChan: make(chan struct{}),
		log:      logger.WithPrefix("server"),
	}
	s.router = NewRouter(sessions, hist, version, s.Stop)
	s.lastActivity.Store(time.Now().UnixNano())
	return s
}

// Start begins accepting connections and blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	socketPath := ipc.SocketPath(s.cfg.SocketDir)
	listener, err := ipc.Listen(socketPath)
	if err != nil {
		return err
	}
	s.listener = listener
	s.log.Info("Listening on %s (pid %d)", socketPath, os.Getpid())

	idle := NewIdleMonitor(
		time.Duration(s.cfg.IdlePollSeconds)*time.Second,
		time.Duration(s.cfg.IdleTimeoutMinutes)*time.Minute,
		s.LastActivity,
		func() int { return s.sessions.Count() },
		func() {
			s.log.Info("Idle timeout reached, shutting down")
			s.Stop()
		},
	)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		idle.Run(s.stopChan)
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopChan:
		}
	}()

	s.acceptLoop()

	s.wg.Wait()
	s.sessions.Shutdown()
	os.Remove(socketPath)
	return nil
}

func (s *Server) acceptLoop() {
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return
			default:
			}
			s.log.Warn("Accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			// Block until a concurrency slot frees up rather than
			// rejecting; clients see latency, not failures, under load.
			// Waiting here keeps the accept loop itself responsive.
			select {
			case s.slots <- struct{}{}:
			case <-s.stopChan:
				conn.Close()
				return
			}
			defer func() { <-s.slots }()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection serves exactly one request/response pair and closes the
// connection. Any failure before dispatch still yields a response line.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer s.Touch()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		s.log.Debug("Connection closed before a request arrived: %v", err)
		return
	}

	var resp *protocol.Response
	req, err := protocol.ParseRequest(line)
	if err != nil {
		resp = protocol.Failf("Invalid request: %v", err)
	} else {
		s.log.Debug("Dispatching %s (session=%s)", req.Command, req.SessionID)
		resp = s.router.Dispatch(req)
	}

	if err := protocol.WriteLine(writer, resp); err != nil {
		s.log.Warn("Failed to write response: %v", err)
	}
}

// Touch records request activity for the idle monitor
func (s *Server) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the most recent completed request
func (s *Server) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Stop shuts the server down. Safe to call multiple times and from any
// goroutine, including connection handlers.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.listener != nil {
			s.listener.Close()
		}
	})
}
