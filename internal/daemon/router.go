package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/codefionn/exceld/internal/engine"
	"github.com/codefionn/exceld/internal/history"
	"github.com/codefionn/exceld/internal/logger"
	"github.com/codefionn/exceld/internal/protocol"
)

// Router dispatches parsed requests to command handlers. Dispatch tables are
// fixed at construction; there is no dynamic command registration.
type Router struct {
	sessions  *SessionManager
	history   *history.Store
	startedAt time.Time
	version   string
	shutdown  func()
	log       *logger.Logger

	// category -> action -> handler, for session-scoped categories
	sessionHandlers map[string]map[string]sessionHandler
}

// sessionHandler runs one workbook-scoped action. The router resolves and
// locks the session before calling it.
type sessionHandler func(wb engine.Workbook, args json.RawMessage) (any, error)

// NewRouter builds the router. shutdown is invoked for daemon.shutdown and
// must be safe to call from a connection handler goroutine.
func NewRouter(sessions *SessionManager, hist *history.Store, version string, shutdown func()) *Router {
	r := &Router{
		sessions:  sessions,
		history:   hist,
		startedAt: time.Now(),
		version:   version,
		shutdown:  shutdown,
		log:       logger.WithPrefix("router"),
	}
	r.sessionHandlers = map[string]map[string]sessionHandler{
		"sheet":             sheetHandlers(),
		"range":             rangeHandlers(),
		"table":             tableHandlers(),
		"powerquery":        powerQueryHandlers(),
		"pivottable":        pivotTableHandlers(),
		"chart":             chartHandlers(),
		"chartconfig":       chartConfigHandlers(),
		"connection":        connectionHandlers(),
		"namedrange":        namedRangeHandlers(),
		"conditionalformat": conditionalFormatHandlers(),
		"vba":               vbaHandlers(),
		"datamodel":         dataModelHandlers(),
		"datamodelrel":      dataModelRelHandlers(),
		"slicer":            slicerHandlers(),
	}
	return r
}

// Dispatch routes one request to its handler and converts the outcome into a
// response. A panicking handler yields an error response, never a dead
// daemon.
func (r *Router) Dispatch(req *protocol.Request) (resp *protocol.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Panic handling %s: %v", req.Command, rec)
			resp = protocol.Failf("internal error handling %s: %v", req.Command, rec)
		}
	}()

	category, action := protocol.SplitCommand(req.Command)
	category = strings.ToLower(category)
	action = strings.ToLower(action)

	switch category {
	case "daemon":
		resp = r.dispatchDaemon(action)
	case "session":
		resp = r.dispatchSession(action, req)
	default:
		// Cross-file sheet transfers address files directly, not sessions
		if category == "sheet" && (action == "copy-to-file" || action == "move-to-file") {
			resp = r.dispatchSheetTransfer(action, req)
			break
		}
		handlers, ok := r.sessionHandlers[category]
		if !ok {
			return protocol.Failf("Unknown command category: %s", category)
		}
		handler, ok := handlers[action]
		if !ok {
			return protocol.Failf("Unsupported %s action: %s", category, action)
		}
		resp = r.runSessionHandler(req, handler)
	}

	if r.history != nil && category != "daemon" {
		if err := r.history.RecordOperation(req.SessionID, req.Command, resp.Success); err != nil {
			r.log.Debug("Failed to record operation: %v", err)
		}
	}
	return resp
}

// daemonStatus is the daemon.status result payload
type daemonStatus struct {
	PID            int           `json:"pid"`
	Version        string        `json:"version"`
	UptimeSeconds  int64         `json:"uptimeSeconds"`
	ActiveSessions int           `json:"activeSessions"`
	Sessions       []SessionInfo `json:"sessions"`
	Operations     int           `json:"operations,omitempty"`
}

func (r *Router) dispatchDaemon(action string) *protocol.Response {
	switch action {
	case "ping":
		return protocol.Ok("pong")
	case "status":
		sessions := r.sessions.ActiveSessions()
		status := daemonStatus{
			PID:            os.Getpid(),
			Version:        r.version,
			UptimeSeconds:  int64(time.Since(r.startedAt).Seconds()),
			ActiveSessions: len(sessions),
			Sessions:       sessions,
		}
		if r.history != nil {
			if count, err := r.history.OperationCount(""); err == nil {
				status.Operations = count
			}
		}
		return protocol.Ok(status)
	case "shutdown":
		r.log.Info("Shutdown requested over the socket")
		if r.shutdown != nil {
			// Asynchronous so the response still reaches the client
			go r.shutdown()
		}
		return protocol.Ok("shutting down")
	default:
		return protocol.Failf("Unsupported daemon action: %s", action)
	}
}

func (r *Router) dispatchSession(action string, req *protocol.Request) *protocol.Response {
	switch action {
	case "create":
		var args sessionCreateArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return protocol.Fail(err.Error())
		}
		if args.FilePath == "" {
			return protocol.Fail("filePath is required")
		}
		timeout := time.Duration(args.TimeoutSeconds) * time.Second
		var (
			session *Session
			err     error
		)
		if args.NewFile {
			session, err = r.sessions.CreateSessionForNewFile(args.FilePath, timeout)
		} else {
			session, err = r.sessions.CreateSession(args.FilePath, timeout)
		}
		if err != nil {
			return protocol.Fail(err.Error())
		}
		return protocol.Ok(session.Info())

	case "open":
		// Alias for create without newFile
		var args sessionCreateArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return protocol.Fail(err.Error())
		}
		if args.FilePath == "" {
			return protocol.Fail("filePath is required")
		}
		session, err := r.sessions.CreateSession(args.FilePath,
			time.Duration(args.TimeoutSeconds)*time.Second)
		if err != nil {
			return protocol.Fail(err.Error())
		}
		return protocol.Ok(session.Info())

	case "close":
		var args sessionCloseArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return protocol.Fail(err.Error())
		}
		if req.SessionID == "" {
			return protocol.Fail("sessionId is required")
		}
		if err := r.sessions.CloseSession(req.SessionID, args.Save); err != nil {
			return protocol.Fail(err.Error())
		}
		return protocol.Ok(nil)

	case "save":
		return r.runSessionHandler(req, func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return nil, wb.Save()
		})

	case "save-as":
		return r.runSessionHandler(req, func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sessionSaveAsArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.FilePath == "" {
				return nil, fmt.Errorf("filePath is required")
			}
			if err := engine.ValidateNewFileExtension(args.FilePath); err != nil {
				return nil, err
			}
			return nil, wb.SaveAs(args.FilePath)
		})

	case "get-calculation-mode":
		return r.runSessionHandler(req, func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			mode, err := wb.CalculationMode()
			if err != nil {
				return nil, err
			}
			return map[string]string{"mode": mode}, nil
		})

	case "set-calculation-mode":
		return r.runSessionHandler(req, func(wb engine.Workbook, raw json.RawMessage) (any, error) {
			var args sessionCalcModeArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			if args.Mode == "" {
				return nil, fmt.Errorf("mode is required")
			}
			return nil, wb.SetCalculationMode(args.Mode)
		})

	case "recalculate":
		return r.runSessionHandler(req, func(wb engine.Workbook, _ json.RawMessage) (any, error) {
			return nil, wb.Recalculate()
		})

	case "list":
		return protocol.Ok(r.sessions.ActiveSessions())

	case "recent":
		if r.history == nil {
			return protocol.Fail("history recording is disabled")
		}
		var args sessionRecentArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return protocol.Fail(err.Error())
		}
		files, err := r.history.RecentFiles(args.Limit)
		if err != nil {
			return protocol.Fail(err.Error())
		}
		return protocol.Ok(files)

	default:
		return protocol.Failf("Unsupported session action: %s", action)
	}
}

// runSessionHandler resolves the request's session, verifies the engine is
// still alive, and runs the handler under the session lock. A dead engine
// tears the session down so the id cannot keep failing forever.
func (r *Router) runSessionHandler(req *protocol.Request, handler sessionHandler) *protocol.Response {
	if req.SessionID == "" {
		return protocol.Fail("sessionId is required")
	}
	session, err := r.sessions.GetSession(req.SessionID)
	if err != nil {
		return protocol.Fail(err.Error())
	}

	if !session.Alive() {
		r.sessions.ForceClose(session.ID)
		return protocol.Failf(
			"Excel process for session %s has died. Session has been closed. Please create a new session.",
			session.ID)
	}

	var result any
	err = session.Do(func(wb engine.Workbook) error {
		var handlerErr error
		result, handlerErr = handler(wb, req.Args)
		return handlerErr
	})
	if err != nil {
		if errors.Is(err, engine.ErrLiveExcelRequired) {
			return protocol.Failf("%s: %v (workbook %s is open with the file backend)",
				req.Command, err, session.FilePath)
		}
		return protocol.Fail(err.Error())
	}
	return protocol.Ok(result)
}

// decodeArgs unmarshals an args payload, treating an absent payload as an
// empty object.
func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
