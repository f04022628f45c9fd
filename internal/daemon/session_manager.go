package daemon

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/exceld/internal/engine"
	"github.com/codefionn/exceld/internal/history"
	"github.com/codefionn/exceld/internal/logger"
)

// SessionManager owns the session id -> workbook handle map. All session
// lifecycle (create, lookup, close, forced teardown) goes through it.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	factory        engine.Factory
	history        *history.Store
	defaultTimeout time.Duration
	log            *logger.Logger
}

// NewSessionManager creates a session manager backed by the given workbook
// factory. The history store may be nil (history recording disabled).
func NewSessionManager(factory engine.Factory, hist *history.Store, defaultTimeout time.Duration) *SessionManager {
	return &SessionManager{
		sessions:       make(map[string]*Session),
		factory:        factory,
		history:        hist,
		defaultTimeout: defaultTimeout,
		log:            logger.WithPrefix("sessions"),
	}
}

// CreateSession opens an existing workbook file and registers a new session
// for it. The file must exist.
func (m *SessionManager) CreateSession(path string, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("workbook file does not exist: %s", path)
	}

	workbook, err := m.factory.Open(path, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	return m.register(path, timeout, workbook), nil
}

// CreateSessionForNewFile creates a new workbook file and a session for it.
// The path must not exist yet and must carry an allowed extension.
func (m *SessionManager) CreateSessionForNewFile(path string, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}
	if err := engine.ValidateNewFileExtension(path); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file already exists: %s", path)
	}

	workbook, err := m.factory.Create(path, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create workbook: %w", err)
	}

	return m.register(path, timeout, workbook), nil
}

func (m *SessionManager) register(path string, timeout time.Duration, workbook engine.Workbook) *Session {
	session := &Session{
		ID:        uuid.NewString(),
		FilePath:  path,
		CreatedAt: time.Now(),
		Timeout:   timeout,
		workbook:  workbook,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	if m.history != nil {
		if err := m.history.RecordOpen(path); err != nil {
			m.log.Warn("Failed to record workbook open: %v", err)
		}
	}

	m.log.Info("Created session %s for %s (%s backend)",
		session.ID, path, workbook.BackendName())
	return session
}

// GetSession looks up a session by id
func (m *SessionManager) GetSession(id string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("Session '%s' not found", id)
	}
	return session, nil
}

// CloseSession removes the session and closes its workbook, optionally
// saving first. Closing an unknown session is an error; closing a session
// whose engine died succeeds (the handle close is best effort).
func (m *SessionManager) CloseSession(id string, save bool) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("Session '%s' not found", id)
	}

	err := session.Do(func(wb engine.Workbook) error {
		return wb.Close(save)
	})
	if err != nil {
		m.log.Warn("Error closing session %s: %v", id, err)
		return err
	}
	m.log.Info("Closed session %s (save=%v)", id, save)
	return nil
}

// ForceClose tears a session down without saving, swallowing close errors.
// Used when the engine process behind the session has died.
func (m *SessionManager) ForceClose(id string) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if err := session.Do(func(wb engine.Workbook) error { return wb.Close(false) }); err != nil {
		m.log.Debug("Ignoring close error during forced teardown of %s: %v", id, err)
	}
	m.log.Warn("Force-closed session %s (%s)", id, session.FilePath)
}

// ActiveSessions lists all sessions ordered by creation time
func (m *SessionManager) ActiveSessions() []SessionInfo {
	m.mu.RLock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, session := range m.sessions {
		infos = append(infos, session.Info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Count returns the number of active sessions
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session without saving. Pending edits on live
// engines are discarded; callers wanting saves issue session.save first.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		if err := session.Do(func(wb engine.Workbook) error { return wb.Close(false) }); err != nil {
			m.log.Warn("Error closing session %s during shutdown: %v", session.ID, err)
		}
	}
	if len(sessions) > 0 {
		m.log.Info("Shut down %d session(s)", len(sessions))
	}
}
