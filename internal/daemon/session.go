package daemon

import (
	"sync"
	"time"

	"github.com/codefionn/exceld/internal/engine"
)

// Session binds one session id to one open workbook handle. Requests that
// address the same session are serialized through mu so two concurrent
// connections never drive the same engine instance at once.
type Session struct {
	ID        string
	FilePath  string
	CreatedAt time.Time
	Timeout   time.Duration

	mu       sync.Mutex
	workbook engine.Workbook
}

// SessionInfo is the wire representation of a session
type SessionInfo struct {
	SessionID string    `json:"sessionId"`
	FilePath  string    `json:"filePath"`
	Backend   string    `json:"backend"`
	CreatedAt time.Time `json:"createdAt"`
}

// Info snapshots the session for listings
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		SessionID: s.ID,
		FilePath:  s.FilePath,
		Backend:   s.workbook.BackendName(),
		CreatedAt: s.CreatedAt,
	}
}

// Do runs fn with exclusive access to the session's workbook
func (s *Session) Do(fn func(wb engine.Workbook) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.workbook)
}

// Alive probes the underlying engine without taking the session lock, so a
// hung operation does not block liveness checks.
func (s *Session) Alive() bool {
	return s.workbook.Alive()
}
