package daemon

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/exceld/internal/protocol"
)

func newTestRouter(t *testing.T) (*Router, *SessionManager, *fakeFactory) {
	t.Helper()
	manager, factory := newTestManager()
	router := NewRouter(manager, nil, "test", nil)
	return router, manager, factory
}

func createTestSession(t *testing.T, router *Router) string {
	t.Helper()
	path := writeTempWorkbook(t)
	resp := router.Dispatch(&protocol.Request{
		Command: "session.create",
		Args:    json.RawMessage(fmt.Sprintf(`{"filePath":%q}`, path)),
	})
	require.True(t, resp.Success, "session.create failed: %s", resp.ErrorMessage)

	var info SessionInfo
	require.NoError(t, json.Unmarshal(resp.Result, &info))
	return info.SessionID
}

func TestDispatchUnknownCategory(t *testing.T) {
	router, manager, _ := newTestRouter(t)

	resp := router.Dispatch(&protocol.Request{Command: "nosuch.thing"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown command category: nosuch", resp.ErrorMessage)
	assert.Equal(t, 0, manager.Count())
}

func TestDispatchUnknownAction(t *testing.T) {
	router, _, _ := newTestRouter(t)
	id := createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{Command: "sheet.explode", SessionID: id})
	assert.False(t, resp.Success)
	assert.Equal(t, "Unsupported sheet action: explode", resp.ErrorMessage)
}

func TestDispatchCommandWithoutDot(t *testing.T) {
	router, _, _ := newTestRouter(t)

	resp := router.Dispatch(&protocol.Request{Command: "daemon"})
	assert.False(t, resp.Success)
}

func TestDispatchIsCaseInsensitive(t *testing.T) {
	router, _, _ := newTestRouter(t)
	id := createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{Command: "Sheet.LIST", SessionID: id})
	assert.True(t, resp.Success, resp.ErrorMessage)
}

func TestDaemonPing(t *testing.T) {
	router, _, _ := newTestRouter(t)

	resp := router.Dispatch(&protocol.Request{Command: "daemon.ping"})
	require.True(t, resp.Success)
	assert.Equal(t, `"pong"`, string(resp.Result))
}

func TestDaemonStatus(t *testing.T) {
	router, _, factory := newTestRouter(t)
	createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{Command: "daemon.status"})
	require.True(t, resp.Success)

	var status daemonStatus
	require.NoError(t, json.Unmarshal(resp.Result, &status))
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, 1, status.ActiveSessions)
	require.Len(t, status.Sessions, 1)
	assert.Equal(t, factory.last().Path(), status.Sessions[0].FilePath)
}

func TestDaemonShutdownInvokesCallback(t *testing.T) {
	manager, _ := newTestManager()
	called := make(chan struct{})
	router := NewRouter(manager, nil, "test", func() { close(called) })

	resp := router.Dispatch(&protocol.Request{Command: "daemon.shutdown"})
	require.True(t, resp.Success)
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("shutdown callback was not invoked")
	}
}

func TestSessionScopedRequiresSessionID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	resp := router.Dispatch(&protocol.Request{Command: "sheet.list"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "sessionId is required")
}

func TestSessionScopedUnknownSession(t *testing.T) {
	router, _, _ := newTestRouter(t)

	resp := router.Dispatch(&protocol.Request{Command: "sheet.list", SessionID: "nope"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Session 'nope' not found", resp.ErrorMessage)
}

func TestDeadEngineTearsSessionDown(t *testing.T) {
	router, manager, factory := newTestRouter(t)
	id := createTestSession(t, router)

	factory.last().kill()

	resp := router.Dispatch(&protocol.Request{Command: "sheet.list", SessionID: id})
	require.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "has died")
	assert.Contains(t, resp.ErrorMessage, "create a new session")

	// The session is gone; the same id now reports not found
	resp = router.Dispatch(&protocol.Request{Command: "sheet.list", SessionID: id})
	assert.Contains(t, resp.ErrorMessage, "not found")
	assert.Equal(t, 0, manager.Count())
}

func TestSheetListAndCreate(t *testing.T) {
	router, _, _ := newTestRouter(t)
	id := createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{
		Command:   "sheet.create",
		SessionID: id,
		Args:      json.RawMessage(`{"sheet":"Data"}`),
	})
	require.True(t, resp.Success, resp.ErrorMessage)

	resp = router.Dispatch(&protocol.Request{Command: "sheet.list", SessionID: id})
	require.True(t, resp.Success)

	var sheets []map[string]any
	require.NoError(t, json.Unmarshal(resp.Result, &sheets))
	require.Len(t, sheets, 2)
	assert.Equal(t, "Data", sheets[1]["name"])
}

func TestSessionSaveAndClose(t *testing.T) {
	router, _, factory := newTestRouter(t)
	id := createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{Command: "session.save", SessionID: id})
	require.True(t, resp.Success, resp.ErrorMessage)
	assert.Equal(t, 1, factory.last().saved)

	resp = router.Dispatch(&protocol.Request{
		Command:   "session.close",
		SessionID: id,
		Args:      json.RawMessage(`{"save":true}`),
	})
	require.True(t, resp.Success, resp.ErrorMessage)
	assert.True(t, factory.last().closed)
}

func TestSessionSaveAsValidatesExtension(t *testing.T) {
	router, _, _ := newTestRouter(t)
	id := createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{
		Command:   "session.save-as",
		SessionID: id,
		Args:      json.RawMessage(`{"filePath":"/tmp/out.csv"}`),
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "not allowed")
}

func TestCalculationModeRoundTrip(t *testing.T) {
	router, _, _ := newTestRouter(t)
	id := createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{
		Command:   "session.set-calculation-mode",
		SessionID: id,
		Args:      json.RawMessage(`{"mode":"manual"}`),
	})
	require.True(t, resp.Success, resp.ErrorMessage)

	resp = router.Dispatch(&protocol.Request{Command: "session.get-calculation-mode", SessionID: id})
	require.True(t, resp.Success, resp.ErrorMessage)
	assert.JSONEq(t, `{"mode":"manual"}`, string(resp.Result))
}

func TestSetCalculationModeRequiresMode(t *testing.T) {
	router, _, _ := newTestRouter(t)
	id := createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{Command: "session.set-calculation-mode", SessionID: id})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "mode is required")
}

func TestScreenshotNeedsLiveExcel(t *testing.T) {
	router, _, _ := newTestRouter(t)
	id := createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{
		Command:   "range.screenshot",
		SessionID: id,
		Args:      json.RawMessage(`{"sheet":"Sheet1","range":"A1:C5","outputPath":"/tmp/shot.png"}`),
	})
	require.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "live Excel")
}

func TestLiveOnlyOperationMessage(t *testing.T) {
	router, _, _ := newTestRouter(t)
	id := createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{Command: "powerquery.list", SessionID: id})
	require.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "live Excel")
}

func TestMalformedArgs(t *testing.T) {
	router, _, _ := newTestRouter(t)
	id := createTestSession(t, router)

	resp := router.Dispatch(&protocol.Request{
		Command:   "sheet.create",
		SessionID: id,
		Args:      json.RawMessage(`{"sheet":42}`),
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "invalid arguments")
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	router, _, _ := newTestRouter(t)
	id := createTestSession(t, router)

	// table.list is not implemented on the fake and panics through the
	// embedded interface
	resp := router.Dispatch(&protocol.Request{Command: "table.list", SessionID: id})
	require.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "internal error")
}

func TestSessionListEmpty(t *testing.T) {
	router, _, _ := newTestRouter(t)

	resp := router.Dispatch(&protocol.Request{Command: "session.list"})
	require.True(t, resp.Success)
	assert.Equal(t, "[]", string(resp.Result))
}
