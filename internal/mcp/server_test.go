package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designpipe/dp/internal/api"
	"github.com/designpipe/dp/internal/models"
	"github.com/designpipe/dp/internal/store"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockAPI implements PipelineAPI for testing.
type mockAPI struct {
	sessions map[string]*models.Session
	jobs     map[string][]models.DesignJob

	startedModes []api.PipelineMode
	cancelled    []string

	// Optional error injection.
	getSessionErr error
	listJobsErr   error
	startErr      error
	cancelErr     error
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		sessions: map[string]*models.Session{},
		jobs:     map[string][]models.DesignJob{},
	}
}

func (m *mockAPI) GetSession(_ context.Context, id string) (*models.Session, error) {
	if m.getSessionErr != nil {
		return nil, m.getSessionErr
	}
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return sess, nil
}

func (m *mockAPI) ListJobs(_ context.Context, sessionID string) ([]models.DesignJob, error) {
	if m.listJobsErr != nil {
		return nil, m.listJobsErr
	}
	return m.jobs[sessionID], nil
}

func (m *mockAPI) StartPipeline(_ context.Context, sessionID string, mode api.PipelineMode) (models.SessionStatus, error) {
	if m.startErr != nil {
		return "", m.startErr
	}
	m.startedModes = append(m.startedModes, mode)
	return models.StatusAnalyzing, nil
}

func (m *mockAPI) CancelPipeline(_ context.Context, sessionID string) (models.SessionStatus, error) {
	if m.cancelErr != nil {
		return "", m.cancelErr
	}
	m.cancelled = append(m.cancelled, sessionID)
	return models.StatusPending, nil
}

// mockStore implements store.Store with in-memory maps.
type mockStore struct {
	records []*store.SessionRecord
	current string

	listErr error
}

func (m *mockStore) SaveSession(_ context.Context, rec *store.SessionRecord) error {
	for i, r := range m.records {
		if r.ID == rec.ID {
			m.records[i] = rec
			return nil
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockStore) GetSession(_ context.Context, id string) (*store.SessionRecord, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("session not found: %s", id)
}

func (m *mockStore) ListSessions(_ context.Context, limit int) ([]*store.SessionRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit > 0 && len(m.records) > limit {
		return m.records[:limit], nil
	}
	return m.records, nil
}

func (m *mockStore) DeleteSession(_ context.Context, id string) error { return nil }

func (m *mockStore) SetCurrentSession(_ context.Context, id string) error {
	m.current = id
	return nil
}

func (m *mockStore) CurrentSession(_ context.Context) (string, error) { return m.current, nil }

func (m *mockStore) RecordStatus(_ context.Context, _ string, _ models.SessionStatus) error {
	return nil
}

func (m *mockStore) StatusHistory(_ context.Context, _ string) ([]*store.StatusChange, error) {
	return nil, nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }
func (m *mockStore) Close() error                    { return nil }

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (*Server, *mockAPI, *mockStore) {
	t.Helper()

	ma := newMockAPI()
	ms := &mockStore{}

	srv := NewServer(ma, ms)
	require.NotNil(t, srv)

	return srv, ma, ms
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func seedSession(t *testing.T, ma *mockAPI, id string, status models.SessionStatus) *models.Session {
	t.Helper()
	sess := &models.Session{
		ID:           id,
		Status:       status,
		ClientName:   "Hartley residence",
		FloorplanURL: "https://cdn.example.com/plans/" + id + ".png",
		CreatedAt:    time.Now(),
	}
	ma.sessions[id] = sess
	return sess
}

func durPtr(ms int64) *int64 { return &ms }

// ---------------------------------------------------------------------------
// Tests: MCPServer registration
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv, "MCPServer() should return non-nil")
}

// ---------------------------------------------------------------------------
// Tests: dp_list_sessions
// ---------------------------------------------------------------------------

func TestHandleListSessions_Empty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleListSessions(context.Background(), callToolReq("dp_list_sessions", nil))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	var out []map[string]any
	resultJSON(t, result, &out)
	assert.Empty(t, out)
}

func TestHandleListSessions_WithSessions(t *testing.T) {
	srv, _, ms := newTestServer(t)

	ms.records = append(ms.records,
		&store.SessionRecord{ID: "sess-1", ClientName: "Hartley residence", Status: models.StatusComplete, Mode: "fast"},
		&store.SessionRecord{ID: "sess-2", ClientName: "Loft 4B", Status: models.StatusSearching, Mode: "pro"},
	)

	result, err := srv.handleListSessions(context.Background(), callToolReq("dp_list_sessions", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "sess-1")
	assert.Contains(t, text, "Loft 4B")
	assert.Contains(t, text, "searching")
}

func TestHandleListSessions_StoreError(t *testing.T) {
	srv, _, ms := newTestServer(t)
	ms.listErr = fmt.Errorf("database locked")

	result, err := srv.handleListSessions(context.Background(), callToolReq("dp_list_sessions", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "database locked")
}

// ---------------------------------------------------------------------------
// Tests: dp_session_status
// ---------------------------------------------------------------------------

func TestHandleSessionStatus_ClassifiesStatus(t *testing.T) {
	srv, ma, _ := newTestServer(t)
	seedSession(t, ma, "sess-1", models.StatusSearching)

	req := callToolReq("dp_session_status", map[string]any{"session_id": "sess-1"})
	result, err := srv.handleSessionStatus(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "searching", out["status"])
	assert.Equal(t, "Search", out["phase"])
	assert.Equal(t, false, out["terminal"])
	assert.Equal(t, true, out["processing"])
}

func TestHandleSessionStatus_FailedStatus(t *testing.T) {
	srv, ma, _ := newTestServer(t)
	seedSession(t, ma, "sess-1", models.StatusPlacingFailed)

	req := callToolReq("dp_session_status", map[string]any{"session_id": "sess-1"})
	result, err := srv.handleSessionStatus(context.Background(), req)
	require.NoError(t, err)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, true, out["failed"])
	assert.Equal(t, true, out["terminal"])
}

func TestHandleSessionStatus_DefaultsToCurrentSession(t *testing.T) {
	srv, ma, ms := newTestServer(t)
	seedSession(t, ma, "sess-7", models.StatusComplete)
	ms.current = "sess-7"

	result, err := srv.handleSessionStatus(context.Background(), callToolReq("dp_session_status", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "sess-7", out["id"])
}

func TestHandleSessionStatus_NoSessionAnywhere(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleSessionStatus(context.Background(), callToolReq("dp_session_status", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no current session")
}

func TestHandleSessionStatus_FetchError(t *testing.T) {
	srv, ma, _ := newTestServer(t)
	ma.getSessionErr = fmt.Errorf("backend unreachable")

	req := callToolReq("dp_session_status", map[string]any{"session_id": "sess-1"})
	result, err := srv.handleSessionStatus(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "backend unreachable")
}

// ---------------------------------------------------------------------------
// Tests: dp_trace_feed
// ---------------------------------------------------------------------------

func TestHandleTraceFeed_GroupsEvents(t *testing.T) {
	srv, ma, _ := newTestServer(t)
	seedSession(t, ma, "sess-1", models.StatusSearching)
	ma.jobs["sess-1"] = []models.DesignJob{
		{
			ID:        "job-1",
			SessionID: "sess-1",
			CreatedAt: time.Now(),
			Trace: []models.TraceEvent{
				{Step: "search_item_0", DurationMS: durPtr(900)},
				{Step: "search_item_1", DurationMS: durPtr(1100)},
				{Step: "parse_room"},
			},
		},
	}

	req := callToolReq("dp_trace_feed", map[string]any{"session_id": "sess-1"})
	result, err := srv.handleTraceFeed(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		Groups []struct {
			Step       string `json:"step"`
			Count      int    `json:"count"`
			DurationMS int64  `json:"duration_ms"`
		} `json:"groups"`
		Running string `json:"running"`
	}
	resultJSON(t, result, &out)

	require.Len(t, out.Groups, 1)
	assert.Equal(t, "search_item", out.Groups[0].Step)
	assert.Equal(t, 2, out.Groups[0].Count)
	assert.Equal(t, int64(2000), out.Groups[0].DurationMS)
	assert.Equal(t, "parse_room", out.Running)
}

func TestHandleTraceFeed_ListError(t *testing.T) {
	srv, ma, _ := newTestServer(t)
	ma.listJobsErr = fmt.Errorf("timeout")

	req := callToolReq("dp_trace_feed", map[string]any{"session_id": "sess-1"})
	result, err := srv.handleTraceFeed(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "timeout")
}

// ---------------------------------------------------------------------------
// Tests: dp_start_pipeline
// ---------------------------------------------------------------------------

func TestHandleStartPipeline_DefaultsToFast(t *testing.T) {
	srv, ma, _ := newTestServer(t)
	seedSession(t, ma, "sess-1", models.StatusPending)

	req := callToolReq("dp_start_pipeline", map[string]any{"session_id": "sess-1"})
	result, err := srv.handleStartPipeline(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, ma.startedModes, 1)
	assert.Equal(t, api.ModeFast, ma.startedModes[0])

	var out map[string]string
	resultJSON(t, result, &out)
	assert.Equal(t, "analyzing_floorplan", out["status"])
}

func TestHandleStartPipeline_ProMode(t *testing.T) {
	srv, ma, _ := newTestServer(t)
	seedSession(t, ma, "sess-1", models.StatusPending)

	req := callToolReq("dp_start_pipeline", map[string]any{"session_id": "sess-1", "mode": "pro"})
	result, err := srv.handleStartPipeline(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, ma.startedModes, 1)
	assert.Equal(t, api.ModePro, ma.startedModes[0])
}

func TestHandleStartPipeline_RejectsUnknownMode(t *testing.T) {
	srv, ma, _ := newTestServer(t)
	seedSession(t, ma, "sess-1", models.StatusPending)

	req := callToolReq("dp_start_pipeline", map[string]any{"session_id": "sess-1", "mode": "turbo"})
	result, err := srv.handleStartPipeline(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid mode")
	assert.Empty(t, ma.startedModes)
}

// ---------------------------------------------------------------------------
// Tests: dp_cancel_pipeline
// ---------------------------------------------------------------------------

func TestHandleCancelPipeline(t *testing.T) {
	srv, ma, _ := newTestServer(t)
	seedSession(t, ma, "sess-1", models.StatusPlacing)

	req := callToolReq("dp_cancel_pipeline", map[string]any{"session_id": "sess-1"})
	result, err := srv.handleCancelPipeline(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	assert.Equal(t, []string{"sess-1"}, ma.cancelled)
}

func TestHandleCancelPipeline_Error(t *testing.T) {
	srv, ma, _ := newTestServer(t)
	ma.cancelErr = fmt.Errorf("already terminal")

	req := callToolReq("dp_cancel_pipeline", map[string]any{"session_id": "sess-1"})
	result, err := srv.handleCancelPipeline(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "already terminal")
}
