// Package mcp exposes the design pipeline to agent tooling over the Model
// Context Protocol: session status, aggregated trace feeds, and the
// start/cancel mutations.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/designpipe/dp/internal/api"
	"github.com/designpipe/dp/internal/feed"
	"github.com/designpipe/dp/internal/models"
	"github.com/designpipe/dp/internal/phase"
	"github.com/designpipe/dp/internal/store"
)

// PipelineAPI is the backend surface the MCP tools need.
type PipelineAPI interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListJobs(ctx context.Context, sessionID string) ([]models.DesignJob, error)
	StartPipeline(ctx context.Context, sessionID string, mode api.PipelineMode) (models.SessionStatus, error)
	CancelPipeline(ctx context.Context, sessionID string) (models.SessionStatus, error)
}

// Server wraps the backend client and local store as MCP tools.
type Server struct {
	api   PipelineAPI
	store store.Store
}

// NewServer creates the MCP server wrapper.
func NewServer(a PipelineAPI, s store.Store) *Server {
	return &Server{api: a, store: s}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("dp", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listSessionsTool())
	srv.AddTool(s.sessionStatusTool())
	srv.AddTool(s.traceFeedTool())
	srv.AddTool(s.startPipelineTool())
	srv.AddTool(s.cancelPipelineTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// resolveSessionID falls back to the locally stored current session when the
// tool call omits an id.
func (s *Server) resolveSessionID(ctx context.Context, request mcp.CallToolRequest) (string, error) {
	if id := request.GetString("session_id", ""); id != "" {
		return id, nil
	}
	id, err := s.store.CurrentSession(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("no session_id given and no current session set")
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// dp_list_sessions
func (s *Server) listSessionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dp_list_sessions",
		mcp.WithDescription("List locally known design sessions. Returns a JSON array with id, client_name, last observed status, and mode."),
	)
	return tool, s.handleListSessions
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.store.ListSessions(ctx, 50)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}

	type sessionOut struct {
		ID         string `json:"id"`
		ClientName string `json:"client_name"`
		Status     string `json:"status"`
		Mode       string `json:"mode"`
		LastSeenAt string `json:"last_seen_at"`
	}

	out := make([]sessionOut, len(sessions))
	for i, rec := range sessions {
		out[i] = sessionOut{
			ID:         rec.ID,
			ClientName: rec.ClientName,
			Status:     string(rec.Status),
			Mode:       rec.Mode,
			LastSeenAt: rec.LastSeenAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal sessions: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// dp_session_status
func (s *Server) sessionStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dp_session_status",
		mcp.WithDescription("Fetch a design session and classify its status: phase, terminal, failed, processing, plus payload URLs."),
		mcp.WithString("session_id", mcp.Description("Session id (defaults to the current session)")),
	)
	return tool, s.handleSessionStatus
}

func (s *Server) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveSessionID(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sess, err := s.api.GetSession(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch session: %v", err)), nil
	}

	c := phase.Classify(sess.Status)
	out := map[string]any{
		"id":             sess.ID,
		"status":         string(sess.Status),
		"phase":          c.Phase.String(),
		"phase_index":    int(c.Phase),
		"label":          c.Label,
		"terminal":       c.Terminal,
		"failed":         c.Failed,
		"processing":     c.Processing,
		"client_name":    sess.ClientName,
		"floorplan_url":  sess.FloorplanURL,
		"room_glb_url":   sess.RoomGLBURL,
		"miro_board_url": sess.MiroBoardURL,
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// dp_trace_feed
func (s *Server) traceFeedTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dp_trace_feed",
		mcp.WithDescription("Aggregate a session's job trace events into a grouped progress feed with counts, summed durations, the in-flight step, and the latest preview image."),
		mcp.WithString("session_id", mcp.Description("Session id (defaults to the current session)")),
	)
	return tool, s.handleTraceFeed
}

func (s *Server) handleTraceFeed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveSessionID(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	jobs, err := s.api.ListJobs(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list jobs: %v", err)), nil
	}

	f := feed.FromJobs(jobs)

	type groupOut struct {
		Step       string `json:"step"`
		Label      string `json:"label"`
		Count      int    `json:"count"`
		DurationMS int64  `json:"duration_ms"`
	}
	out := struct {
		Groups       []groupOut `json:"groups"`
		Running      string     `json:"running,omitempty"`
		LatestVisual string     `json:"latest_visual,omitempty"`
	}{Groups: make([]groupOut, len(f.Groups))}

	for i, g := range f.Groups {
		out.Groups[i] = groupOut{
			Step:       g.BaseStep,
			Label:      g.Label(),
			Count:      g.Count(),
			DurationMS: g.TotalDurationMS(),
		}
	}
	if f.Running != nil {
		out.Running = f.Running.Step
	}
	out.LatestVisual = f.LatestVisual

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal feed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// dp_start_pipeline
func (s *Server) startPipelineTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dp_start_pipeline",
		mcp.WithDescription("Start or retry the design pipeline for a session. Mode 'fast' or 'pro'."),
		mcp.WithString("session_id", mcp.Description("Session id (defaults to the current session)")),
		mcp.WithString("mode", mcp.Description("Execution mode: fast or pro (default fast)")),
	)
	return tool, s.handleStartPipeline
}

func (s *Server) handleStartPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveSessionID(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	mode := api.PipelineMode(request.GetString("mode", string(api.ModeFast)))
	if mode != api.ModeFast && mode != api.ModePro {
		return mcp.NewToolResultError(fmt.Sprintf("invalid mode: %s", mode)), nil
	}

	status, err := s.api.StartPipeline(ctx, id, mode)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start pipeline: %v", err)), nil
	}

	data, _ := json.Marshal(map[string]string{"session_id": id, "status": string(status), "mode": string(mode)})
	return mcp.NewToolResultText(string(data)), nil
}

// dp_cancel_pipeline
func (s *Server) cancelPipelineTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dp_cancel_pipeline",
		mcp.WithDescription("Request cancellation of a session's running pipeline."),
		mcp.WithString("session_id", mcp.Description("Session id (defaults to the current session)")),
	)
	return tool, s.handleCancelPipeline
}

func (s *Server) handleCancelPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveSessionID(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status, err := s.api.CancelPipeline(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to cancel pipeline: %v", err)), nil
	}

	data, _ := json.Marshal(map[string]string{"session_id": id, "status": string(status)})
	return mcp.NewToolResultText(string(data)), nil
}
