// Package api implements the HTTP client for the design pipeline backend.
// All transport errors carry the HTTP status so callers can distinguish the
// one specially-handled code (404 on session fetch) from retryable failures.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/designpipe/dp/internal/models"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the pipeline backend over JSON/HTTPS.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL (no trailing slash required).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// PipelineMode selects the backend's execution profile.
type PipelineMode string

const (
	ModeFast PipelineMode = "fast"
	ModePro  PipelineMode = "pro"
)

// CreateSession creates a fresh session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", nil, &resp); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return resp.SessionID, nil
}

// GetSession fetches the current session record.
func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// ListJobs fetches the session's jobs with their traces.
func (c *Client) ListJobs(ctx context.Context, sessionID string) ([]models.DesignJob, error) {
	var jobs []models.DesignJob
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/jobs", nil, &jobs); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// StartPipeline starts or advances the pipeline in the given mode.
func (c *Client) StartPipeline(ctx context.Context, sessionID string, mode PipelineMode) (models.SessionStatus, error) {
	var resp struct {
		Status models.SessionStatus `json:"status"`
		Mode   string               `json:"mode"`
	}
	path := "/sessions/" + url.PathEscape(sessionID) + "/pipeline?mode=" + url.QueryEscape(string(mode))
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", fmt.Errorf("start pipeline: %w", err)
	}
	return resp.Status, nil
}

// CancelPipeline requests cancellation. The session keeps reporting its
// current status until the backend observes the cancel, so callers keep
// polling afterwards.
func (c *Client) CancelPipeline(ctx context.Context, sessionID string) (models.SessionStatus, error) {
	var resp struct {
		Status models.SessionStatus `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/cancel", nil, &resp); err != nil {
		return "", fmt.Errorf("cancel pipeline: %w", err)
	}
	return resp.Status, nil
}

// SavePlacements persists edited placements.
func (c *Client) SavePlacements(ctx context.Context, sessionID string, placements []models.FurniturePlacement) error {
	body := struct {
		Placements []models.FurniturePlacement `json:"placements"`
	}{Placements: placements}
	if err := c.doJSON(ctx, http.MethodPatch, "/sessions/"+url.PathEscape(sessionID)+"/placements", body, nil); err != nil {
		return fmt.Errorf("save placements: %w", err)
	}
	return nil
}

// UploadFloorplan uploads a floorplan image (multipart) and returns the
// analyzed room data.
func (c *Client) UploadFloorplan(ctx context.Context, sessionID, imagePath string, mode PipelineMode) (*models.RoomData, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open floorplan: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read floorplan: %w", err)
	}
	if err := mw.WriteField("mode", string(mode)); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/sessions/"+url.PathEscape(sessionID)+"/floorplan", &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var room models.RoomData
	if err := c.send(req, &room); err != nil {
		return nil, fmt.Errorf("upload floorplan: %w", err)
	}
	return &room, nil
}

// doJSON issues a JSON request and decodes the response into out (when
// non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} bodies; anything else is dropped.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Error
}
