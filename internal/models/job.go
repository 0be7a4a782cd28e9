package models

import "time"

// DesignJob is one backend execution unit belonging to a session. A session
// accumulates jobs over retries; a job is immutable once terminal, but its
// trace grows monotonically while it runs.
type DesignJob struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	Phase     string       `json:"phase"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	Trace     []TraceEvent `json:"trace"`
}
