// Package view selects which of the mutually exclusive presentation views
// is active for a session status, with support for pinning a past phase as
// a read-only override.
package view

import (
	"github.com/designpipe/dp/internal/models"
	"github.com/designpipe/dp/internal/phase"
)

// View identifies one of the mutually exclusive presentation surfaces.
type View int

const (
	ViewUpload View = iota
	ViewConsultation
	ViewAnalyzing
	ViewReady
	ViewProcessing
	ViewFailed
	ViewComplete
	ViewPastPhase
)

var viewNames = [...]string{
	"upload", "consultation", "analyzing", "ready",
	"processing", "failed", "complete", "past-phase",
}

func (v View) String() string {
	if v < ViewUpload || v > ViewPastPhase {
		return "upload"
	}
	return viewNames[v]
}

// Router owns the pinned-phase override. Pinning is purely a display-layer
// concern: it never touches polling or session state.
type Router struct {
	pinned *phase.Phase
}

// Pin pins a past phase for read-only viewing. Pinning the already-pinned
// phase unpins it (toggle).
func (r *Router) Pin(p phase.Phase) {
	if r.pinned != nil && *r.pinned == p {
		r.pinned = nil
		return
	}
	r.pinned = &p
}

// BackToLive clears any pinned phase.
func (r *Router) BackToLive() {
	r.pinned = nil
}

// Pinned returns the pinned phase, or nil when live.
func (r *Router) Pinned() *phase.Phase {
	return r.pinned
}

// Select returns the single active view for the status. A pinned phase
// always takes precedence; otherwise selection is a total function of the
// classified status, falling through to the upload view for unrecognized
// tokens.
func (r *Router) Select(status models.SessionStatus) View {
	if r.pinned != nil {
		return ViewPastPhase
	}
	return liveView(status)
}

func liveView(status models.SessionStatus) View {
	c := phase.Classify(status)
	switch {
	case c.Failed:
		return ViewFailed
	case c.Phase == phase.PhaseDone:
		return ViewComplete
	case status == models.StatusAnalyzing:
		return ViewAnalyzing
	case c.Processing:
		return ViewProcessing
	case status == models.StatusConsulting:
		return ViewConsultation
	case status == models.StatusFloorplanReady,
		status == models.StatusFurnitureFound,
		status == models.StatusPlacementReady:
		return ViewReady
	default:
		return ViewUpload
	}
}
