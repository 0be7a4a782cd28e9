// Package phase classifies backend session statuses into pipeline phases.
// It is the single source of truth for phase, terminal, and failure
// semantics; no other package compares status strings directly.
package phase

import (
	"strings"

	"github.com/designpipe/dp/internal/models"
)

// Phase is one of the six ordered pipeline stages.
type Phase int

const (
	PhaseUpload Phase = iota
	PhaseAnalyze
	PhaseSearch
	PhaseSource
	PhasePlace
	PhaseDone
)

var phaseNames = [...]string{"Upload", "Analyze", "Search", "Source", "Place", "Done"}

func (p Phase) String() string {
	if p < PhaseUpload || p > PhaseDone {
		return "Upload"
	}
	return phaseNames[p]
}

// Classification is the full status verdict for a session status token.
type Classification struct {
	Phase      Phase
	Label      string
	Terminal   bool
	Failed     bool
	Processing bool
}

// statusInfo is the total mapping for known tokens. Unknown tokens fall back
// to phase Upload, non-terminal, non-failed so the client degrades gracefully
// when the backend introduces new states.
var statusInfo = map[models.SessionStatus]Classification{
	models.StatusPending:          {Phase: PhaseUpload, Label: "Waiting for floorplan", Terminal: true},
	models.StatusConsulting:       {Phase: PhaseUpload, Label: "Consultation in progress"},
	models.StatusAnalyzing:        {Phase: PhaseAnalyze, Label: "Analyzing floorplan", Processing: true},
	models.StatusFloorplanReady:   {Phase: PhaseAnalyze, Label: "Floorplan ready", Terminal: true},
	models.StatusFloorplanFailed:  {Phase: PhaseAnalyze, Label: "Floorplan analysis failed", Terminal: true, Failed: true},
	models.StatusSearching:        {Phase: PhaseSearch, Label: "Searching furniture", Processing: true},
	models.StatusFurnitureFound:   {Phase: PhaseSearch, Label: "Furniture curated", Terminal: true},
	models.StatusSearchingFailed:  {Phase: PhaseSearch, Label: "Furniture search failed", Terminal: true, Failed: true},
	models.StatusSourcing:         {Phase: PhaseSource, Label: "Sourcing 3D models", Processing: true},
	models.StatusSourcingFailed:   {Phase: PhaseSource, Label: "3D sourcing failed", Terminal: true, Failed: true},
	models.StatusPlacing:          {Phase: PhasePlace, Label: "Placing furniture", Processing: true},
	models.StatusPlacingFurniture: {Phase: PhasePlace, Label: "Placing furniture", Processing: true},
	models.StatusPlacingFailed:    {Phase: PhasePlace, Label: "Placement failed", Terminal: true, Failed: true},
	models.StatusPlacementReady:   {Phase: PhasePlace, Label: "Placement ready", Terminal: true},
	models.StatusPlacementFailed:  {Phase: PhasePlace, Label: "Placement failed", Terminal: true, Failed: true},
	models.StatusComplete:         {Phase: PhaseDone, Label: "Design complete", Terminal: true},
	models.StatusCheckout:         {Phase: PhaseDone, Label: "Checkout", Terminal: true},
}

// Classify maps a status token to its classification. Total over all
// strings: unrecognized tokens yield a non-terminal, non-failed Upload-phase
// result with the raw token as label.
func Classify(status models.SessionStatus) Classification {
	if c, ok := statusInfo[status]; ok {
		return c
	}
	c := Classification{Phase: PhaseUpload, Label: humanize(string(status))}
	if IsFailed(status) {
		// Unknown *_failed variants are still failures, and failures are
		// always terminal for polling purposes.
		c.Failed = true
		c.Terminal = true
	}
	return c
}

// IsFailed reports whether a status token denotes a pipeline failure.
func IsFailed(status models.SessionStatus) bool {
	return status == "failed" || strings.HasSuffix(string(status), "_failed")
}

func humanize(token string) string {
	if token == "" {
		return "Unknown"
	}
	return strings.ReplaceAll(token, "_", " ")
}
