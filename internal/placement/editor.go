// Package placement tracks local placement edits against the last-fetched
// server copy so unsaved changes survive the polling loop.
package placement

import "github.com/designpipe/dp/internal/models"

// Editor keeps a local shadow copy of the session's placements. The server
// copy is owned by whoever fetches the session; the editor only ever reads
// it.
type Editor struct {
	server []models.FurniturePlacement
	local  []models.FurniturePlacement
}

// NewEditor seeds both copies from the server's placements.
func NewEditor(server []models.FurniturePlacement) *Editor {
	return &Editor{
		server: clonePlacements(server),
		local:  clonePlacements(server),
	}
}

// Local returns the editable copy.
func (e *Editor) Local() []models.FurniturePlacement {
	return clonePlacements(e.local)
}

// SetLocal replaces the local copy with an edited placement set.
func (e *Editor) SetLocal(p []models.FurniturePlacement) {
	e.local = clonePlacements(p)
}

// HasUnsavedChanges reports whether the local copy differs from the
// last-fetched server copy.
func (e *Editor) HasUnsavedChanges() bool {
	return !placementsEqual(e.local, e.server)
}

// AdoptServer reconciles with a fresh fetch. A nil placement set means the
// server supplied nothing and is ignored. When the local copy is clean it
// follows the server; pending local edits are preserved and re-diffed
// against the new server copy.
func (e *Editor) AdoptServer(server []models.FurniturePlacement) {
	if server == nil {
		return
	}
	clean := placementsEqual(e.local, e.server)
	e.server = clonePlacements(server)
	if clean {
		e.local = clonePlacements(server)
	}
}

func clonePlacements(p []models.FurniturePlacement) []models.FurniturePlacement {
	if p == nil {
		return nil
	}
	out := make([]models.FurniturePlacement, len(p))
	copy(out, p)
	return out
}

func placementsEqual(a, b []models.FurniturePlacement) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
