package models

import "time"

// SessionStatus is one of the closed set of status tokens reported by the
// pipeline backend. Tokens outside this set may appear when the backend is
// newer than the client; consumers must degrade gracefully rather than error.
type SessionStatus string

const (
	StatusPending          SessionStatus = "pending"
	StatusConsulting       SessionStatus = "consulting"
	StatusAnalyzing        SessionStatus = "analyzing_floorplan"
	StatusFloorplanReady   SessionStatus = "floorplan_ready"
	StatusFloorplanFailed  SessionStatus = "floorplan_failed"
	StatusSearching        SessionStatus = "searching"
	StatusFurnitureFound   SessionStatus = "furniture_found"
	StatusSearchingFailed  SessionStatus = "searching_failed"
	StatusSourcing         SessionStatus = "sourcing"
	StatusSourcingFailed   SessionStatus = "sourcing_failed"
	StatusPlacing          SessionStatus = "placing"
	StatusPlacingFurniture SessionStatus = "placing_furniture"
	StatusPlacingFailed    SessionStatus = "placing_failed"
	StatusPlacementReady   SessionStatus = "placement_ready"
	StatusPlacementFailed  SessionStatus = "placement_failed"
	StatusComplete         SessionStatus = "complete"
	StatusCheckout         SessionStatus = "checkout"
)

// AllStatuses lists every known status token, in pipeline order.
var AllStatuses = []SessionStatus{
	StatusPending, StatusConsulting,
	StatusAnalyzing, StatusFloorplanReady, StatusFloorplanFailed,
	StatusSearching, StatusFurnitureFound, StatusSearchingFailed,
	StatusSourcing, StatusSourcingFailed,
	StatusPlacing, StatusPlacingFurniture, StatusPlacingFailed,
	StatusPlacementReady, StatusPlacementFailed,
	StatusComplete, StatusCheckout,
}

// Session is the unit of pipeline work. Only Status drives client control
// flow; the payload fields fill in incrementally as the backend advances.
// The client never mutates a session locally except by re-fetching.
type Session struct {
	ID            string               `json:"id"`
	Status        SessionStatus        `json:"status"`
	FloorplanURL  string               `json:"floorplan_url,omitempty"`
	RoomGLBURL    string               `json:"room_glb_url,omitempty"`
	RoomData      *RoomData            `json:"room_data,omitempty"`
	FurnitureList []FurnitureItem      `json:"furniture_list,omitempty"`
	Placements    []FurniturePlacement `json:"placements,omitempty"`
	Preferences   map[string]any       `json:"preferences,omitempty"`
	MiroBoardURL  string               `json:"miro_board_url,omitempty"`
	ClientName    string               `json:"client_name,omitempty"`
	DemoSelected  bool                 `json:"demo_selected,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}
