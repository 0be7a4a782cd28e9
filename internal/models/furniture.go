package models

// FurnitureItem is one curated furniture result. Payload-only: rendered but
// never interpreted by the client.
type FurnitureItem struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price,omitempty"`
	Currency   string  `json:"currency,omitempty"`
	WidthCM    float64 `json:"width_cm,omitempty"`
	DepthCM    float64 `json:"depth_cm,omitempty"`
	HeightCM   float64 `json:"height_cm,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	ProductURL string  `json:"product_url,omitempty"`
	ModelURL   string  `json:"model_url,omitempty"`
}

// FurniturePlacement positions one furniture item inside the room.
type FurniturePlacement struct {
	Name        string  `json:"name"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	RotationDeg float64 `json:"rotation_deg,omitempty"`
}

// RoomData is the analyzed room geometry.
type RoomData struct {
	RoomType string   `json:"room_type,omitempty"`
	WidthM   float64  `json:"width_m,omitempty"`
	LengthM  float64  `json:"length_m,omitempty"`
	HeightM  float64  `json:"height_m,omitempty"`
	Features []string `json:"features,omitempty"`
}
