package models

// TraceEvent is one progress record in a job's trace. DurationMS is the sole
// discriminant between in-flight (nil) and completed events; everything else
// is optional detail for an expandable view.
type TraceEvent struct {
	Step        string         `json:"step"`
	Message     string         `json:"message,omitempty"`
	Model       string         `json:"model,omitempty"`
	DurationMS  *int64         `json:"duration_ms,omitempty"`
	InputPrompt string         `json:"input_prompt,omitempty"`
	OutputText  string         `json:"output_text,omitempty"`
	InputImage  string         `json:"input_image,omitempty"`
	OutputImage string         `json:"output_image,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Completed reports whether the event has finished executing.
func (e TraceEvent) Completed() bool {
	return e.DurationMS != nil
}

// Visual returns the event's image URL, preferring image_url over
// output_image, or "" when the event carries no image.
func (e TraceEvent) Visual() string {
	if e.ImageURL != "" {
		return e.ImageURL
	}
	return e.OutputImage
}
