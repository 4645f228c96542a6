package types

import "github.com/andresmejia3/harris/internal/harris"

// ImageTask represents a single image sent to an engine for detection
type ImageTask struct {
	Index int
	Path  string
}

// DetectResult is what an engine hands back for one task.
// Err is set instead of Result when decoding or detection failed.
type DetectResult struct {
	Index   int
	Path    string
	ImageID string
	Result  *harris.Result
	Err     error
}

// DetectionSummary is the JSON shape printed by `detect --json`.
type DetectionSummary struct {
	Path        string          `json:"path"`
	ImageID     string          `json:"image_id"`
	DetectionID string          `json:"detection_id,omitempty"`
	Output      string          `json:"output,omitempty"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	MaxResponse float64         `json:"max_response"`
	CornerCount int             `json:"corner_count"`
	Corners     []harris.Corner `json:"corners,omitempty"`
	Error       string          `json:"error,omitempty"`
}
