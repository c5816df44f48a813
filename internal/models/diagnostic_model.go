package models

type ImageDiagnostic struct {
	PostID      string `json:"post_id"`
	ImagePath   string `json:"image_path,omitempty"`
	HasImage    bool   `json:"has_image"`
	ImageExists bool   `json:"image_exists"`
	ImageValid  bool   `json:"image_valid"`
	// Mismatch flags a record that claims an image that cannot be published.
	Mismatch bool   `json:"mismatch"`
	Detail   string `json:"detail,omitempty"`
}

type Diagnostics struct {
	Running      bool              `json:"running"`
	ActiveCount  int               `json:"active_count"`
	StatusCounts map[string]int    `json:"status_counts"`
	Images       []ImageDiagnostic `json:"images"`
	Mismatches   int               `json:"mismatches"`
}
