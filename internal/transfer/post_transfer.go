package transfer

import (
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
)

// PostCreation is the service-level input for scheduling one post.
type PostCreation struct {
	Content          string
	ImagePath        string
	ImageURL         string
	Preferences      models.Preferences
	Platforms        models.Platforms
	ScheduleDatetime time.Time
}

// ScheduleRequest is the JSON body of POST /api/posts/schedule.
type ScheduleRequest struct {
	Content          string             `json:"content"`
	ImagePath        string             `json:"image_path"`
	Preferences      models.Preferences `json:"preferences"`
	Platforms        models.Platforms   `json:"platforms"`
	ScheduleDatetime string             `json:"schedule_datetime"`
	DelayMinutes     int                `json:"delay_minutes"`
}

// ScheduleFileRequest points at a reviewed-content file on the server.
type ScheduleFileRequest struct {
	Path             string           `json:"path"`
	Platforms        models.Platforms `json:"platforms"`
	ScheduleDatetime string           `json:"schedule_datetime"`
	DelayMinutes     int              `json:"delay_minutes"`
}

// ContentFile is the reviewed-content document written by the generation
// pipeline and accepted by ScheduleFromFile.
type ContentFile struct {
	Content     string             `json:"content"`
	Preferences models.Preferences `json:"preferences"`
	ImagePath   string             `json:"image_path,omitempty"`
	ImageURL    string             `json:"image_url,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	Reviewed    bool               `json:"reviewed"`
}

type GenerateRequest struct {
	Preferences      models.Preferences `json:"preferences"`
	Platforms        models.Platforms   `json:"platforms"`
	GenerateImage    bool               `json:"generate_image"`
	ImagePrompt      string             `json:"image_prompt"`
	ScheduleDatetime string             `json:"schedule_datetime"`
	DelayMinutes     int                `json:"delay_minutes"`
}

type CancelResponse struct {
	ID        string `json:"id"`
	Cancelled bool   `json:"cancelled"`
	Reason    string `json:"reason,omitempty"`
}
