package queue

import (
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/service"
)

// Queue runs the asynq content pipeline: draft, review, illustrate and hand
// the result to the scheduler.
type Queue struct {
	cs        service.ContentService
	is        service.ImageService
	archive   service.ImageArchive
	scheduler service.SchedulerService
	outputDir string
	now       func() time.Time
}

// NewQueue wires the pipeline. is and archive may be nil.
func NewQueue(
	cs service.ContentService,
	is service.ImageService,
	archive service.ImageArchive,
	scheduler service.SchedulerService,
	outputDir string) *Queue {
	return &Queue{
		cs:        cs,
		is:        is,
		archive:   archive,
		scheduler: scheduler,
		outputDir: outputDir,
		now:       time.Now,
	}
}

const TaskTypeGenerateContent = "content:generate"

type GenerateContentPayload struct {
	Preferences   models.Preferences `json:"preferences"`
	Platforms     models.Platforms   `json:"platforms"`
	GenerateImage bool               `json:"generate_image"`
	ImagePrompt   string             `json:"image_prompt,omitempty"`
	ScheduleAt    time.Time          `json:"schedule_at"`
}
