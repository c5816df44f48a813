package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/contentflow/internal/queue"
	"github.com/maheshrc27/contentflow/internal/transfer"
)

type ContentHandler struct {
	AsynqClient *asynq.Client
	now         func() time.Time
}

func NewContentHandler(asynqClient *asynq.Client) *ContentHandler {
	return &ContentHandler{AsynqClient: asynqClient, now: time.Now}
}

// Generate queues a generation task that schedules its result at the
// requested time.
func (h *ContentHandler) Generate(c *fiber.Ctx) error {
	if h.AsynqClient == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "Content generation queue is not configured")
	}

	var req transfer.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusBadRequest, "Unable to parse request body")
	}
	if err := req.Preferences.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	at, err := ParseScheduleTime(req.ScheduleDatetime, req.DelayMinutes, h.now())
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	taskID, err := queue.EnqueueContent(h.AsynqClient, queue.GenerateContentPayload{
		Preferences:   req.Preferences,
		Platforms:     req.Platforms,
		GenerateImage: req.GenerateImage,
		ImagePrompt:   req.ImagePrompt,
		ScheduleAt:    at,
	}, 0)
	if err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Error queueing content generation")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id":           taskID,
		"schedule_datetime": at,
	})
}
