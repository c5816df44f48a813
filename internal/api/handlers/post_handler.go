package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/repository"
	"github.com/maheshrc27/contentflow/internal/service"
	"github.com/maheshrc27/contentflow/internal/transfer"
)

type PostHandler struct {
	s          service.SchedulerService
	ph         repository.PostingHistoryRepository
	contentDir string
	now        func() time.Time
}

// NewPostHandler builds the post routes. ph may be nil when no history
// database is configured. schedule-file only reads files under contentDir.
func NewPostHandler(service service.SchedulerService, ph repository.PostingHistoryRepository, contentDir string) *PostHandler {
	return &PostHandler{s: service, ph: ph, contentDir: contentDir, now: time.Now}
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	var req transfer.ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusBadRequest, "Unable to parse request body")
	}

	at, err := ParseScheduleTime(req.ScheduleDatetime, req.DelayMinutes, h.now())
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	id, err := h.s.SchedulePost(c.Context(), &transfer.PostCreation{
		Content:          req.Content,
		ImagePath:        req.ImagePath,
		Preferences:      req.Preferences,
		Platforms:        req.Platforms,
		ScheduleDatetime: at,
	})
	if err != nil {
		return errorJSON(c, scheduleErrorStatus(err), err.Error())
	}
	slog.Info("post scheduled", "id", id, "operator", GetOperator(c))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":                id,
		"schedule_datetime": at,
		"message":           "Post scheduled successfully",
	})
}

func (h *PostHandler) ScheduleFromFile(c *fiber.Ctx) error {
	var req transfer.ScheduleFileRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusBadRequest, "Unable to parse request body")
	}
	if req.Path == "" {
		return errorJSON(c, fiber.StatusBadRequest, "path is required")
	}
	path, err := ResolveContentPath(h.contentDir, req.Path)
	if err != nil {
		slog.Warn("schedule-file path refused", "path", req.Path, "operator", GetOperator(c))
		return errorJSON(c, fiber.StatusBadRequest, ErrPathOutsideRoot.Error())
	}

	at, err := ParseScheduleTime(req.ScheduleDatetime, req.DelayMinutes, h.now())
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	id, err := h.s.ScheduleFromFile(c.Context(), path, at, req.Platforms)
	if err != nil {
		return errorJSON(c, scheduleErrorStatus(err), err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":                id,
		"schedule_datetime": at,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.s.List(c.Context()))
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.Get(c.Context(), c.Params("id"))
	if err != nil {
		return errorJSON(c, lookupErrorStatus(err), err.Error())
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) PostHistory(c *fiber.Ctx) error {
	if h.ph == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "Posting history is not configured")
	}
	history, err := h.ph.GetByPostID(c.Context(), c.Params("id"))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to load posting history")
	}
	if history == nil {
		history = []*models.PostingHistory{}
	}
	return c.Status(fiber.StatusOK).JSON(history)
}

func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	id := c.Params("id")
	ok, err := h.s.Cancel(c.Context(), id)
	resp := transfer.CancelResponse{ID: id, Cancelled: ok}
	if err != nil {
		resp.Reason = err.Error()
		return c.Status(cancelErrorStatus(err)).JSON(resp)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *PostHandler) Diagnostics(c *fiber.Ctx) error {
	diag, err := h.s.Diagnose(c.Context())
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to read the post store")
	}
	return c.Status(fiber.StatusOK).JSON(diag)
}

func scheduleErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrMissingSchedule),
		errors.Is(err, models.ErrInvalidPreferences):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func lookupErrorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrPostNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, repository.ErrInvalidPostID):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func cancelErrorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrPostInFlight), errors.Is(err, repository.ErrPostNotScheduled):
		return fiber.StatusConflict
	}
	return lookupErrorStatus(err)
}
