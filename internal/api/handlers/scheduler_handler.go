package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/contentflow/internal/service"
)

type SchedulerHandler struct {
	s service.SchedulerService
}

func NewSchedulerHandler(service service.SchedulerService) *SchedulerHandler {
	return &SchedulerHandler{s: service}
}

func (h *SchedulerHandler) Start(c *fiber.Ctx) error {
	wasRunning := h.s.Running()
	if err := h.s.Start(c.Context()); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"running":         true,
		"already_running": wasRunning,
	})
}

func (h *SchedulerHandler) Stop(c *fiber.Ctx) error {
	wasRunning := h.s.Running()
	if err := h.s.Stop(c.Context()); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"running":     false,
		"was_running": wasRunning,
	})
}

func (h *SchedulerHandler) Status(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"running": h.s.Running(),
		"active":  len(h.s.List(c.Context())),
	})
}
