package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrNoScheduleTime  = errors.New("schedule_datetime or delay_minutes is required")
	ErrPathOutsideRoot = errors.New("path must be inside the content directory")
)

var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseScheduleTime accepts an absolute time (RFC 3339 or local
// "2006-01-02T15:04") or a delay in minutes from now.
func ParseScheduleTime(raw string, delayMinutes int, now time.Time) (time.Time, error) {
	if raw != "" {
		for _, layout := range scheduleLayouts {
			if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid schedule_datetime %q", raw)
	}
	if delayMinutes > 0 {
		return now.Add(time.Duration(delayMinutes) * time.Minute), nil
	}
	return time.Time{}, ErrNoScheduleTime
}

// ResolveContentPath maps a content file name or path onto root. Relative
// names are taken from root; anything that cleans to a location outside root
// is rejected.
func ResolveContentPath(root, name string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	p := filepath.Clean(name)
	if !filepath.IsAbs(p) {
		p = filepath.Join(absRoot, p)
	}
	rel, err := filepath.Rel(absRoot, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}
	return p, nil
}

func GetOperator(c *fiber.Ctx) string {
	operator, _ := c.Locals("operator").(string)
	return operator
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}
