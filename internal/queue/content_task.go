package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/contentflow/internal/transfer"
)

const imagePromptContext = 200

func (q *Queue) HandleGenerateContentTask(ctx context.Context, task *asynq.Task) error {
	var payload GenerateContentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	id, err := q.GenerateAndSchedule(ctx, payload)
	if err != nil {
		return err
	}

	log.Printf("Generated content scheduled as %s", id)
	return nil
}

// GenerateAndSchedule drafts a post, reviews it, optionally illustrates and
// archives the image, writes the reviewed-content file and schedules it.
// Review, image and archive failures degrade the result instead of failing it.
func (q *Queue) GenerateAndSchedule(ctx context.Context, payload GenerateContentPayload) (string, error) {
	prefs := payload.Preferences

	draft, err := q.cs.Generate(ctx, prefs)
	if err != nil {
		return "", err
	}

	content, reviewed := draft, true
	if text, err := q.cs.Review(ctx, draft, prefs); err != nil {
		log.Printf("Review failed, keeping the draft: %v", err)
		reviewed = false
	} else {
		content = text
	}

	stamp := q.now().Format("20060102_150405")

	var imagePath, imageURL string
	if payload.GenerateImage && q.is != nil {
		out := filepath.Join(q.outputDir, "images", fmt.Sprintf("generated_%s.png", stamp))
		imagePath, err = q.is.GenerateImage(ctx, imagePrompt(payload, content), out)
		if err != nil {
			log.Printf("Image generation failed, continuing without image: %v", err)
			imagePath = ""
		}
	}
	if imagePath != "" && q.archive != nil && q.archive.Enabled() {
		imageURL, err = q.archive.ArchiveImage(ctx, imagePath)
		if err != nil {
			log.Printf("Image archive failed: %v", err)
			imageURL = ""
		}
	}

	doc := transfer.ContentFile{
		Content:     content,
		Preferences: prefs,
		ImagePath:   imagePath,
		ImageURL:    imageURL,
		Timestamp:   q.now(),
		Reviewed:    reviewed,
	}
	docPath := filepath.Join(q.outputDir, fmt.Sprintf("reviewed_content_%s.json", stamp))
	if err := writeContentFile(docPath, doc); err != nil {
		return "", err
	}

	at := payload.ScheduleAt
	if at.IsZero() {
		at = q.now()
	}
	return q.scheduler.ScheduleFromFile(ctx, docPath, at, payload.Platforms)
}

func imagePrompt(payload GenerateContentPayload, content string) string {
	if payload.ImagePrompt != "" {
		return payload.ImagePrompt
	}
	excerpt := []rune(content)
	if len(excerpt) > imagePromptContext {
		excerpt = excerpt[:imagePromptContext]
	}
	topic := payload.Preferences.Topic
	if topic == "" {
		topic = "professional social media illustration"
	}
	return fmt.Sprintf("Clean modern illustration about %s, no text, inspired by: %s", topic, strings.TrimSpace(string(excerpt)))
}

func writeContentFile(path string, doc transfer.ContentFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
