package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/models"
	"google.golang.org/genai"
)

var ErrEmptyGeneration = errors.New("model returned no text")

// ContentService drafts and reviews post text with Gemini.
type ContentService interface {
	Generate(ctx context.Context, prefs models.Preferences) (string, error)
	Review(ctx context.Context, content string, prefs models.Preferences) (string, error)
}

type contentService struct {
	client      *genai.Client
	model       string
	reviewModel string
}

// NewContentService builds a Gemini API client. client may be nil; Endpoint
// overrides the API base URL.
func NewContentService(ctx context.Context, cfg config.Config, client *http.Client) (ContentService, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is not set")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.Gemini.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: client,
	}
	if cfg.Gemini.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Gemini.Endpoint}
	}

	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	reviewModel := cfg.Gemini.ReviewModel
	if reviewModel == "" {
		reviewModel = cfg.Gemini.Model
	}
	return &contentService{client: gc, model: cfg.Gemini.Model, reviewModel: reviewModel}, nil
}

func (s *contentService) Generate(ctx context.Context, prefs models.Preferences) (string, error) {
	text, err := s.complete(ctx, s.model, generationPrompt(prefs))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return text, nil
}

func (s *contentService) Review(ctx context.Context, content string, prefs models.Preferences) (string, error) {
	text, err := s.complete(ctx, s.reviewModel, reviewPrompt(content, prefs))
	if err != nil {
		return "", fmt.Errorf("review content: %w", err)
	}
	return text, nil
}

func (s *contentService) complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			break
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}

func generationPrompt(prefs models.Preferences) string {
	var b strings.Builder
	b.WriteString("Write a social media post ready to publish on LinkedIn and Facebook.\n")
	writePref(&b, "Language", orDefault(prefs.Language, "en"))
	writePref(&b, "Post type", orDefault(prefs.ContentType, "informative"))
	writePref(&b, "Topic", prefs.Topic)
	writePref(&b, "Audience", prefs.Audience)
	writePref(&b, "Tone", orDefault(prefs.Tone, "professional"))
	for k, v := range prefs.Extra {
		writePref(&b, k, v)
	}
	b.WriteString("Keep it under 1300 characters, end with a question or call to action and add up to three hashtags.\n")
	b.WriteString("Return only the post text.")
	return b.String()
}

func reviewPrompt(content string, prefs models.Preferences) string {
	var b strings.Builder
	b.WriteString("Proofread the following social media post. Fix grammar, spelling and clarity without changing its meaning or language")
	if prefs.Language != "" {
		fmt.Fprintf(&b, " (%s)", prefs.Language)
	}
	b.WriteString(". Return only the corrected post.\n\n")
	b.WriteString(content)
	return b.String()
}

func writePref(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
