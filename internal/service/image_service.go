package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/h2non/filetype"
	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/transfer"
)

const maxImageBytes = 20 << 20

var ErrNoImageToken = errors.New("HF_TOKEN is not set")

type ImageService interface {
	GenerateImage(ctx context.Context, prompt, outputPath string) (string, error)
}

type imageService struct {
	modelURL string
	token    string
	params   transfer.HuggingFaceParameters
	client   *http.Client
}

func NewImageService(cfg config.Config) ImageService {
	return &imageService{
		modelURL: cfg.HuggingFace.ModelURL,
		token:    cfg.HuggingFace.Token,
		params: transfer.HuggingFaceParameters{
			Width:             cfg.HuggingFace.Width,
			Height:            cfg.HuggingFace.Height,
			NumInferenceSteps: cfg.HuggingFace.Steps,
		},
		client: newHTTPClient(2 * time.Minute),
	}
}

// GenerateImage renders prompt with the inference API and writes the image to
// outputPath, returning the path written.
func (s *imageService) GenerateImage(ctx context.Context, prompt, outputPath string) (string, error) {
	if s.token == "" {
		return "", ErrNoImageToken
	}

	payload, err := json.Marshal(transfer.HuggingFaceRequest{Inputs: prompt, Parameters: s.params})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.modelURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	if !isSuccess(resp.StatusCode) {
		var hfErr transfer.HuggingFaceError
		if json.Unmarshal(data, &hfErr) == nil && hfErr.Error != "" {
			return "", fmt.Errorf("huggingface (status %d): %s", resp.StatusCode, hfErr.Error)
		}
		return "", fmt.Errorf("huggingface (status %d)", resp.StatusCode)
	}

	if !filetype.IsImage(data) {
		return "", errors.New("huggingface returned a non-image payload")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return outputPath, nil
}
