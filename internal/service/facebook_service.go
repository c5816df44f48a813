package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/transfer"
)

var ErrMissingPageID = errors.New("facebook page id is not configured")

type facebookService struct {
	baseURL       string
	defaultPageID string
	client        *http.Client
	logger        *slog.Logger
}

func NewFacebookService(cfg config.Config, logger *slog.Logger) Publisher {
	return &facebookService{
		baseURL:       strings.TrimRight(cfg.Facebook.APIBaseURL, "/"),
		defaultPageID: cfg.Facebook.PageID,
		client:        newHTTPClient(cfg.Scheduler.PublishTimeout),
		logger:        logger,
	}
}

func (s *facebookService) Platform() string {
	return models.PlatformFacebook
}

// Publish posts a photo with caption when an image is attached, falling back
// to a plain feed post if the photo upload is rejected.
func (s *facebookService) Publish(ctx context.Context, req PublishRequest) (*models.PlatformResult, error) {
	pageID := req.Preferences.FacebookPageID
	if pageID == "" {
		pageID = s.defaultPageID
	}
	if pageID == "" {
		return nil, ErrMissingPageID
	}

	if req.ImagePath != "" {
		created, err := s.postPhoto(ctx, pageID, req)
		if err == nil {
			return s.result(created, true), nil
		}
		s.logger.Warn("facebook photo post failed, posting text only", "post_id", req.PostID, "error", err)
	}

	created, err := s.postFeed(ctx, pageID, req)
	if err != nil {
		return nil, err
	}
	return s.result(created, false), nil
}

func (s *facebookService) postPhoto(ctx context.Context, pageID string, req PublishRequest) (*transfer.FacebookPostResponse, error) {
	file, err := os.Open(req.ImagePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("source", filepath.Base(req.ImagePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	fields := map[string]string{
		"message":      req.Content,
		"published":    "true",
		"access_token": req.AccessToken,
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(pageID, "photos"), &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	return s.do(httpReq)
}

func (s *facebookService) postFeed(ctx context.Context, pageID string, req PublishRequest) (*transfer.FacebookPostResponse, error) {
	form := url.Values{}
	form.Set("message", req.Content)
	form.Set("access_token", req.AccessToken)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(pageID, "feed"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(httpReq)
}

func (s *facebookService) do(req *http.Request) (*transfer.FacebookPostResponse, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var fbErr transfer.FacebookErrorResponse
		if json.Unmarshal(raw, &fbErr) == nil && fbErr.Error.Message != "" {
			return nil, &APIError{Platform: models.PlatformFacebook, StatusCode: resp.StatusCode, Body: fbErr.Error.Message}
		}
		return nil, &APIError{Platform: models.PlatformFacebook, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var created transfer.FacebookPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if created.ID == "" && created.PostID == "" {
		return nil, errors.New("facebook returned no post id")
	}
	return &created, nil
}

func (s *facebookService) result(created *transfer.FacebookPostResponse, withImage bool) *models.PlatformResult {
	// Photo uploads return the photo id in "id" and the feed story in "post_id".
	postID := created.PostID
	if postID == "" {
		postID = created.ID
	}
	return &models.PlatformResult{
		Status:   models.ResultSuccess,
		PostID:   postID,
		PostURL:  facebookPostURL(postID),
		HasImage: withImage,
	}
}

func (s *facebookService) endpoint(pageID, edge string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, url.PathEscape(pageID), edge)
}

// facebookPostURL turns "<page>_<story>" into the public permalink.
func facebookPostURL(postID string) string {
	page, story, ok := strings.Cut(postID, "_")
	if !ok {
		return "https://www.facebook.com/" + postID
	}
	return fmt.Sprintf("https://www.facebook.com/%s/posts/%s", page, story)
}
