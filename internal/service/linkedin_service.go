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
	"strings"
	"time"

	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/transfer"
	"github.com/maheshrc27/contentflow/pkg/utils"
)

const (
	linkedinPostURLPrefix = "https://www.linkedin.com/feed/update/"
	linkedinImageRecipe   = "urn:li:digitalmediaRecipe:feedshare-image"
)

type linkedinService struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewLinkedInService(cfg config.Config, logger *slog.Logger) Publisher {
	return &linkedinService{
		baseURL: strings.TrimRight(cfg.LinkedIn.APIBaseURL, "/"),
		client:  newHTTPClient(cfg.Scheduler.PublishTimeout),
		logger:  logger,
	}
}

func (s *linkedinService) Platform() string {
	return models.PlatformLinkedIn
}

// Publish shares the post on the member feed. An image that cannot be
// uploaded degrades the share to text only.
func (s *linkedinService) Publish(ctx context.Context, req PublishRequest) (*models.PlatformResult, error) {
	client := bearerClient(ctx, s.client, req.AccessToken)

	memberID, err := s.memberID(ctx, client, req.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("resolve linkedin member: %w", err)
	}
	author := "urn:li:person:" + memberID

	var asset string
	if req.ImagePath != "" {
		asset, err = s.uploadImage(ctx, client, author, req.ImagePath)
		if err != nil {
			s.logger.Warn("linkedin image upload failed, posting text only", "post_id", req.PostID, "error", err)
			asset = ""
		}
	}

	share := transfer.LinkedInShareContent{
		ShareCommentary:    transfer.LinkedInText{Text: req.Content},
		ShareMediaCategory: "NONE",
	}
	if asset != "" {
		share.ShareMediaCategory = "IMAGE"
		share.Media = []transfer.LinkedInMedia{{Status: "READY", Media: asset}}
	}

	body := transfer.LinkedInUGCPost{
		Author:          author,
		LifecycleState:  "PUBLISHED",
		SpecificContent: transfer.LinkedInSpecificContent{ShareContent: share},
		Visibility:      transfer.LinkedInVisibility{MemberNetworkVisibility: "PUBLIC"},
	}

	var created transfer.LinkedInUGCPostResponse
	resp, err := s.postJSON(ctx, client, s.baseURL+"/v2/ugcPosts", body, &created)
	if err != nil {
		return nil, err
	}

	postID := resp.Header.Get("X-Restli-Id")
	if postID == "" {
		postID = created.ID
	}
	if postID == "" {
		return nil, errors.New("linkedin returned no post id")
	}

	return &models.PlatformResult{
		Status:   models.ResultSuccess,
		PostID:   postID,
		PostURL:  linkedinPostURLPrefix + postID,
		HasImage: asset != "",
	}, nil
}

// memberID prefers the subject of an OpenID token and falls back to the
// userinfo endpoint for opaque tokens.
func (s *linkedinService) memberID(ctx context.Context, client *http.Client, token string) (string, error) {
	if sub, err := utils.SubjectFromUnverified(token); err == nil {
		return sub, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v2/userinfo", nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", newAPIError(models.PlatformLinkedIn, resp)
	}

	var info transfer.LinkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return "", errors.New("userinfo has no subject")
	}
	return info.Sub, nil
}

func (s *linkedinService) uploadImage(ctx context.Context, client *http.Client, owner, path string) (string, error) {
	kind, err := utils.DetectImage(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	register := transfer.LinkedInRegisterUploadRequest{
		RegisterUploadRequest: transfer.LinkedInUploadSpec{
			Recipes: []string{linkedinImageRecipe},
			Owner:   owner,
			ServiceRelationships: []transfer.LinkedInServiceRelationship{{
				RelationshipType: "OWNER",
				Identifier:       "urn:li:userGeneratedContent",
			}},
		},
	}

	var registered transfer.LinkedInRegisterUploadResponse
	if _, err := s.postJSON(ctx, client, s.baseURL+"/v2/assets?action=registerUpload", register, &registered); err != nil {
		return "", fmt.Errorf("register upload: %w", err)
	}

	uploadURL := registered.Value.UploadMechanism.HTTPRequest.UploadURL
	if uploadURL == "" || registered.Value.Asset == "" {
		return "", errors.New("register upload returned no upload url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", kind.MIME.Value)
	for k, v := range registered.Value.UploadMechanism.HTTPRequest.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return "", newAPIError(models.PlatformLinkedIn, resp)
	}

	return registered.Value.Asset, nil
}

func (s *linkedinService) postJSON(ctx context.Context, client *http.Client, url string, in, out any) (*http.Response, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	s.logger.Debug("linkedin request", "url", url, "status", resp.StatusCode, "took", time.Since(start))

	if !isSuccess(resp.StatusCode) {
		return nil, linkedinAPIError(resp)
	}
	if out != nil && resp.ContentLength != 0 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

// linkedinAPIError prefers the message of a Rest.li error body.
func linkedinAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var liErr transfer.LinkedInErrorResponse
	if json.Unmarshal(raw, &liErr) == nil && liErr.Message != "" {
		return &APIError{Platform: models.PlatformLinkedIn, StatusCode: resp.StatusCode, Body: liErr.Message}
	}
	return &APIError{Platform: models.PlatformLinkedIn, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}
