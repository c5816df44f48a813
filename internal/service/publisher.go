package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
	"golang.org/x/oauth2"
)

const maxErrorBody = 512

type PublishRequest struct {
	PostID      string
	Content     string
	Preferences models.Preferences
	ImagePath   string
	AccessToken string
}

// Publisher delivers one post to one platform. A nil error means the platform
// accepted the post.
type Publisher interface {
	Platform() string
	Publish(ctx context.Context, req PublishRequest) (*models.PlatformResult, error)
}

// APIError carries a non-2xx platform response.
type APIError struct {
	Platform   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Platform, e.StatusCode, e.Body)
}

func newAPIError(platform string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Platform:   platform,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// bearerClient builds an HTTP client that adds the access token to every
// request, on top of base.
func bearerClient(ctx context.Context, base *http.Client, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
