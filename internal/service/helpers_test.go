package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/logging"
	"github.com/maheshrc27/contentflow/internal/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.png")
	if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return path
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		Scheduler: config.Scheduler{PublishTimeout: 5 * time.Second},
		LinkedIn:  config.LinkedIn{APIBaseURL: baseURL},
		Facebook:  config.Facebook{APIBaseURL: baseURL},
	}
}

type fakePublisher struct {
	platform string
	fn       func(PublishRequest) (*models.PlatformResult, error)

	mu    sync.Mutex
	calls []PublishRequest
}

func (f *fakePublisher) Platform() string { return f.platform }

func (f *fakePublisher) Publish(ctx context.Context, req PublishRequest) (*models.PlatformResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakePublisher) Calls() []PublishRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PublishRequest(nil), f.calls...)
}

func succeed(id string) func(PublishRequest) (*models.PlatformResult, error) {
	return func(req PublishRequest) (*models.PlatformResult, error) {
		return &models.PlatformResult{PostID: id, PostURL: "https://example.test/" + id, HasImage: req.ImagePath != ""}, nil
	}
}

type staticCredentials map[string]string

func (c staticCredentials) Token(ctx context.Context, platform string) (string, error) {
	return c[platform], nil
}

func (c staticCredentials) Expiry(string) time.Time { return time.Time{} }

func (c staticCredentials) Refresh(context.Context, string) error { return ErrRefreshUnavailable }

var quietLogger = logging.Discard()
