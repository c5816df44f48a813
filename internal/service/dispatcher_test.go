package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/pkg/utils"
)

func newDispatchPost() *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:        "scheduled_test",
		Content:   "Launch day",
		Platforms: models.Platforms{LinkedIn: true, Facebook: true},
		Preferences: models.Preferences{
			LinkedInToken: "li",
			FacebookToken: "fb",
		},
	}
}

func TestDispatchPartialSuccess(t *testing.T) {
	t.Parallel()

	li := &fakePublisher{platform: models.PlatformLinkedIn, fn: succeed("li-1")}
	fb := &fakePublisher{platform: models.PlatformFacebook, fn: func(PublishRequest) (*models.PlatformResult, error) {
		return nil, errors.New("graph unavailable")
	}}
	d := NewDispatcher([]Publisher{li, fb}, nil, DispatcherOptions{Logger: quietLogger})

	outcome, err := d.Dispatch(context.Background(), newDispatchPost())
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !outcome.Succeeded() || outcome.Successes != 1 {
		t.Fatalf("Successes = %d, want 1", outcome.Successes)
	}
	if got := outcome.Results[models.PlatformLinkedIn]; got.Status != models.ResultSuccess || got.PostID != "li-1" {
		t.Fatalf("linkedin result = %+v", got)
	}
	if got := outcome.Results[models.PlatformFacebook]; got.Status != models.ResultFailed || got.Error != "graph unavailable" {
		t.Fatalf("facebook result = %+v", got)
	}
	if li.Calls()[0].AccessToken != "li" || fb.Calls()[0].AccessToken != "fb" {
		t.Fatalf("tokens not passed through")
	}
}

func TestDispatchNoToken(t *testing.T) {
	t.Parallel()

	li := &fakePublisher{platform: models.PlatformLinkedIn, fn: succeed("li-1")}
	d := NewDispatcher([]Publisher{li}, staticCredentials{}, DispatcherOptions{Logger: quietLogger})

	post := newDispatchPost()
	post.Platforms = models.Platforms{LinkedIn: true}
	post.Preferences = models.Preferences{}

	outcome, err := d.Dispatch(context.Background(), post)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if outcome.Succeeded() {
		t.Fatalf("dispatch without token succeeded")
	}
	if got := outcome.Results[models.PlatformLinkedIn].Status; got != models.ResultNoToken {
		t.Fatalf("status = %q, want no_token", got)
	}
	if len(li.Calls()) != 0 {
		t.Fatalf("publisher called without a token")
	}
}

func TestDispatchFallsBackToCredentials(t *testing.T) {
	t.Parallel()

	fb := &fakePublisher{platform: models.PlatformFacebook, fn: succeed("fb-1")}
	d := NewDispatcher([]Publisher{fb}, staticCredentials{models.PlatformFacebook: "page-token"}, DispatcherOptions{Logger: quietLogger})

	post := newDispatchPost()
	post.Platforms = models.Platforms{Facebook: true}
	post.Preferences = models.Preferences{}

	outcome, err := d.Dispatch(context.Background(), post)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !outcome.Succeeded() {
		t.Fatalf("outcome = %+v", outcome.Results)
	}
	if got := fb.Calls()[0].AccessToken; got != "page-token" {
		t.Fatalf("AccessToken = %q, want page-token", got)
	}
}

func TestDispatchDropsMissingImage(t *testing.T) {
	t.Parallel()

	li := &fakePublisher{platform: models.PlatformLinkedIn, fn: succeed("li-1")}
	d := NewDispatcher([]Publisher{li}, nil, DispatcherOptions{Logger: quietLogger})

	post := newDispatchPost()
	post.Platforms = models.Platforms{LinkedIn: true}
	post.ImagePath = filepath.Join(t.TempDir(), "gone.png")

	outcome, err := d.Dispatch(context.Background(), post)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if outcome.WithImage {
		t.Fatalf("WithImage = true for a missing image")
	}
	if got := li.Calls()[0].ImagePath; got != "" {
		t.Fatalf("ImagePath passed = %q, want empty", got)
	}
}

func TestDispatchWithImage(t *testing.T) {
	t.Parallel()

	li := &fakePublisher{platform: models.PlatformLinkedIn, fn: succeed("li-1")}
	d := NewDispatcher([]Publisher{li}, nil, DispatcherOptions{Logger: quietLogger})

	post := newDispatchPost()
	post.Platforms = models.Platforms{LinkedIn: true}
	post.ImagePath = writePNG(t)

	outcome, err := d.Dispatch(context.Background(), post)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !outcome.WithImage || !outcome.Results[models.PlatformLinkedIn].HasImage {
		t.Fatalf("image not reported: %+v", outcome)
	}
}

func TestDispatchPanicBecomesError(t *testing.T) {
	t.Parallel()

	li := &fakePublisher{platform: models.PlatformLinkedIn, fn: func(PublishRequest) (*models.PlatformResult, error) {
		panic("boom")
	}}
	d := NewDispatcher([]Publisher{li}, nil, DispatcherOptions{Logger: quietLogger})

	post := newDispatchPost()
	post.Platforms = models.Platforms{LinkedIn: true}

	if _, err := d.Dispatch(context.Background(), post); err == nil {
		t.Fatalf("Dispatch() error = nil, want panic error")
	}
}

func TestDispatchDecryptsTokens(t *testing.T) {
	t.Parallel()

	sealed, err := utils.EncryptToken("li-secret", "k")
	if err != nil {
		t.Fatal(err)
	}

	li := &fakePublisher{platform: models.PlatformLinkedIn, fn: succeed("li-1")}
	d := NewDispatcher([]Publisher{li}, nil, DispatcherOptions{Logger: quietLogger, SecretKey: "k"})

	post := newDispatchPost()
	post.Platforms = models.Platforms{LinkedIn: true}
	post.Preferences = models.Preferences{LinkedInToken: sealed, TokensEncrypted: true}

	if _, err := d.Dispatch(context.Background(), post); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := li.Calls()[0].AccessToken; got != "li-secret" {
		t.Fatalf("AccessToken = %q, want li-secret", got)
	}

	noKey := NewDispatcher([]Publisher{li}, nil, DispatcherOptions{Logger: quietLogger})
	if _, err := noKey.Dispatch(context.Background(), post); err == nil {
		t.Fatalf("Dispatch() without key should fail on encrypted tokens")
	}
}

func TestDispatchTimeout(t *testing.T) {
	t.Parallel()

	li := &fakePublisher{platform: models.PlatformLinkedIn}
	li.fn = func(req PublishRequest) (*models.PlatformResult, error) {
		return nil, context.DeadlineExceeded
	}
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDispatcher([]Publisher{li}, nil, DispatcherOptions{Logger: quietLogger, Timeout: time.Millisecond, Now: func() time.Time { return at }})

	post := newDispatchPost()
	post.Platforms = models.Platforms{LinkedIn: true}

	outcome, err := d.Dispatch(context.Background(), post)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	got := outcome.Results[models.PlatformLinkedIn]
	if got.Status != models.ResultFailed || !got.AttemptedAt.Equal(at) {
		t.Fatalf("result = %+v", got)
	}
}
