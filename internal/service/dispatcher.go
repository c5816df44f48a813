package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/pkg/utils"
)

type DispatchOutcome struct {
	Results   map[string]models.PlatformResult
	Successes int
	WithImage bool
}

func (o *DispatchOutcome) Succeeded() bool {
	return o != nil && o.Successes > 0
}

// Dispatcher publishes one record to each enabled platform. Platform
// failures are reported in the outcome; a returned error means the dispatch
// itself broke and no outcome can be trusted.
type Dispatcher interface {
	Dispatch(ctx context.Context, post *models.ScheduledPost) (*DispatchOutcome, error)
}

type DispatcherOptions struct {
	Timeout   time.Duration
	SecretKey string
	Logger    *slog.Logger
	Now       func() time.Time
}

type dispatcher struct {
	publishers  map[string]Publisher
	credentials CredentialService
	opts        DispatcherOptions
}

func NewDispatcher(publishers []Publisher, credentials CredentialService, opts DispatcherOptions) Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	byPlatform := make(map[string]Publisher, len(publishers))
	for _, p := range publishers {
		byPlatform[p.Platform()] = p
	}
	return &dispatcher{
		publishers:  byPlatform,
		credentials: credentials,
		opts:        opts,
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, post *models.ScheduledPost) (*DispatchOutcome, error) {
	prefs, err := d.preferences(post)
	if err != nil {
		return nil, err
	}

	imagePath := post.ImagePath
	if imagePath != "" {
		if err := utils.ValidateImage(imagePath); err != nil {
			d.opts.Logger.Warn("image unavailable at publish time, sending text only", "post_id", post.ID, "image_path", imagePath, "error", err)
			imagePath = ""
		}
	}

	platforms := post.Platforms.Enabled()
	outcome := &DispatchOutcome{Results: make(map[string]models.PlatformResult, len(platforms))}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		panicErr error
	)

	for _, platform := range platforms {
		wg.Add(1)
		go func(platform string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					panicErr = fmt.Errorf("publisher %s panicked: %v", platform, r)
					mu.Unlock()
				}
			}()

			result := d.publishTo(ctx, platform, post.ID, post.Content, prefs, imagePath)

			mu.Lock()
			defer mu.Unlock()
			outcome.Results[platform] = result
			if result.Status == models.ResultSuccess {
				outcome.Successes++
				if result.HasImage {
					outcome.WithImage = true
				}
			}
		}(platform)
	}
	wg.Wait()

	if panicErr != nil {
		return nil, panicErr
	}

	d.opts.Logger.Info("dispatch finished", "post_id", post.ID, "platforms", len(platforms), "successes", outcome.Successes)
	return outcome, nil
}

func (d *dispatcher) publishTo(ctx context.Context, platform, postID, content string, prefs models.Preferences, imagePath string) models.PlatformResult {
	attemptedAt := d.opts.Now()

	publisher, ok := d.publishers[platform]
	if !ok {
		return models.PlatformResult{Status: models.ResultError, Error: "no publisher registered", AttemptedAt: attemptedAt}
	}

	token := prefs.Token(platform)
	if token == "" && d.credentials != nil {
		var err error
		token, err = d.credentials.Token(ctx, platform)
		if err != nil {
			d.opts.Logger.Warn("credential lookup failed", "post_id", postID, "platform", platform, "error", err)
			return models.PlatformResult{Status: models.ResultFailed, Error: err.Error(), AttemptedAt: attemptedAt}
		}
	}
	if token == "" {
		d.opts.Logger.Warn("no access token", "post_id", postID, "platform", platform)
		return models.PlatformResult{Status: models.ResultNoToken, AttemptedAt: attemptedAt}
	}

	callCtx := ctx
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	res, err := publisher.Publish(callCtx, PublishRequest{
		PostID:      postID,
		Content:     content,
		Preferences: prefs,
		ImagePath:   imagePath,
		AccessToken: token,
	})
	if err != nil {
		d.opts.Logger.Warn("publish failed", "post_id", postID, "platform", platform, "error", err)
		return models.PlatformResult{Status: models.ResultFailed, Error: err.Error(), AttemptedAt: attemptedAt}
	}
	if res == nil {
		return models.PlatformResult{Status: models.ResultFailed, Error: "publisher returned no result", AttemptedAt: attemptedAt}
	}

	result := *res
	if result.Status == "" {
		result.Status = models.ResultSuccess
	}
	result.AttemptedAt = attemptedAt
	d.opts.Logger.Info("published", "post_id", postID, "platform", platform, "url", result.PostURL, "image", result.HasImage)
	return result
}

// preferences returns the record preferences with stored tokens decrypted.
func (d *dispatcher) preferences(post *models.ScheduledPost) (models.Preferences, error) {
	prefs := post.Preferences.Clone()
	if !prefs.TokensEncrypted {
		return prefs, nil
	}
	if d.opts.SecretKey == "" {
		return prefs, errors.New("record tokens are encrypted but no secret key is configured")
	}

	var err error
	if prefs.LinkedInToken, err = utils.DecryptToken(prefs.LinkedInToken, d.opts.SecretKey); err != nil {
		return prefs, fmt.Errorf("decrypt linkedin token: %w", err)
	}
	if prefs.FacebookToken, err = utils.DecryptToken(prefs.FacebookToken, d.opts.SecretKey); err != nil {
		return prefs, fmt.Errorf("decrypt facebook token: %w", err)
	}
	prefs.TokensEncrypted = false
	return prefs, nil
}
