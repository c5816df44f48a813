package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/repository"
	"github.com/maheshrc27/contentflow/internal/transfer"
	"github.com/maheshrc27/contentflow/pkg/utils"
)

var (
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrMissingSchedule = errors.New("schedule time is required")
)

// Runner is the background loop the control surface starts and stops.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
}

type SchedulerService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
	SchedulePost(ctx context.Context, pc *transfer.PostCreation) (string, error)
	ScheduleFromFile(ctx context.Context, path string, at time.Time, platforms models.Platforms) (string, error)
	List(ctx context.Context) []models.PostSummary
	Get(ctx context.Context, id string) (*models.ScheduledPost, error)
	Cancel(ctx context.Context, id string) (bool, error)
	Diagnose(ctx context.Context) (*models.Diagnostics, error)
}

type SchedulerOptions struct {
	MaxAttempts int
	SecretKey   string
	Logger      *slog.Logger
	Now         func() time.Time
	// ReadFromDisk makes List and Diagnose read records from disk instead of
	// the in-memory active set, for processes that never call LoadAll.
	ReadFromDisk bool
}

type schedulerService struct {
	posts  repository.PostRepository
	runner Runner
	opts   SchedulerOptions
}

func NewSchedulerService(posts repository.PostRepository, runner Runner, opts SchedulerOptions) SchedulerService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &schedulerService{posts: posts, runner: runner, opts: opts}
}

func (s *schedulerService) Start(ctx context.Context) error {
	if s.runner.Running() {
		s.opts.Logger.Warn("scheduler already running")
		return nil
	}
	if err := s.runner.Start(ctx); err != nil {
		return err
	}
	s.opts.Logger.Info("scheduler started", "active", len(s.posts.ListActive(ctx)))
	return nil
}

func (s *schedulerService) Stop(ctx context.Context) error {
	if !s.runner.Running() {
		s.opts.Logger.Warn("scheduler is not running")
		return nil
	}
	if err := s.runner.Stop(ctx); err != nil {
		return err
	}
	s.opts.Logger.Info("scheduler stopped")
	return nil
}

func (s *schedulerService) Running() bool {
	return s.runner.Running()
}

func (s *schedulerService) SchedulePost(ctx context.Context, pc *transfer.PostCreation) (string, error) {
	if pc == nil || strings.TrimSpace(pc.Content) == "" {
		slog.Info(ErrEmptyContent.Error())
		return "", ErrEmptyContent
	}
	if pc.ScheduleDatetime.IsZero() {
		return "", ErrMissingSchedule
	}
	if err := pc.Preferences.Validate(); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	if !pc.Platforms.Any() {
		s.opts.Logger.Warn("scheduling a post with no platform enabled")
	}

	// Only the service marks tokens as sealed.
	in := pc.Preferences.Clone()
	in.TokensEncrypted = false
	prefs, err := s.sealTokens(in)
	if err != nil {
		return "", err
	}

	return s.posts.Create(ctx, &models.ScheduledPost{
		Content:          pc.Content,
		Preferences:      prefs,
		ImagePath:        pc.ImagePath,
		ImageURL:         pc.ImageURL,
		ScheduleDatetime: pc.ScheduleDatetime,
		Platforms:        pc.Platforms,
		MaxAttempts:      s.opts.MaxAttempts,
	})
}

// ScheduleFromFile schedules the content of a reviewed-content document.
func (s *schedulerService) ScheduleFromFile(ctx context.Context, path string, at time.Time, platforms models.Platforms) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("read content file: %w", err)
	}

	var doc transfer.ContentFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("decode content file: %w", err)
	}

	return s.SchedulePost(ctx, &transfer.PostCreation{
		Content:          doc.Content,
		ImagePath:        doc.ImagePath,
		ImageURL:         doc.ImageURL,
		Preferences:      doc.Preferences,
		Platforms:        platforms,
		ScheduleDatetime: at,
	})
}

func (s *schedulerService) List(ctx context.Context) []models.PostSummary {
	active, err := s.active(ctx, nil)
	if err != nil {
		s.opts.Logger.Warn("cannot list posts", "error", err)
	}
	summaries := make([]models.PostSummary, 0, len(active))
	for _, post := range active {
		summaries = append(summaries, post.Summary())
	}
	return summaries
}

func (s *schedulerService) Get(ctx context.Context, id string) (*models.ScheduledPost, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Preferences.LinkedInToken = redact(post.Preferences.LinkedInToken)
	post.Preferences.FacebookToken = redact(post.Preferences.FacebookToken)
	return post, nil
}

// Cancel reports false with the reason when the record is unknown, already
// terminal or currently being published.
func (s *schedulerService) Cancel(ctx context.Context, id string) (bool, error) {
	if err := s.posts.Cancel(ctx, id, s.opts.Now()); err != nil {
		s.opts.Logger.Warn("cancel refused", "post_id", id, "reason", err)
		return false, err
	}
	return true, nil
}

func (s *schedulerService) Diagnose(ctx context.Context) (*models.Diagnostics, error) {
	all, err := s.posts.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	diag := &models.Diagnostics{
		Running:      s.runner.Running(),
		StatusCounts: make(map[string]int),
		Images:       []models.ImageDiagnostic{},
	}
	for _, post := range all {
		diag.StatusCounts[post.Status]++
	}

	active, err := s.active(ctx, all)
	if err != nil {
		return nil, err
	}
	for _, post := range active {
		diag.ActiveCount++
		d := models.ImageDiagnostic{
			PostID:    post.ID,
			ImagePath: post.ImagePath,
			HasImage:  post.ImagePath != "",
		}
		if d.HasImage {
			d.ImageExists = utils.ImageExists(post.ImagePath)
			if err := utils.ValidateImage(post.ImagePath); err != nil {
				d.Detail = err.Error()
			} else {
				d.ImageValid = true
			}
			d.Mismatch = !d.ImageValid
		}
		if d.Mismatch {
			diag.Mismatches++
		}
		diag.Images = append(diag.Images, d)
	}
	return diag, nil
}

// active returns the scheduled records, from all when it is already read.
func (s *schedulerService) active(ctx context.Context, all []*models.ScheduledPost) ([]*models.ScheduledPost, error) {
	if !s.opts.ReadFromDisk {
		return s.posts.ListActive(ctx), nil
	}
	if all == nil {
		var err error
		if all, err = s.posts.ListAll(ctx); err != nil {
			return nil, err
		}
	}
	active := make([]*models.ScheduledPost, 0, len(all))
	for _, post := range all {
		if post.Status == models.PostStatusScheduled {
			active = append(active, post)
		}
	}
	return active, nil
}

func (s *schedulerService) sealTokens(prefs models.Preferences) (models.Preferences, error) {
	prefs = prefs.Clone()
	if s.opts.SecretKey == "" || prefs.TokensEncrypted {
		return prefs, nil
	}
	if prefs.LinkedInToken == "" && prefs.FacebookToken == "" {
		return prefs, nil
	}

	var err error
	if prefs.LinkedInToken, err = utils.EncryptToken(prefs.LinkedInToken, s.opts.SecretKey); err != nil {
		return prefs, err
	}
	if prefs.FacebookToken, err = utils.EncryptToken(prefs.FacebookToken, s.opts.SecretKey); err != nil {
		return prefs, err
	}
	prefs.TokensEncrypted = true
	return prefs, nil
}

func redact(token string) string {
	if token == "" {
		return ""
	}
	return "***"
}
