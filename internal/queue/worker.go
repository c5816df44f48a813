package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/repository"
	"github.com/maheshrc27/contentflow/internal/service"
)

type WorkerOptions struct {
	Interval    time.Duration
	Backoff     time.Duration
	MaxAttempts int
	Concurrency int
	Now         func() time.Time
	Logger      *slog.Logger
}

// Worker is the polling loop that publishes due records and applies the
// retry policy to their outcome.
type Worker struct {
	posts      repository.PostRepository
	dispatcher service.Dispatcher
	history    repository.PostingHistoryRepository
	opts       WorkerOptions

	mu       sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	stopping bool
}

var _ service.Runner = (*Worker)(nil)

// NewWorker builds a stopped worker. history may be nil.
func NewWorker(
	posts repository.PostRepository,
	dispatcher service.Dispatcher,
	history repository.PostingHistoryRepository,
	opts WorkerOptions) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultPollInterval
	}
	if opts.Backoff <= 0 {
		opts.Backoff = config.DefaultRetryBackoff
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = config.DefaultMaxAttempts
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Worker{
		posts:      posts,
		dispatcher: dispatcher,
		history:    history,
		opts:       opts,
	}
}

// Start launches the loop. The loop outlives ctx cancellation and only ends
// on Stop. A loop still draining after Stop counts as running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.runningLocked() {
		return nil
	}

	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.stopping = false
	go w.run(context.WithoutCancel(ctx), w.stop, w.done)
	return nil
}

// Stop signals the loop and waits for the current tick to finish or ctx to
// expire. The worker reports running until the loop has returned.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.runningLocked() {
		w.mu.Unlock()
		return nil
	}
	if !w.stopping {
		close(w.stop)
		w.stopping = true
	}
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runningLocked()
}

func (w *Worker) runningLocked() bool {
	if w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

func (w *Worker) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	w.opts.Logger.Info("scheduler loop started", "interval", w.opts.Interval)
	w.Tick(ctx)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			w.opts.Logger.Info("scheduler loop stopped")
			return
		case <-ticker.C:
			select {
			case <-stop:
				w.opts.Logger.Info("scheduler loop stopped")
				return
			default:
			}
			w.Tick(ctx)
		}
	}
}

// Tick dispatches every record due at the current time and returns how many
// were processed.
func (w *Worker) Tick(ctx context.Context) int {
	due := w.posts.ClaimDue(ctx, w.opts.Now())
	if len(due) == 0 {
		return 0
	}
	w.opts.Logger.Info("dispatching due posts", "count", len(due))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, w.opts.Concurrency)

	for _, post := range due {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(post *models.ScheduledPost) {
			defer wg.Done()
			defer func() { <-semaphore }()
			w.process(ctx, post)
		}(post)
	}

	wg.Wait()
	return len(due)
}

func (w *Worker) process(ctx context.Context, post *models.ScheduledPost) {
	attemptAt := w.opts.Now()
	attempt := post.Attempts + 1

	outcome, err := w.dispatch(ctx, post)
	w.apply(post, outcome, err, attemptAt)
	w.recordHistory(ctx, post.ID, attempt, outcome, err)

	if err := w.posts.Complete(ctx, post); err != nil {
		w.opts.Logger.Error("cannot persist dispatch outcome", "post_id", post.ID, "status", post.Status, "error", err)
	}
}

func (w *Worker) dispatch(ctx context.Context, post *models.ScheduledPost) (outcome *service.DispatchOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panicked: %v", r)
		}
	}()
	return w.dispatcher.Dispatch(ctx, post)
}

// apply moves the record through its lifecycle:
// scheduled -> published on any success, scheduled (+backoff) while attempts
// remain, failed once they are exhausted, error when dispatch itself broke.
func (w *Worker) apply(post *models.ScheduledPost, outcome *service.DispatchOutcome, err error, attemptAt time.Time) {
	if post.MaxAttempts <= 0 {
		post.MaxAttempts = w.opts.MaxAttempts
	}

	switch {
	case err != nil:
		post.Status = models.PostStatusError
		post.Error = err.Error()
		w.opts.Logger.Error("dispatch error", "post_id", post.ID, "error", err)

	case outcome.Succeeded():
		published := attemptAt
		post.Status = models.PostStatusPublished
		post.PublishedAt = &published
		post.PublishedWithImage = outcome.WithImage
		post.Results = outcome.Results
		post.Error = ""
		w.opts.Logger.Info("post published", "post_id", post.ID, "successes", outcome.Successes, "with_image", outcome.WithImage)

	default:
		if outcome != nil {
			post.Results = outcome.Results
		}
		post.Attempts++
		post.Error = failureSummary(outcome)
		if post.Attempts >= post.MaxAttempts {
			post.Status = models.PostStatusFailed
			w.opts.Logger.Warn("post failed permanently", "post_id", post.ID, "attempts", post.Attempts, "error", post.Error)
			return
		}
		post.ScheduleDatetime = attemptAt.Add(w.opts.Backoff)
		w.opts.Logger.Warn("post rescheduled", "post_id", post.ID, "attempts", post.Attempts, "next", post.ScheduleDatetime)
	}
}

func (w *Worker) recordHistory(ctx context.Context, postID string, attempt int, outcome *service.DispatchOutcome, dispatchErr error) {
	if w.history == nil {
		return
	}

	var entries []models.PostingHistory
	if dispatchErr != nil {
		entries = append(entries, models.PostingHistory{
			PostID: postID, Platform: "*", Status: models.ResultError, ErrorMessage: dispatchErr.Error(), Attempt: attempt,
		})
	} else if outcome != nil {
		for platform, res := range outcome.Results {
			entries = append(entries, models.PostingHistory{
				PostID:       postID,
				Platform:     platform,
				Status:       res.Status,
				PostURL:      res.PostURL,
				ErrorMessage: res.Error,
				Attempt:      attempt,
			})
		}
	}

	for i := range entries {
		if _, err := w.history.Create(ctx, &entries[i]); err != nil {
			w.opts.Logger.Warn("cannot record posting history", "post_id", postID, "platform", entries[i].Platform, "error", err)
		}
	}
}

func failureSummary(outcome *service.DispatchOutcome) string {
	if outcome == nil || len(outcome.Results) == 0 {
		return "no platform enabled"
	}
	platforms := make([]string, 0, len(outcome.Results))
	for platform := range outcome.Results {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)

	parts := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		res := outcome.Results[platform]
		if res.Error != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", platform, res.Error))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", platform, res.Status))
		}
	}
	return strings.Join(parts, "; ")
}
