package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	recordExt     = ".json"
	idAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
	idSuffixLen   = 6
	defaultMaxTry = 3
)

var (
	ErrPostNotFound     = errors.New("scheduled post not found")
	ErrPostInFlight     = errors.New("scheduled post is being published")
	ErrPostNotScheduled = errors.New("post is no longer scheduled")
	ErrInvalidPostID    = errors.New("invalid post id")
)

var postIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// PostRepository persists one JSON file per record and keeps the non-terminal
// records in memory. Records returned to callers are copies.
type PostRepository interface {
	Create(ctx context.Context, post *models.ScheduledPost) (string, error)
	Save(ctx context.Context, post *models.ScheduledPost) error
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
	LoadAll(ctx context.Context) ([]*models.ScheduledPost, error)
	ListActive(ctx context.Context) []*models.ScheduledPost
	ListAll(ctx context.Context) ([]*models.ScheduledPost, error)
	ClaimDue(ctx context.Context, now time.Time) []*models.ScheduledPost
	Complete(ctx context.Context, post *models.ScheduledPost) error
	Release(ctx context.Context, id string)
	Cancel(ctx context.Context, id string, at time.Time) error
	Dir() string
}

type PostRepositoryOption func(*postRepository)

func WithClock(now func() time.Time) PostRepositoryOption {
	return func(r *postRepository) { r.now = now }
}

func WithDefaultMaxAttempts(n int) PostRepositoryOption {
	return func(r *postRepository) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithLogger(logger *slog.Logger) PostRepositoryOption {
	return func(r *postRepository) { r.logger = logger }
}

type postRepository struct {
	dir         string
	now         func() time.Time
	maxAttempts int
	logger      *slog.Logger

	mu       sync.Mutex
	active   map[string]*models.ScheduledPost
	inFlight map[string]struct{}
}

func NewPostRepository(dir string, opts ...PostRepositoryOption) (PostRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	r := &postRepository{
		dir:         dir,
		now:         time.Now,
		maxAttempts: defaultMaxTry,
		logger:      slog.Default(),
		active:      make(map[string]*models.ScheduledPost),
		inFlight:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *postRepository) Dir() string {
	return r.dir
}

// Create fills in identity and bookkeeping fields, drops an image path that
// does not point at a readable image, then persists the record.
func (r *postRepository) Create(ctx context.Context, post *models.ScheduledPost) (string, error) {
	now := r.now()

	record := post.Clone()
	id, err := r.newID(now)
	if err != nil {
		return "", err
	}
	record.ID = id
	record.Status = models.PostStatusScheduled
	record.Attempts = 0
	record.CreatedAt = now
	record.Results = nil
	record.Error = ""
	record.PublishedAt = nil
	record.CancelledAt = nil
	if record.MaxAttempts <= 0 {
		record.MaxAttempts = r.maxAttempts
	}

	if record.ImagePath != "" {
		if err := utils.ValidateImage(record.ImagePath); err != nil {
			r.logger.Warn("dropping unusable image", "post_id", id, "image_path", record.ImagePath, "error", err)
			record.ImagePath = ""
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.write(record); err != nil {
		return "", err
	}
	r.active[id] = record
	r.logger.Info("post scheduled", "post_id", id, "at", record.ScheduleDatetime, "platforms", record.Platforms.String())
	return id, nil
}

// Save overwrites the record file. Writing the same record twice produces
// byte-identical files.
func (r *postRepository) Save(ctx context.Context, post *models.ScheduledPost) error {
	if err := validateID(post.ID); err != nil {
		return err
	}

	record := post.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.write(record); err != nil {
		return err
	}
	r.index(record)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if post, ok := r.active[id]; ok {
		r.mu.Unlock()
		return post.Clone(), nil
	}
	r.mu.Unlock()

	post, err := r.read(r.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return post, nil
}

// LoadAll rebuilds the active set from disk. Corrupt files are skipped.
// Scheduled records whose time has passed and that were never attempted are
// marked expired; records waiting on a retry are resumed.
func (r *postRepository) LoadAll(ctx context.Context) ([]*models.ScheduledPost, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.active = make(map[string]*models.ScheduledPost)
	r.inFlight = make(map[string]struct{})

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != recordExt {
			continue
		}

		post, err := r.read(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			r.logger.Warn("skipping unreadable record", "file", entry.Name(), "error", err)
			continue
		}
		if post.ID == "" {
			post.ID = strings.TrimSuffix(entry.Name(), recordExt)
		}
		if post.Status != models.PostStatusScheduled {
			continue
		}
		if post.MaxAttempts <= 0 {
			post.MaxAttempts = r.maxAttempts
		}

		if post.ScheduleDatetime.Before(now) && post.Attempts == 0 {
			post.Status = models.PostStatusExpired
			if err := r.write(post); err != nil {
				r.logger.Warn("cannot persist expired record", "post_id", post.ID, "error", err)
			}
			r.logger.Info("post expired while offline", "post_id", post.ID, "was_due", post.ScheduleDatetime)
			continue
		}

		r.active[post.ID] = post
	}

	r.logger.Info("post store loaded", "dir", r.dir, "active", len(r.active))
	return r.sortedActive(), nil
}

func (r *postRepository) ListActive(ctx context.Context) []*models.ScheduledPost {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedActive()
}

// ListAll reads every record on disk, terminal ones included.
func (r *postRepository) ListAll(ctx context.Context) ([]*models.ScheduledPost, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*"+recordExt))
	if err != nil {
		return nil, err
	}

	posts := make([]*models.ScheduledPost, 0, len(matches))
	for _, path := range matches {
		post, err := r.read(path)
		if err != nil {
			r.logger.Warn("skipping unreadable record", "file", filepath.Base(path), "error", err)
			continue
		}
		posts = append(posts, post)
	}
	sortPosts(posts)
	return posts, nil
}

// ClaimDue marks every due, unclaimed record as in flight and returns copies.
// A claimed record is skipped by later claims until Complete or Release.
func (r *postRepository) ClaimDue(ctx context.Context, now time.Time) []*models.ScheduledPost {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*models.ScheduledPost
	for id, post := range r.active {
		if _, busy := r.inFlight[id]; busy {
			continue
		}
		if !post.Due(now) {
			continue
		}
		r.inFlight[id] = struct{}{}
		due = append(due, post.Clone())
	}
	sortPosts(due)
	return due
}

// Complete stores the outcome of a dispatch and releases the claim. The
// in-memory state follows the outcome even if the write fails, so a published
// record is never dispatched twice by this process.
func (r *postRepository) Complete(ctx context.Context, post *models.ScheduledPost) error {
	record := post.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inFlight, record.ID)
	r.index(record)
	return r.write(record)
}

func (r *postRepository) Release(ctx context.Context, id string) {
	r.mu.Lock()
	delete(r.inFlight, id)
	r.mu.Unlock()
}

func (r *postRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	if err := validateID(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.active[id]
	if !ok {
		if _, err := os.Stat(r.path(id)); err == nil {
			return ErrPostNotScheduled
		}
		return ErrPostNotFound
	}
	if _, busy := r.inFlight[id]; busy {
		return ErrPostInFlight
	}

	record := post.Clone()
	record.Status = models.PostStatusCancelled
	record.CancelledAt = &at
	if err := r.write(record); err != nil {
		return err
	}
	delete(r.active, id)
	r.logger.Info("post cancelled", "post_id", id)
	return nil
}

// index keeps the active map in step with a record's status. Callers hold mu.
func (r *postRepository) index(post *models.ScheduledPost) {
	if post.Status == models.PostStatusScheduled {
		r.active[post.ID] = post
		return
	}
	delete(r.active, post.ID)
}

// write replaces the record file atomically. Callers hold mu.
func (r *postRepository) write(post *models.ScheduledPost) error {
	data, err := json.MarshalIndent(post, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", post.ID, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(r.dir, post.ID+".*.tmp")
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", post.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", post.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", post.ID, err)
	}
	if err := os.Rename(tmpName, r.path(post.ID)); err != nil {
		os.Remove(tmpName)
		slog.Info(err.Error())
		return fmt.Errorf("rename %s: %w", post.ID, err)
	}
	return nil
}

func (r *postRepository) read(path string) (*models.ScheduledPost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var post models.ScheduledPost
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &post, nil
}

func (r *postRepository) path(id string) string {
	return filepath.Join(r.dir, id+recordExt)
}

func (r *postRepository) newID(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(idAlphabet, idSuffixLen)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("scheduled_%s_%s", now.Format("20060102_150405"), suffix), nil
}

func (r *postRepository) sortedActive() []*models.ScheduledPost {
	posts := make([]*models.ScheduledPost, 0, len(r.active))
	for _, post := range r.active {
		posts = append(posts, post.Clone())
	}
	sortPosts(posts)
	return posts
}

func sortPosts(posts []*models.ScheduledPost) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].ScheduleDatetime.Equal(posts[j].ScheduleDatetime) {
			return posts[i].ScheduleDatetime.Before(posts[j].ScheduleDatetime)
		}
		return posts[i].ID < posts[j].ID
	})
}

func validateID(id string) error {
	if !postIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidPostID, id)
	}
	return nil
}
