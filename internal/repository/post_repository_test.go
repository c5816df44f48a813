package repository

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maheshrc27/contentflow/internal/logging"
	"github.com/maheshrc27/contentflow/internal/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestRepo(t *testing.T, dir string, clock *fakeClock) PostRepository {
	t.Helper()
	repo, err := NewPostRepository(dir, WithClock(clock.Now), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewPostRepository() error = %v", err)
	}
	return repo
}

func newPost(at time.Time) *models.ScheduledPost {
	return &models.ScheduledPost{
		Content:          "Hello from the scheduler",
		ScheduleDatetime: at,
		Platforms:        models.Platforms{LinkedIn: true},
		Preferences:      models.Preferences{Language: "en"},
	}
}

func TestCreatePersistsScheduledRecord(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	dir := t.TempDir()
	repo := newTestRepo(t, dir, clock)
	ctx := context.Background()

	id, err := repo.Create(ctx, newPost(clock.t.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(id, "scheduled_20250301_090000_") {
		t.Fatalf("id = %q, want scheduled_20250301_090000_ prefix", id)
	}

	if _, err := os.Stat(filepath.Join(dir, id+".json")); err != nil {
		t.Fatalf("record file missing: %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != models.PostStatusScheduled || got.Attempts != 0 || got.MaxAttempts != 3 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.CreatedAt.Equal(clock.t) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, clock.t)
	}
	if n := len(repo.ListActive(ctx)); n != 1 {
		t.Fatalf("ListActive() len = %d, want 1", n)
	}
}

func TestCreateDropsInvalidImage(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	dir := t.TempDir()
	repo := newTestRepo(t, dir, clock)
	ctx := context.Background()

	missing := newPost(clock.t.Add(time.Hour))
	missing.ImagePath = filepath.Join(dir, "nope.png")
	id, err := repo.Create(ctx, missing)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, id)
	if got.ImagePath != "" {
		t.Fatalf("ImagePath = %q, want empty", got.ImagePath)
	}

	imgPath := filepath.Join(t.TempDir(), "ok.png")
	if err := os.WriteFile(imgPath, pngHeader, 0o644); err != nil {
		t.Fatal(err)
	}
	withImage := newPost(clock.t.Add(time.Hour))
	withImage.ImagePath = imgPath
	id, err = repo.Create(ctx, withImage)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, _ = repo.GetByID(ctx, id)
	if got.ImagePath != imgPath {
		t.Fatalf("ImagePath = %q, want %q", got.ImagePath, imgPath)
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	dir := t.TempDir()
	repo := newTestRepo(t, dir, clock)
	ctx := context.Background()

	id, err := repo.Create(ctx, newPost(clock.t.Add(time.Hour)))
	if err != nil {
		t.Fatal(err)
	}
	post, _ := repo.GetByID(ctx, id)

	if err := repo.Save(ctx, post); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	first, _ := os.ReadFile(filepath.Join(dir, id+".json"))
	if err := repo.Save(ctx, post); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second, _ := os.ReadFile(filepath.Join(dir, id+".json"))

	if !bytes.Equal(first, second) {
		t.Fatalf("saving twice changed the file:\n%s\n---\n%s", first, second)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestLoadAllExpiresAndResumes(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	dir := t.TempDir()
	repo := newTestRepo(t, dir, clock)
	ctx := context.Background()

	staleID, _ := repo.Create(ctx, newPost(clock.t.Add(5*time.Minute)))
	retryID, _ := repo.Create(ctx, newPost(clock.t.Add(5*time.Minute)))
	futureID, _ := repo.Create(ctx, newPost(clock.t.Add(48*time.Hour)))

	retry, _ := repo.GetByID(ctx, retryID)
	retry.Attempts = 1
	if err := repo.Save(ctx, retry); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	clock.t = clock.t.Add(time.Hour)
	reloaded := newTestRepo(t, dir, clock)
	active, err := reloaded.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	ids := map[string]bool{}
	for _, p := range active {
		ids[p.ID] = true
	}
	if ids[staleID] {
		t.Fatalf("past-due record %s should not be active", staleID)
	}
	if !ids[retryID] || !ids[futureID] {
		t.Fatalf("active = %v, want %s and %s", ids, retryID, futureID)
	}

	stale, err := reloaded.GetByID(ctx, staleID)
	if err != nil {
		t.Fatalf("GetByID(stale) error = %v", err)
	}
	if stale.Status != models.PostStatusExpired {
		t.Fatalf("stale status = %q, want expired", stale.Status)
	}
}

func TestLoadAllSkipsTerminalRecords(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	dir := t.TempDir()
	repo := newTestRepo(t, dir, clock)
	ctx := context.Background()

	id, _ := repo.Create(ctx, newPost(clock.t.Add(time.Hour)))
	post, _ := repo.GetByID(ctx, id)
	post.Status = models.PostStatusPublished
	if err := repo.Save(ctx, post); err != nil {
		t.Fatal(err)
	}

	active, err := newTestRepo(t, dir, clock).LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("LoadAll() returned %d active, want 0", len(active))
	}

	all, err := repo.ListAll(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("ListAll() = %d, %v; want 1 record", len(all), err)
	}
}

func TestClaimDueAndComplete(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	repo := newTestRepo(t, t.TempDir(), clock)
	ctx := context.Background()

	dueID, _ := repo.Create(ctx, newPost(clock.t.Add(time.Second)))
	_, _ = repo.Create(ctx, newPost(clock.t.Add(time.Hour)))

	if got := repo.ClaimDue(ctx, clock.t); len(got) != 0 {
		t.Fatalf("ClaimDue() before due = %d records", len(got))
	}

	claimed := repo.ClaimDue(ctx, clock.t.Add(2*time.Second))
	if len(claimed) != 1 || claimed[0].ID != dueID {
		t.Fatalf("ClaimDue() = %v, want [%s]", claimed, dueID)
	}
	if again := repo.ClaimDue(ctx, clock.t.Add(2*time.Second)); len(again) != 0 {
		t.Fatalf("claimed record handed out twice")
	}

	if err := repo.Cancel(ctx, dueID, clock.t); !errors.Is(err, ErrPostInFlight) {
		t.Fatalf("Cancel(in flight) = %v, want ErrPostInFlight", err)
	}

	post := claimed[0]
	post.Status = models.PostStatusPublished
	if err := repo.Complete(ctx, post); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if n := len(repo.ListActive(ctx)); n != 1 {
		t.Fatalf("ListActive() = %d, want 1 after publish", n)
	}
	if again := repo.ClaimDue(ctx, clock.t.Add(time.Minute)); len(again) != 0 {
		t.Fatalf("terminal record claimed again")
	}
}

func TestReleaseMakesRecordClaimable(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	repo := newTestRepo(t, t.TempDir(), clock)
	ctx := context.Background()

	id, _ := repo.Create(ctx, newPost(clock.t))
	if got := repo.ClaimDue(ctx, clock.t); len(got) != 1 {
		t.Fatalf("ClaimDue() = %d, want 1", len(got))
	}
	repo.Release(ctx, id)
	if got := repo.ClaimDue(ctx, clock.t); len(got) != 1 {
		t.Fatalf("ClaimDue() after Release = %d, want 1", len(got))
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	repo := newTestRepo(t, t.TempDir(), clock)
	ctx := context.Background()

	id, _ := repo.Create(ctx, newPost(clock.t.Add(time.Hour)))

	if err := repo.Cancel(ctx, id, clock.t); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.PostStatusCancelled || got.CancelledAt == nil {
		t.Fatalf("record after cancel = %+v", got)
	}
	if len(repo.ListActive(ctx)) != 0 {
		t.Fatalf("cancelled record still active")
	}

	if err := repo.Cancel(ctx, id, clock.t); !errors.Is(err, ErrPostNotScheduled) {
		t.Fatalf("second Cancel() = %v, want ErrPostNotScheduled", err)
	}
	if err := repo.Cancel(ctx, "scheduled_unknown", clock.t); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("Cancel(unknown) = %v, want ErrPostNotFound", err)
	}
	if err := repo.Cancel(ctx, "../etc/passwd", clock.t); !errors.Is(err, ErrInvalidPostID) {
		t.Fatalf("Cancel(traversal) = %v, want ErrInvalidPostID", err)
	}
}
