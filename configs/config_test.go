package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, "DATA_DIR", "POLL_INTERVAL", "RETRY_BACKOFF", "MAX_ATTEMPTS",
		"PUBLISH_TIMEOUT", "SCHEDULER_AUTOSTART", "FACEBOOK_PAGE_ID", "LISTEN_ADDR", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadConfig()
	if cfg.Scheduler.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %s", cfg.Scheduler.PollInterval)
	}
	if cfg.Scheduler.RetryBackoff != DefaultRetryBackoff {
		t.Errorf("RetryBackoff = %s", cfg.Scheduler.RetryBackoff)
	}
	if cfg.Scheduler.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d", cfg.Scheduler.MaxAttempts)
	}
	if !cfg.Scheduler.AutoStart {
		t.Error("AutoStart = false, want true")
	}
	if cfg.ListenAddr != ":3000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "contentflow.yaml")
	doc := `scheduler:
  data_dir: /var/lib/contentflow
  poll_interval: 30s
  max_attempts: 5
facebook:
  page_id: "12345"
listen_addr: ":8080"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv("MAX_ATTEMPTS", "7")
	t.Setenv("RETRY_BACKOFF", "not-a-duration")

	cfg := LoadConfig()
	if cfg.Scheduler.DataDir != "/var/lib/contentflow" {
		t.Errorf("DataDir = %q", cfg.Scheduler.DataDir)
	}
	if cfg.Scheduler.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %s", cfg.Scheduler.PollInterval)
	}
	if cfg.Scheduler.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, env should win", cfg.Scheduler.MaxAttempts)
	}
	if cfg.Scheduler.RetryBackoff != DefaultRetryBackoff {
		t.Errorf("RetryBackoff = %s, invalid env should keep default", cfg.Scheduler.RetryBackoff)
	}
	if cfg.Facebook.PageID != "12345" {
		t.Errorf("Facebook.PageID = %q", cfg.Facebook.PageID)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.LinkedIn.APIBaseURL != "https://api.linkedin.com" {
		t.Errorf("defaults lost under file: LinkedIn.APIBaseURL = %q", cfg.LinkedIn.APIBaseURL)
	}
}

func TestNormalizeReplacesNonPositive(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLL_INTERVAL", "-5s")
	t.Setenv("MAX_ATTEMPTS", "0")

	cfg := LoadConfig()
	if cfg.Scheduler.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %s", cfg.Scheduler.PollInterval)
	}
	if cfg.Scheduler.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d", cfg.Scheduler.MaxAttempts)
	}
}
