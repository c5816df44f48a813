package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/models"
)

func TestCredentialStaticTokens(t *testing.T) {
	t.Parallel()

	creds := NewCredentialService(config.Config{
		LinkedIn: config.LinkedIn{AccessToken: "li-env"},
		Facebook: config.Facebook{PageToken: "fb-env"},
	})
	ctx := context.Background()

	for platform, want := range map[string]string{
		models.PlatformLinkedIn: "li-env",
		models.PlatformFacebook: "fb-env",
		"mastodon":              "",
	} {
		got, err := creds.Token(ctx, platform)
		if err != nil {
			t.Fatalf("Token(%s) error = %v", platform, err)
		}
		if got != want {
			t.Fatalf("Token(%s) = %q, want %q", platform, got, want)
		}
	}

	if err := creds.Refresh(ctx, models.PlatformLinkedIn); !errors.Is(err, ErrRefreshUnavailable) {
		t.Fatalf("Refresh() = %v, want ErrRefreshUnavailable", err)
	}
}

func TestCredentialRefreshLinkedIn(t *testing.T) {
	t.Parallel()

	var gotRefresh string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v2/accessToken" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = r.ParseForm()
		gotRefresh = r.PostFormValue("refresh_token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600,"refresh_token":"rotated"}`))
	}))
	defer srv.Close()

	creds := NewCredentialService(config.Config{
		LinkedIn: config.LinkedIn{
			ClientID:     "id",
			ClientSecret: "secret",
			RefreshToken: "initial",
			APIBaseURL:   srv.URL,
		},
	})

	tok, err := creds.Token(context.Background(), models.PlatformLinkedIn)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok != "fresh" {
		t.Fatalf("Token() = %q, want fresh", tok)
	}
	if gotRefresh != "initial" {
		t.Fatalf("refresh_token sent = %q, want initial", gotRefresh)
	}
	if creds.Expiry(models.PlatformLinkedIn).IsZero() {
		t.Fatalf("Expiry() not recorded")
	}

	if err := creds.Refresh(context.Background(), models.PlatformLinkedIn); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if gotRefresh != "rotated" {
		t.Fatalf("second refresh used %q, want rotated", gotRefresh)
	}
}
