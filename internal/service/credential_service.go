package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/models"
	"golang.org/x/oauth2"
)

var ErrRefreshUnavailable = errors.New("no refresh credentials configured")

var linkedinEndpoint = oauth2.Endpoint{
	AuthURL:  "https://www.linkedin.com/oauth/v2/authorization",
	TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
}

// CredentialService supplies the process-wide platform tokens used when a
// record carries none of its own.
type CredentialService interface {
	Token(ctx context.Context, platform string) (string, error)
	Expiry(platform string) time.Time
	Refresh(ctx context.Context, platform string) error
}

type credentialService struct {
	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
	expiry  map[string]time.Time

	linkedinOAuth *oauth2.Config
	refreshToken  string
}

func NewCredentialService(cfg config.Config) CredentialService {
	s := &credentialService{
		sources: make(map[string]oauth2.TokenSource),
		expiry:  make(map[string]time.Time),
	}

	if cfg.LinkedIn.ClientID != "" && cfg.LinkedIn.RefreshToken != "" {
		endpoint := linkedinEndpoint
		if cfg.LinkedIn.APIBaseURL != "" && cfg.LinkedIn.APIBaseURL != "https://api.linkedin.com" {
			endpoint.TokenURL = cfg.LinkedIn.APIBaseURL + "/oauth/v2/accessToken"
		}
		s.linkedinOAuth = &oauth2.Config{
			ClientID:     cfg.LinkedIn.ClientID,
			ClientSecret: cfg.LinkedIn.ClientSecret,
			Endpoint:     endpoint,
		}
		s.refreshToken = cfg.LinkedIn.RefreshToken
	}

	if cfg.LinkedIn.AccessToken != "" {
		s.sources[models.PlatformLinkedIn] = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.LinkedIn.AccessToken})
	}
	if cfg.Facebook.PageToken != "" {
		s.sources[models.PlatformFacebook] = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Facebook.PageToken})
	}
	return s
}

// Token returns "" with a nil error when no credential is configured.
func (s *credentialService) Token(ctx context.Context, platform string) (string, error) {
	s.mu.Lock()
	src, ok := s.sources[platform]
	s.mu.Unlock()
	if !ok {
		if platform == models.PlatformLinkedIn && s.linkedinOAuth != nil {
			if err := s.Refresh(ctx, platform); err != nil {
				return "", err
			}
			return s.Token(ctx, platform)
		}
		return "", nil
	}

	tok, err := src.Token()
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("%s token: %w", platform, err)
	}
	return tok.AccessToken, nil
}

func (s *credentialService) Expiry(platform string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiry[platform]
}

// Refresh exchanges the LinkedIn refresh token for a new access token.
func (s *credentialService) Refresh(ctx context.Context, platform string) error {
	if platform != models.PlatformLinkedIn || s.linkedinOAuth == nil {
		return fmt.Errorf("%s: %w", platform, ErrRefreshUnavailable)
	}

	s.mu.Lock()
	refreshToken := s.refreshToken
	s.mu.Unlock()

	tok, err := s.linkedinOAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("refresh %s token: %w", platform, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	s.sources[platform] = oauth2.StaticTokenSource(tok)
	s.expiry[platform] = tok.Expiry
	return nil
}
