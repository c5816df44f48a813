package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
	PostStatusError     = "error"
	PostStatusCancelled = "cancelled"
	PostStatusExpired   = "expired"
)

const (
	PlatformLinkedIn = "linkedin"
	PlatformFacebook = "facebook"
)

const previewLength = 100

var ErrInvalidPreferences = errors.New("invalid preferences")

// IsTerminal reports whether a record with this status is never dispatched again.
func IsTerminal(status string) bool {
	switch status {
	case PostStatusPublished, PostStatusFailed, PostStatusError, PostStatusCancelled, PostStatusExpired:
		return true
	}
	return false
}

type Platforms struct {
	LinkedIn bool `json:"linkedin"`
	Facebook bool `json:"facebook"`
}

// Enabled returns the enabled platform names in dispatch order.
func (p Platforms) Enabled() []string {
	var names []string
	if p.LinkedIn {
		names = append(names, PlatformLinkedIn)
	}
	if p.Facebook {
		names = append(names, PlatformFacebook)
	}
	return names
}

func (p Platforms) Any() bool {
	return p.LinkedIn || p.Facebook
}

func (p Platforms) String() string {
	names := p.Enabled()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// ParsePlatforms accepts a comma separated list such as "linkedin,facebook".
func ParsePlatforms(raw string) (Platforms, error) {
	var p Platforms
	for _, name := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "":
		case PlatformLinkedIn:
			p.LinkedIn = true
		case PlatformFacebook:
			p.Facebook = true
		default:
			return Platforms{}, fmt.Errorf("unknown platform %q", name)
		}
	}
	return p, nil
}

type Preferences struct {
	Language        string            `json:"language,omitempty"`
	ContentType     string            `json:"content_type,omitempty"`
	Topic           string            `json:"topic,omitempty"`
	Audience        string            `json:"audience,omitempty"`
	Tone            string            `json:"tone,omitempty"`
	LinkedInToken   string            `json:"linkedin_token,omitempty"`
	FacebookToken   string            `json:"facebook_token,omitempty"`
	FacebookPageID  string            `json:"facebook_page_id,omitempty"`
	TokensEncrypted bool              `json:"tokens_encrypted,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

var (
	languagePattern = regexp.MustCompile(`^[a-z]{2}(-[A-Za-z]{2})?$`)
	pageIDPattern   = regexp.MustCompile(`^[0-9]+$`)
)

func (p Preferences) Validate() error {
	if p.Language != "" && !languagePattern.MatchString(p.Language) {
		return fmt.Errorf("%w: language %q is not a language code", ErrInvalidPreferences, p.Language)
	}
	if p.FacebookPageID != "" && !pageIDPattern.MatchString(p.FacebookPageID) {
		return fmt.Errorf("%w: facebook_page_id must be numeric", ErrInvalidPreferences)
	}
	for name, token := range map[string]string{PlatformLinkedIn: p.LinkedInToken, PlatformFacebook: p.FacebookToken} {
		if strings.ContainsAny(token, " \t\r\n") {
			return fmt.Errorf("%w: %s token contains whitespace", ErrInvalidPreferences, name)
		}
	}
	return nil
}

// Token returns the per-record access token for a platform, if any.
func (p Preferences) Token(platform string) string {
	switch platform {
	case PlatformLinkedIn:
		return p.LinkedInToken
	case PlatformFacebook:
		return p.FacebookToken
	}
	return ""
}

func (p Preferences) Clone() Preferences {
	out := p
	if p.Extra != nil {
		out.Extra = make(map[string]string, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultNoToken = "no_token"
	ResultError   = "error"
)

type PlatformResult struct {
	Status      string    `json:"status"`
	PostID      string    `json:"post_id,omitempty"`
	PostURL     string    `json:"post_url,omitempty"`
	HasImage    bool      `json:"has_image,omitempty"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// ScheduledPost is the unit persisted as one JSON file per record.
type ScheduledPost struct {
	ID                 string                    `json:"id"`
	Content            string                    `json:"content"`
	Preferences        Preferences               `json:"preferences"`
	ImagePath          string                    `json:"image_path,omitempty"`
	ImageURL           string                    `json:"image_url,omitempty"`
	ScheduleDatetime   time.Time                 `json:"schedule_datetime"`
	Platforms          Platforms                 `json:"platforms"`
	Status             string                    `json:"status"`
	CreatedAt          time.Time                 `json:"created_at"`
	Attempts           int                       `json:"attempts"`
	MaxAttempts        int                       `json:"max_attempts"`
	PublishedAt        *time.Time                `json:"published_at,omitempty"`
	PublishedWithImage bool                      `json:"published_with_image,omitempty"`
	CancelledAt        *time.Time                `json:"cancelled_at,omitempty"`
	Error              string                    `json:"error,omitempty"`
	Results            map[string]PlatformResult `json:"results,omitempty"`
}

func (p *ScheduledPost) Clone() *ScheduledPost {
	if p == nil {
		return nil
	}
	out := *p
	out.Preferences = p.Preferences.Clone()
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		out.PublishedAt = &t
	}
	if p.CancelledAt != nil {
		t := *p.CancelledAt
		out.CancelledAt = &t
	}
	if p.Results != nil {
		out.Results = make(map[string]PlatformResult, len(p.Results))
		for k, v := range p.Results {
			out.Results[k] = v
		}
	}
	return &out
}

// Due reports whether the record should be dispatched at now.
func (p *ScheduledPost) Due(now time.Time) bool {
	return p.Status == PostStatusScheduled && !p.ScheduleDatetime.After(now)
}

func (p *ScheduledPost) Summary() PostSummary {
	return PostSummary{
		ID:               p.ID,
		ScheduleDatetime: p.ScheduleDatetime,
		Platforms:        p.Platforms,
		Status:           p.Status,
		Attempts:         p.Attempts,
		HasImage:         p.ImagePath != "",
		ImagePath:        p.ImagePath,
		Preview:          Preview(p.Content),
	}
}

type PostSummary struct {
	ID               string    `json:"id"`
	ScheduleDatetime time.Time `json:"schedule_datetime"`
	Platforms        Platforms `json:"platforms"`
	Status           string    `json:"status"`
	Attempts         int       `json:"attempts"`
	HasImage         bool      `json:"has_image"`
	ImagePath        string    `json:"image_path,omitempty"`
	Preview          string    `json:"content_preview"`
}

// Preview truncates content to its first 100 characters, marking the cut with "...".
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "..."
}
