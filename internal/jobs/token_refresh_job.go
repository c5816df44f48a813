package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/service"
)

const refreshWindow = 30 * time.Minute

type TokenRefreshJob struct {
	cs  service.CredentialService
	now func() time.Time
}

func NewTokenRefreshJob(cs service.CredentialService) *TokenRefreshJob {
	return &TokenRefreshJob{cs: cs, now: time.Now}
}

// RefreshTokens renews every platform credential that expires within the
// next 30 minutes. Credentials without a known expiry are left alone.
func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()
	deadline := j.now().Add(refreshWindow)

	var wg sync.WaitGroup
	for _, platform := range []string{models.PlatformLinkedIn, models.PlatformFacebook} {
		expiry := j.cs.Expiry(platform)
		if expiry.IsZero() || expiry.After(deadline) {
			continue
		}

		wg.Add(1)
		go func(platform string) {
			defer wg.Done()
			if err := j.cs.Refresh(ctx, platform); err != nil {
				slog.Info("Unable to refresh token", "platform", platform, "error", err)
				return
			}
			slog.Info("Token refreshed", "platform", platform, "expires", j.cs.Expiry(platform))
		}(platform)
	}
	wg.Wait()
}
