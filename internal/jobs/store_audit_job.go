package job

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/contentflow/internal/service"
)

type StoreAuditJob struct {
	ss service.SchedulerService
}

func NewStoreAuditJob(ss service.SchedulerService) *StoreAuditJob {
	return &StoreAuditJob{ss: ss}
}

// Audit logs the store diagnostics and warns about records whose image can
// no longer be published.
func (j *StoreAuditJob) Audit() {
	ctx := context.Background()

	diag, err := j.ss.Diagnose(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	slog.Info("store audit",
		"running", diag.Running,
		"active", diag.ActiveCount,
		"statuses", diag.StatusCounts,
		"image_mismatches", diag.Mismatches,
	)
	for _, img := range diag.Images {
		if img.Mismatch {
			slog.Warn("scheduled post image unusable", "post_id", img.PostID, "image_path", img.ImagePath, "detail", img.Detail)
		}
	}
}
