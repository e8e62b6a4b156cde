package interfaces

import (
	"context"
	"time"

	"github.com/dmarcwatch/reportstack/internal/enum"
	"github.com/dmarcwatch/reportstack/internal/models"
)

type IngestedReportRepository interface {
	Create(ctx context.Context, report *models.IngestedReport) error
	GetByID(ctx context.Context, id uint) (*models.IngestedReport, error)
	// GetByContentHash is the dedup lookup; returns nil, nil when the
	// hash has never been ingested.
	GetByContentHash(ctx context.Context, hash string) (*models.IngestedReport, error)
	// ClaimPending atomically flips up to limit pending rows to
	// processing, oldest first, and returns the claimed rows. A row
	// claimed by one worker is never returned to another.
	ClaimPending(ctx context.Context, limit int) ([]*models.IngestedReport, error)
	MarkFailed(ctx context.Context, id uint, parseError string) error
	// Requeue resets a failed row back to pending (operator action).
	Requeue(ctx context.Context, id uint) error
	// RequeueStuckProcessing resets rows stuck in processing beyond
	// olderThan back to pending and returns how many it touched.
	RequeueStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
	List(ctx context.Context, status *enum.IngestionStatus, limit, offset int) ([]*models.IngestedReport, error)
}
