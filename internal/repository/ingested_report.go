package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/enum"
	"github.com/dmarcwatch/reportstack/internal/models"
	"github.com/dmarcwatch/reportstack/internal/tracing"
	"github.com/dmarcwatch/reportstack/internal/utils"
)

// parse_error is operator-facing triage text, not a stack-trace dump.
const maxParseErrorLen = 2000

type ingestedReportRepository struct {
	db *gorm.DB
}

func NewIngestedReportRepository(db *gorm.DB) interfaces.IngestedReportRepository {
	return &ingestedReportRepository{db: db}
}

func (r *ingestedReportRepository) Create(ctx context.Context, report *models.IngestedReport) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestedReportRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	return r.db.WithContext(ctx).Create(report).Error
}

func (r *ingestedReportRepository) GetByID(ctx context.Context, id uint) (*models.IngestedReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestedReportRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var report models.IngestedReport
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &report, nil
}

func (r *ingestedReportRepository) GetByContentHash(ctx context.Context, hash string) (*models.IngestedReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestedReportRepository.GetByContentHash")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var report models.IngestedReport
	if err := r.db.WithContext(ctx).Where("content_hash = ?", hash).First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &report, nil
}

// ClaimPending flips up to limit pending rows to processing in one
// statement. SKIP LOCKED keeps concurrent workers from claiming the
// same row; each claimed row is returned exactly once across the pool.
func (r *ingestedReportRepository) ClaimPending(ctx context.Context, limit int) ([]*models.IngestedReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestedReportRepository.ClaimPending")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("limit", limit)

	var claimed []*models.IngestedReport
	err := r.db.WithContext(ctx).Raw(`
		UPDATE ingested_reports
		SET status = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM ingested_reports
			WHERE status = ?
			ORDER BY created_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		enum.IngestionStatusProcessing.String(), utils.Now(),
		enum.IngestionStatusPending.String(), limit,
	).Scan(&claimed).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.SetTag("claimed", len(claimed))
	return claimed, nil
}

func (r *ingestedReportRepository) MarkFailed(ctx context.Context, id uint, parseError string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestedReportRepository.MarkFailed")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	return r.db.WithContext(ctx).
		Model(&models.IngestedReport{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      enum.IngestionStatusFailed.String(),
			"parse_error": utils.TruncateString(parseError, maxParseErrorLen),
			"updated_at":  utils.Now(),
		}).Error
}

// Requeue resets a failed row to pending. Only failed rows are
// eligible; requeueing pending/processing/completed rows is a no-op.
func (r *ingestedReportRepository) Requeue(ctx context.Context, id uint) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestedReportRepository.Requeue")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.IngestedReport{}).
		Where("id = ? AND status = ?", id, enum.IngestionStatusFailed.String()).
		Updates(map[string]interface{}{
			"status":      enum.IngestionStatusPending.String(),
			"parse_error": nil,
			"updated_at":  utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RequeueStuckProcessing recovers rows abandoned mid-processing by a
// hard-terminated worker: anything still in processing beyond olderThan
// goes back to pending.
func (r *ingestedReportRepository) RequeueStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestedReportRepository.RequeueStuckProcessing")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	cutoff := utils.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Model(&models.IngestedReport{}).
		Where("status = ? AND updated_at < ?", enum.IngestionStatusProcessing.String(), cutoff).
		Updates(map[string]interface{}{
			"status":     enum.IngestionStatusPending.String(),
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, result.Error
	}

	span.SetTag("requeued", result.RowsAffected)
	return result.RowsAffected, nil
}

func (r *ingestedReportRepository) List(ctx context.Context, status *enum.IngestionStatus, limit, offset int) ([]*models.IngestedReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestedReportRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	query := r.db.WithContext(ctx).Model(&models.IngestedReport{})
	if status != nil {
		query = query.Where("status = ?", status.String())
	}

	var reports []*models.IngestedReport
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&reports).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return reports, nil
}
