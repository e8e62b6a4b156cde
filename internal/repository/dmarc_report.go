package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	pkg_errors "github.com/pkg/errors"
	"gorm.io/gorm"

	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/enum"
	"github.com/dmarcwatch/reportstack/internal/models"
	"github.com/dmarcwatch/reportstack/internal/tracing"
	"github.com/dmarcwatch/reportstack/internal/utils"
)

type dmarcReportRepository struct {
	db *gorm.DB
}

func NewDmarcReportRepository(db *gorm.DB) interfaces.DmarcReportRepository {
	return &dmarcReportRepository{db: db}
}

func (r *dmarcReportRepository) ExistsByReportID(ctx context.Context, reportID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dmarcReportRepository.ExistsByReportID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DmarcReport{}).
		Where("report_id = ?", reportID).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	return count > 0, nil
}

// CreateWithRecords commits the parsed report, its records and the
// source row's completed flip atomically. A report_id collision inside
// the transaction surfaces as ErrReportIDConflict; the caller fails the
// row instead of merging.
func (r *dmarcReportRepository) CreateWithRecords(ctx context.Context, report *models.DmarcReport, records []models.DmarcRecord, ingestedReportID uint) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dmarcReportRepository.CreateWithRecords")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("report_id", report.ReportID)
	span.SetTag("record_count", len(records))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.DmarcReport{}).
			Where("report_id = ?", report.ReportID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return pkg_errors.Wrap(reportstack_errors.ErrReportIDConflict, report.ReportID)
		}

		report.IngestedReportID = &ingestedReportID
		if err := tx.Create(report).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return pkg_errors.Wrap(reportstack_errors.ErrReportIDConflict, report.ReportID)
			}
			return err
		}

		for i := range records {
			records[i].DmarcReportID = report.ID
		}
		if len(records) > 0 {
			if err := tx.Create(&records).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.IngestedReport{}).
			Where("id = ?", ingestedReportID).
			Updates(map[string]interface{}{
				"status":     enum.IngestionStatusCompleted.String(),
				"updated_at": utils.Now(),
			}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *dmarcReportRepository) GetByID(ctx context.Context, id uint) (*models.DmarcReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dmarcReportRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var report models.DmarcReport
	err := r.db.WithContext(ctx).
		Preload("Records").
		Where("id = ?", id).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &report, nil
}

func (r *dmarcReportRepository) List(ctx context.Context, domain string, limit, offset int) ([]*models.DmarcReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dmarcReportRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	query := r.db.WithContext(ctx).Model(&models.DmarcReport{})
	if domain != "" {
		query = query.Where("domain = ?", domain)
	}

	var reports []*models.DmarcReport
	err := query.Order("date_begin DESC").Limit(limit).Offset(offset).Find(&reports).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return reports, nil
}
