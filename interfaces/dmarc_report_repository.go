package interfaces

import (
	"context"

	"github.com/dmarcwatch/reportstack/internal/models"
)

type DmarcReportRepository interface {
	ExistsByReportID(ctx context.Context, reportID string) (bool, error)
	// CreateWithRecords commits the parsed report, its records and the
	// completed status flip of the source ingested row in one
	// transaction. Nothing is visible unless all three land.
	CreateWithRecords(ctx context.Context, report *models.DmarcReport, records []models.DmarcRecord, ingestedReportID uint) error
	GetByID(ctx context.Context, id uint) (*models.DmarcReport, error)
	List(ctx context.Context, domain string, limit, offset int) ([]*models.DmarcReport, error)
}
