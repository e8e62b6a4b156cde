package repository

import (
	"gorm.io/gorm"

	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/models"
)

type Repositories struct {
	IngestedReportRepository interfaces.IngestedReportRepository
	DmarcReportRepository    interfaces.DmarcReportRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		IngestedReportRepository: NewIngestedReportRepository(db),
		DmarcReportRepository:    NewDmarcReportRepository(db),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.IngestedReport{},
		&models.DmarcReport{},
		&models.DmarcRecord{},
	)
}
