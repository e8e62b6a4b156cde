package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/dmarcwatch/reportstack/internal/enum"
)

// DmarcReport is one parsed aggregate report, mapping 1:1 to a
// <feedback> XML document. ReportID is reporter-assigned; the unique
// index makes cross-reporter collisions a processing failure rather
// than a silent merge.
type DmarcReport struct {
	ID               uint               `gorm:"primaryKey;autoIncrement" json:"id"`
	IngestedReportID *uint              `gorm:"column:ingested_report_id;index" json:"ingestedReportId"`
	ReportID         string             `gorm:"column:report_id;type:varchar(255);uniqueIndex;not null" json:"reportId"`
	OrgName          string             `gorm:"column:org_name;type:varchar(255);not null" json:"orgName"`
	Email            *string            `gorm:"column:email;type:varchar(255)" json:"email"`
	ExtraContactInfo *string            `gorm:"column:extra_contact_info;type:varchar(500)" json:"extraContactInfo"`
	Domain           string             `gorm:"column:domain;type:varchar(255);index;not null" json:"domain"`
	ADKIM            enum.AlignmentMode `gorm:"column:adkim;type:varchar(1)" json:"adkim"`
	ASPF             enum.AlignmentMode `gorm:"column:aspf;type:varchar(1)" json:"aspf"`
	Policy           string             `gorm:"column:policy;type:varchar(20)" json:"policy"`
	SubdomainPolicy  *string            `gorm:"column:subdomain_policy;type:varchar(20)" json:"subdomainPolicy"`
	Percentage       int                `gorm:"column:percentage;default:100" json:"percentage"`
	DateBegin        time.Time          `gorm:"column:date_begin;type:timestamp;index;not null" json:"dateBegin"`
	DateEnd          time.Time          `gorm:"column:date_end;type:timestamp;not null" json:"dateEnd"`
	Errors           pq.StringArray     `gorm:"column:errors;type:text[]" json:"errors"`

	Records []DmarcRecord `gorm:"foreignKey:DmarcReportID;constraint:OnDelete:CASCADE" json:"records"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (DmarcReport) TableName() string {
	return "dmarc_reports"
}
