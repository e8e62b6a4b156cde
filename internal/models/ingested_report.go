package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/dmarcwatch/reportstack/internal/enum"
	"github.com/dmarcwatch/reportstack/internal/utils"
)

// IngestedReport is one row per uniquely-hashed attachment ever pulled
// from the mailbox. ContentHash is the idempotency key: re-ingesting
// identical bytes must never create a second row.
type IngestedReport struct {
	ID          uint                 `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID   *string              `gorm:"column:message_id;type:varchar(998)" json:"messageId"`
	ReceivedAt  time.Time            `gorm:"column:received_at;type:timestamp" json:"receivedAt"`
	Filename    string               `gorm:"column:filename;type:varchar(500)" json:"filename"`
	ContentHash string               `gorm:"column:content_hash;type:varchar(64);uniqueIndex;not null" json:"contentHash"`
	SizeBytes   int64                `gorm:"column:size_bytes;default:0" json:"sizeBytes"`
	StoragePath string               `gorm:"column:storage_path;type:varchar(1000)" json:"storagePath"`
	Status      enum.IngestionStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	ParseError  *string              `gorm:"column:parse_error;type:text" json:"parseError"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (IngestedReport) TableName() string {
	return "ingested_reports"
}

func (r *IngestedReport) BeforeCreate(tx *gorm.DB) error {
	if r.Status == "" {
		r.Status = enum.IngestionStatusPending
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = utils.Now()
	}
	return nil
}
