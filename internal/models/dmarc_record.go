package models

import (
	"time"

	"github.com/dmarcwatch/reportstack/internal/enum"
)

// DmarcRecord is one source-IP row block inside a report. A report with
// zero records is valid. Only the first DKIM and SPF auth-result block
// is kept per record; the raw XML stays in the content store for replay
// if the flat schema ever grows a list.
type DmarcRecord struct {
	ID            uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	DmarcReportID uint              `gorm:"column:dmarc_report_id;index;not null" json:"dmarcReportId"`
	SourceIP      string            `gorm:"column:source_ip;type:varchar(45);index" json:"sourceIp"`
	Count         int               `gorm:"column:count;default:0" json:"count"`
	Disposition   *enum.Disposition `gorm:"column:disposition;type:varchar(20)" json:"disposition"`
	EvalDKIM      *enum.DMARCResult `gorm:"column:eval_dkim;type:varchar(10)" json:"evalDkim"`
	EvalSPF       *enum.DMARCResult `gorm:"column:eval_spf;type:varchar(10)" json:"evalSpf"`
	HeaderFrom    string            `gorm:"column:header_from;type:varchar(255)" json:"headerFrom"`
	EnvelopeFrom  *string           `gorm:"column:envelope_from;type:varchar(255)" json:"envelopeFrom"`
	EnvelopeTo    *string           `gorm:"column:envelope_to;type:varchar(255)" json:"envelopeTo"`

	DKIMDomain   *string `gorm:"column:dkim_domain;type:varchar(255)" json:"dkimDomain"`
	DKIMSelector *string `gorm:"column:dkim_selector;type:varchar(255)" json:"dkimSelector"`
	DKIMResult   *string `gorm:"column:dkim_result;type:varchar(20)" json:"dkimResult"`
	SPFDomain    *string `gorm:"column:spf_domain;type:varchar(255)" json:"spfDomain"`
	SPFScope     *string `gorm:"column:spf_scope;type:varchar(20)" json:"spfScope"`
	SPFResult    *string `gorm:"column:spf_result;type:varchar(20)" json:"spfResult"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (DmarcRecord) TableName() string {
	return "dmarc_records"
}
