package interfaces

import "context"

// ReportProcessedEvent is published after a processing transaction
// commits (or a row is failed). Consumers (alerting, dashboards) are
// external to this service.
type ReportProcessedEvent struct {
	IngestedReportID uint   `json:"ingestedReportId"`
	DmarcReportID    uint   `json:"dmarcReportId,omitempty"`
	ReportID         string `json:"reportId,omitempty"`
	Domain           string `json:"domain,omitempty"`
	RecordCount      int    `json:"recordCount"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
}

type EventPublisher interface {
	PublishReportProcessed(ctx context.Context, event ReportProcessedEvent)
	Close()
}
