package processing

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/logger"
	"github.com/dmarcwatch/reportstack/internal/models"
	"github.com/dmarcwatch/reportstack/internal/tracing"
	"github.com/dmarcwatch/reportstack/services/extractor"
	"github.com/dmarcwatch/reportstack/services/parser"
)

// ProcessSummary is the outcome of one pending-queue drain.
type ProcessSummary struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ProcessingService drains pending ingested reports: claim → read from
// content store → extract → parse → transactional commit. Each row is
// an independent unit of work; one corrupt report never blocks the
// batch.
type ProcessingService struct {
	store     interfaces.ContentStore
	ingested  interfaces.IngestedReportRepository
	reports   interfaces.DmarcReportRepository
	publisher interfaces.EventPublisher
	log       logger.Logger
}

func NewProcessingService(
	store interfaces.ContentStore,
	ingested interfaces.IngestedReportRepository,
	reports interfaces.DmarcReportRepository,
	publisher interfaces.EventPublisher,
	log logger.Logger,
) *ProcessingService {
	return &ProcessingService{
		store:     store,
		ingested:  ingested,
		reports:   reports,
		publisher: publisher,
		log:       log,
	}
}

// ProcessPendingReports handles up to limit pending rows, oldest first.
// Rows are claimed one at a time with an atomic conditional update, so
// a worker hitting its soft deadline finishes the row in flight and
// simply stops claiming, and concurrent workers never double-process.
// The in-flight row runs under a context detached from the deadline;
// otherwise a deadline firing mid-row would abort its transaction and
// the failure update with it, stranding the row in processing.
// Row-level failures are recorded on the row; only a claim/session
// failure returns an error.
func (s *ProcessingService) ProcessPendingReports(ctx context.Context, limit int) (ProcessSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProcessingService.ProcessPendingReports")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("limit", limit)

	summary := ProcessSummary{}

	for i := 0; i < limit; i++ {
		if ctx.Err() != nil {
			s.log.Warnf("Soft time limit reached after %d rows, stopping", summary.Processed+summary.Failed)
			break
		}

		claimed, err := s.ingested.ClaimPending(ctx, 1)
		if err != nil {
			tracing.TraceErr(span, err)
			return summary, err
		}
		if len(claimed) == 0 {
			break
		}

		// The soft deadline only stops claiming; a claimed row always
		// runs to a terminal status, so its pipeline and failure
		// bookkeeping are detached from the deadline.
		if s.processOne(context.WithoutCancel(ctx), claimed[0]) {
			summary.Processed++
		} else {
			summary.Failed++
		}
	}

	if summary.Processed > 0 || summary.Failed > 0 {
		s.log.Infof("Processing pass done: %d completed, %d failed", summary.Processed, summary.Failed)
	}
	span.SetTag("processed", summary.Processed)
	span.SetTag("failed", summary.Failed)
	return summary, nil
}

// RequeueStuck flips reports stuck in processing longer than olderThan
// back to pending. Rows end up stuck when a worker dies between the
// claim and the terminal status update.
func (s *ProcessingService) RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	span, ctx := tracing.StartTracerSpan(ctx, "ProcessingService.RequeueStuck")
	defer span.Finish()
	tracing.TagComponentService(span)

	requeued, err := s.ingested.RequeueStuckProcessing(ctx, olderThan)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return requeued, nil
}

// processOne runs the full pipeline for a claimed row and reports
// whether it completed. All failure paths mark the row failed with a
// truncated human-readable reason; none of them propagate.
func (s *ProcessingService) processOne(ctx context.Context, row *models.IngestedReport) bool {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProcessingService.processOne")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("ingested_report_id", row.ID)

	data, err := s.store.Read(ctx, row.StoragePath)
	if err != nil {
		return s.failRow(ctx, span, row, "failed to read stored content: "+err.Error())
	}

	xmlBytes, err := extractor.ExtractXML(row.Filename, data)
	if err != nil {
		return s.failRow(ctx, span, row, err.Error())
	}

	report, records, err := parser.Parse(xmlBytes)
	if err != nil {
		return s.failRow(ctx, span, row, err.Error())
	}

	if len(records) == 0 {
		s.log.Warnf("Report %s from %s has zero records (empty reporting period)", report.ReportID, report.OrgName)
	}
	for _, rec := range records {
		if rec.Count < 1 {
			s.log.Warnf("Report %s carries non-positive count %d for source %s", report.ReportID, rec.Count, rec.SourceIP)
		}
	}

	if err := s.reports.CreateWithRecords(ctx, report, records, row.ID); err != nil {
		return s.failRow(ctx, span, row, err.Error())
	}

	s.publish(ctx, interfaces.ReportProcessedEvent{
		IngestedReportID: row.ID,
		DmarcReportID:    report.ID,
		ReportID:         report.ReportID,
		Domain:           report.Domain,
		RecordCount:      len(records),
		Status:           "completed",
	})
	return true
}

func (s *ProcessingService) failRow(ctx context.Context, span opentracing.Span, row *models.IngestedReport, reason string) bool {
	s.log.Errorf("Processing of ingested report %d (%s) failed: %s", row.ID, row.Filename, reason)
	tracing.TraceErr(span, &processingError{reason})

	if err := s.ingested.MarkFailed(ctx, row.ID, reason); err != nil {
		s.log.Errorf("Failed to mark ingested report %d as failed: %v", row.ID, err)
	}

	s.publish(ctx, interfaces.ReportProcessedEvent{
		IngestedReportID: row.ID,
		Status:           "failed",
		Error:            reason,
	})
	return false
}

func (s *ProcessingService) publish(ctx context.Context, event interfaces.ReportProcessedEvent) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishReportProcessed(ctx, event)
}

type processingError struct {
	reason string
}

func (e *processingError) Error() string {
	return e.reason
}
