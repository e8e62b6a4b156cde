package ingestion

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/logger"
	"github.com/dmarcwatch/reportstack/internal/models"
	"github.com/dmarcwatch/reportstack/internal/tracing"
	"github.com/dmarcwatch/reportstack/internal/utils"
	"github.com/dmarcwatch/reportstack/services/contentstore"
)

// report-like attachment extensions; anything else in a matching email
// is skipped without counting as an error.
var reportExtensions = []string{".xml", ".xml.gz", ".gz", ".zip"}

// IngestSummary is the outcome of one inbox sweep.
type IngestSummary struct {
	EmailsChecked       int `json:"emailsChecked"`
	AttachmentsIngested int `json:"attachmentsIngested"`
	DuplicatesSkipped   int `json:"duplicatesSkipped"`
	Errors              int `json:"errors"`
}

// IngestionService sweeps the report mailbox: fetch → hash → dedup →
// store → pending row. The content hash is the idempotency boundary
// that makes periodic re-polling of the same mailbox safe.
type IngestionService struct {
	newFetcher func() interfaces.MailFetcher
	store      interfaces.ContentStore
	ingested   interfaces.IngestedReportRepository
	log        logger.Logger
}

// NewIngestionService takes a fetcher factory because the IMAP session
// is scoped per sweep: each call to IngestFromInbox acquires its own
// connection and releases it on every exit path.
func NewIngestionService(
	newFetcher func() interfaces.MailFetcher,
	store interfaces.ContentStore,
	ingested interfaces.IngestedReportRepository,
	log logger.Logger,
) *IngestionService {
	return &IngestionService{
		newFetcher: newFetcher,
		store:      store,
		ingested:   ingested,
		log:        log,
	}
}

// IngestFromInbox checks up to limit candidate messages. A message with
// zero usable attachments is not an error; a single attachment failing
// to store is counted and logged but never aborts the sweep. Only a
// connection-level failure returns an error (nothing to iterate).
func (s *IngestionService) IngestFromInbox(ctx context.Context, limit int) (IngestSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IngestionService.IngestFromInbox")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("limit", limit)

	summary := IngestSummary{}

	fetcher := s.newFetcher()
	if err := fetcher.Connect(ctx); err != nil {
		tracing.TraceErr(span, err)
		return summary, err
	}
	defer fetcher.Logout()

	uids, err := fetcher.Search(ctx, limit)
	if err != nil {
		tracing.TraceErr(span, err)
		return summary, err
	}

	for _, uid := range uids {
		msg, err := fetcher.Fetch(ctx, uid)
		if err != nil {
			s.log.Errorf("Failed to fetch message %d: %v", uid, err)
			summary.Errors++
			continue
		}
		summary.EmailsChecked++

		attachments, err := fetcher.ExtractAttachments(msg)
		if err != nil {
			s.log.Errorf("Failed to extract attachments from message %d: %v", uid, err)
			summary.Errors++
			continue
		}

		for _, attachment := range attachments {
			if !isReportFilename(attachment.Filename) {
				continue
			}
			s.ingestAttachment(ctx, msg, attachment, &summary)
		}
	}

	s.log.Infof("Inbox sweep done: %d emails checked, %d ingested, %d duplicates, %d errors",
		summary.EmailsChecked, summary.AttachmentsIngested, summary.DuplicatesSkipped, summary.Errors)
	span.SetTag("ingested", summary.AttachmentsIngested)
	span.SetTag("duplicates", summary.DuplicatesSkipped)
	return summary, nil
}

func (s *IngestionService) ingestAttachment(ctx context.Context, msg *interfaces.MailMessage, attachment interfaces.MailAttachment, summary *IngestSummary) {
	hash := contentstore.Hash(attachment.Content)

	existing, err := s.ingested.GetByContentHash(ctx, hash)
	if err != nil {
		s.log.Errorf("Dedup lookup failed for %s: %v", attachment.Filename, err)
		summary.Errors++
		return
	}
	if existing != nil {
		summary.DuplicatesSkipped++
		return
	}

	obj, err := s.store.Save(ctx, attachment.Filename, attachment.Content)
	if err != nil {
		s.log.Errorf("Failed to store %s: %v", attachment.Filename, err)
		summary.Errors++
		return
	}

	report := &models.IngestedReport{
		ReceivedAt:  msg.ReceivedAt,
		Filename:    attachment.Filename,
		ContentHash: obj.Hash,
		SizeBytes:   obj.Size,
		StoragePath: obj.Path,
	}
	if msg.MessageID != "" {
		report.MessageID = utils.Ptr(msg.MessageID)
	}

	if err := s.ingested.Create(ctx, report); err != nil {
		// A concurrent worker may have ingested the same hash between
		// the lookup and the insert; the unique index turns that race
		// into a duplicate, not an error.
		if isUniqueViolation(err) {
			summary.DuplicatesSkipped++
			return
		}
		s.log.Errorf("Failed to create ingested report row for %s: %v", attachment.Filename, err)
		summary.Errors++
		return
	}

	summary.AttachmentsIngested++
}

func isReportFilename(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range reportExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, reportstack_errors.ErrReportIDConflict) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint")
}
