package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/enum"
	"github.com/dmarcwatch/reportstack/internal/logger"
	"github.com/dmarcwatch/reportstack/internal/models"
	"github.com/dmarcwatch/reportstack/services/contentstore"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type fakeFetcher struct {
	connectErr  error
	messages    map[uint32]*interfaces.MailMessage
	attachments map[uint32][]interfaces.MailAttachment
	fetchErrs   map[uint32]error
	loggedOut   bool
}

func (f *fakeFetcher) Connect(ctx context.Context) error { return f.connectErr }

func (f *fakeFetcher) Logout() { f.loggedOut = true }

func (f *fakeFetcher) Search(ctx context.Context, limit int) ([]uint32, error) {
	uids := make([]uint32, 0, len(f.messages))
	for uid := range f.messages {
		uids = append(uids, uid)
	}
	for uid := range f.fetchErrs {
		uids = append(uids, uid)
	}
	if len(uids) > limit {
		uids = uids[:limit]
	}
	return uids, nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, uid uint32) (*interfaces.MailMessage, error) {
	if err, ok := f.fetchErrs[uid]; ok {
		return nil, err
	}
	return f.messages[uid], nil
}

func (f *fakeFetcher) ExtractAttachments(msg *interfaces.MailMessage) ([]interfaces.MailAttachment, error) {
	return f.attachments[msg.UID], nil
}

type fakeStore struct {
	saved   map[string][]byte
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string][]byte)}
}

func (s *fakeStore) Save(ctx context.Context, filename string, data []byte) (*interfaces.StoredObject, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	digest := contentstore.Hash(data)
	path := "2025/01/01/" + digest[:8] + "/" + filename
	s.saved[path] = data
	return &interfaces.StoredObject{Path: path, Hash: digest, Size: int64(len(data))}, nil
}

func (s *fakeStore) Read(ctx context.Context, path string) ([]byte, error) {
	data, ok := s.saved[path]
	if !ok {
		return nil, errors.New("not stored")
	}
	return data, nil
}

func (s *fakeStore) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := s.saved[path]
	return ok, nil
}

type fakeIngestedRepo struct {
	rows      map[uint]*models.IngestedReport
	nextID    uint
	createErr error
}

func newFakeIngestedRepo() *fakeIngestedRepo {
	return &fakeIngestedRepo{rows: make(map[uint]*models.IngestedReport), nextID: 1}
}

func (r *fakeIngestedRepo) Create(ctx context.Context, report *models.IngestedReport) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, row := range r.rows {
		if row.ContentHash == report.ContentHash {
			return errors.New(`duplicate key value violates unique constraint "idx_ingested_reports_content_hash"`)
		}
	}
	report.ID = r.nextID
	report.Status = enum.IngestionStatusPending
	r.nextID++
	r.rows[report.ID] = report
	return nil
}

func (r *fakeIngestedRepo) GetByID(ctx context.Context, id uint) (*models.IngestedReport, error) {
	return r.rows[id], nil
}

func (r *fakeIngestedRepo) GetByContentHash(ctx context.Context, hash string) (*models.IngestedReport, error) {
	for _, row := range r.rows {
		if row.ContentHash == hash {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeIngestedRepo) ClaimPending(ctx context.Context, limit int) ([]*models.IngestedReport, error) {
	claimed := make([]*models.IngestedReport, 0, limit)
	for _, row := range r.rows {
		if len(claimed) == limit {
			break
		}
		if row.Status == enum.IngestionStatusPending {
			row.Status = enum.IngestionStatusProcessing
			claimed = append(claimed, row)
		}
	}
	return claimed, nil
}

func (r *fakeIngestedRepo) MarkFailed(ctx context.Context, id uint, parseError string) error {
	r.rows[id].Status = enum.IngestionStatusFailed
	r.rows[id].ParseError = &parseError
	return nil
}

func (r *fakeIngestedRepo) Requeue(ctx context.Context, id uint) error {
	r.rows[id].Status = enum.IngestionStatusPending
	return nil
}

func (r *fakeIngestedRepo) RequeueStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func (r *fakeIngestedRepo) List(ctx context.Context, status *enum.IngestionStatus, limit, offset int) ([]*models.IngestedReport, error) {
	out := make([]*models.IngestedReport, 0, len(r.rows))
	for _, row := range r.rows {
		if status == nil || row.Status == *status {
			out = append(out, row)
		}
	}
	return out, nil
}

func reportMessage(uid uint32) *interfaces.MailMessage {
	return &interfaces.MailMessage{
		UID:        uid,
		MessageID:  "<msg-1@google.com>",
		Subject:    "Report Domain: example.com Submitter: google.com",
		ReceivedAt: time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestIngestFromInbox_StoresReportAttachments(t *testing.T) {
	fetcher := &fakeFetcher{
		messages: map[uint32]*interfaces.MailMessage{1: reportMessage(1)},
		attachments: map[uint32][]interfaces.MailAttachment{
			1: {
				{Filename: "google.com!example.com!1609459200!1609545600.xml.gz", Content: []byte("gzip bytes")},
				{Filename: "signature.asc", Content: []byte("not a report")},
			},
		},
	}
	store := newFakeStore()
	repo := newFakeIngestedRepo()
	svc := NewIngestionService(func() interfaces.MailFetcher { return fetcher }, store, repo, getLogger())

	summary, err := svc.IngestFromInbox(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.EmailsChecked)
	assert.Equal(t, 1, summary.AttachmentsIngested)
	assert.Equal(t, 0, summary.DuplicatesSkipped)
	assert.Equal(t, 0, summary.Errors)
	assert.True(t, fetcher.loggedOut)

	require.Len(t, repo.rows, 1)
	row := repo.rows[1]
	assert.Equal(t, enum.IngestionStatusPending, row.Status)
	assert.Equal(t, contentstore.Hash([]byte("gzip bytes")), row.ContentHash)
	require.NotNil(t, row.MessageID)
	assert.Equal(t, "<msg-1@google.com>", *row.MessageID)

	stored, err := store.Read(context.Background(), row.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("gzip bytes"), stored)
}

func TestIngestFromInbox_SecondSweepSkipsDuplicates(t *testing.T) {
	fetcher := &fakeFetcher{
		messages: map[uint32]*interfaces.MailMessage{1: reportMessage(1)},
		attachments: map[uint32][]interfaces.MailAttachment{
			1: {{Filename: "report.xml", Content: []byte("<feedback/>")}},
		},
	}
	store := newFakeStore()
	repo := newFakeIngestedRepo()
	svc := NewIngestionService(func() interfaces.MailFetcher { return fetcher }, store, repo, getLogger())

	first, err := svc.IngestFromInbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, first.AttachmentsIngested)

	second, err := svc.IngestFromInbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, second.AttachmentsIngested)
	assert.Equal(t, 1, second.DuplicatesSkipped)
	assert.Len(t, repo.rows, 1)
}

func TestIngestFromInbox_InsertRaceCountsAsDuplicate(t *testing.T) {
	fetcher := &fakeFetcher{
		messages: map[uint32]*interfaces.MailMessage{1: reportMessage(1)},
		attachments: map[uint32][]interfaces.MailAttachment{
			1: {{Filename: "report.xml", Content: []byte("<feedback/>")}},
		},
	}
	store := newFakeStore()
	repo := newFakeIngestedRepo()
	repo.createErr = errors.New(`duplicate key value violates unique constraint "idx_ingested_reports_content_hash"`)
	svc := NewIngestionService(func() interfaces.MailFetcher { return fetcher }, store, repo, getLogger())

	summary, err := svc.IngestFromInbox(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.AttachmentsIngested)
	assert.Equal(t, 1, summary.DuplicatesSkipped)
	assert.Equal(t, 0, summary.Errors)
}

func TestIngestFromInbox_FetchFailureDoesNotAbortSweep(t *testing.T) {
	fetcher := &fakeFetcher{
		messages: map[uint32]*interfaces.MailMessage{2: reportMessage(2)},
		attachments: map[uint32][]interfaces.MailAttachment{
			2: {{Filename: "report.zip", Content: []byte("zip bytes")}},
		},
		fetchErrs: map[uint32]error{1: errors.New("message gone")},
	}
	store := newFakeStore()
	repo := newFakeIngestedRepo()
	svc := NewIngestionService(func() interfaces.MailFetcher { return fetcher }, store, repo, getLogger())

	summary, err := svc.IngestFromInbox(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.EmailsChecked)
	assert.Equal(t, 1, summary.AttachmentsIngested)
	assert.Equal(t, 1, summary.Errors)
}

func TestIngestFromInbox_ConnectFailureReturnsError(t *testing.T) {
	fetcher := &fakeFetcher{connectErr: errors.New("dial tcp: connection refused")}
	svc := NewIngestionService(func() interfaces.MailFetcher { return fetcher }, newFakeStore(), newFakeIngestedRepo(), getLogger())

	summary, err := svc.IngestFromInbox(context.Background(), 10)

	require.Error(t, err)
	assert.Zero(t, summary.EmailsChecked)
}

func TestIsReportFilename(t *testing.T) {
	assert.True(t, isReportFilename("report.xml"))
	assert.True(t, isReportFilename("report.XML"))
	assert.True(t, isReportFilename("report.xml.gz"))
	assert.True(t, isReportFilename("report.zip"))
	assert.False(t, isReportFilename("signature.asc"))
	assert.False(t, isReportFilename("report.pdf"))
}
