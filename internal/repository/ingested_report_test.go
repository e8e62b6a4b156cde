package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dmarcwatch/reportstack/internal/enum"
	"github.com/dmarcwatch/reportstack/internal/utils"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	return db, mock
}

func TestClaimPending_FlipsRowsToProcessing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestedReportRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("UPDATE ingested_reports").
		WithArgs(
			enum.IngestionStatusProcessing.String(), sqlmock.AnyArg(),
			enum.IngestionStatusPending.String(), 2,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "content_hash", "storage_path", "status", "created_at", "updated_at"}).
			AddRow(7, "a.xml", strings.Repeat("a", 64), "2025/01/01/aaaaaaaa/a.xml", "processing", now, now).
			AddRow(9, "b.xml.gz", strings.Repeat("b", 64), "2025/01/01/bbbbbbbb/b.xml.gz", "processing", now, now))

	claimed, err := repo.ClaimPending(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, uint(7), claimed[0].ID)
	assert.Equal(t, enum.IngestionStatusProcessing, claimed[0].Status)
	assert.Equal(t, uint(9), claimed[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPending_EmptyQueue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestedReportRepository(db)

	mock.ExpectQuery("UPDATE ingested_reports").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	claimed, err := repo.ClaimPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Empty(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed_TruncatesParseError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestedReportRepository(db)

	longReason := strings.Repeat("x", 5000)
	truncated := utils.TruncateString(longReason, maxParseErrorLen)
	require.Len(t, truncated, maxParseErrorLen)

	// gorm orders map-based updates alphabetically by column
	mock.ExpectExec(`UPDATE "ingested_reports" SET`).
		WithArgs(truncated, enum.IngestionStatusFailed.String(), sqlmock.AnyArg(), 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), 42, longReason)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequeue_OnlyFailedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestedReportRepository(db)

	mock.ExpectExec(`UPDATE "ingested_reports" SET`).
		WithArgs(nil, enum.IngestionStatusPending.String(), sqlmock.AnyArg(), 3, enum.IngestionStatusFailed.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Requeue(context.Background(), 3)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequeue_NonFailedRowIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestedReportRepository(db)

	mock.ExpectExec(`UPDATE "ingested_reports" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Requeue(context.Background(), 3)

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequeueStuckProcessing_CountsTouchedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestedReportRepository(db)

	mock.ExpectExec(`UPDATE "ingested_reports" SET`).
		WithArgs(enum.IngestionStatusPending.String(), sqlmock.AnyArg(), enum.IngestionStatusProcessing.String(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	requeued, err := repo.RequeueStuckProcessing(context.Background(), 30*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, int64(4), requeued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByContentHash_ReturnsNilWhenAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestedReportRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "ingested_reports"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	report, err := repo.GetByContentHash(context.Background(), strings.Repeat("c", 64))

	require.NoError(t, err)
	assert.Nil(t, report)
	assert.NoError(t, mock.ExpectationsWereMet())
}
