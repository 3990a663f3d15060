package submission

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "policy-monitor/internal/common/errors"
	"policy-monitor/internal/models"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func uniqueViolation() *pq.Error {
	return &pq.Error{Code: "23505"}
}

func TestInsert_DuplicateSerialMapsToConflict(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnError(uniqueViolation())

	err := store.Insert(context.Background(), &models.Submission{
		ID:           "sub-1",
		SerialNumber: "AZ-0001",
		Status:       models.StatusPending,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeSerialConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBySerial_NotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT").
		WithArgs("UNKNOWN").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetBySerial(context.Background(), "UNKNOWN")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPayment_DuplicatePeriodMapsToConflict(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_history")).
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	entry := &models.PaymentHistoryEntry{
		ID:            "pay-1",
		SubmissionID:  "sub-1",
		Amount:        1200,
		PaidAt:        time.Now(),
		PeriodCovered: "2024-06-01",
	}
	err := store.RecordPayment(context.Background(), entry, "2024-09-01")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodePaymentConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPayment_CommitsHistoryAndAdvance(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_history")).
		WithArgs("pay-1", "sub-1", 1200.0, sqlmock.AnyArg(), "2024-06-01").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions")).
		WithArgs("2024-09-01", sqlmock.AnyArg(), "sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry := &models.PaymentHistoryEntry{
		ID:            "pay-1",
		SubmissionID:  "sub-1",
		Amount:        1200,
		PaidAt:        time.Now(),
		PeriodCovered: "2024-06-01",
	}
	err := store.RecordPayment(context.Background(), entry, "2024-09-01")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_UnknownSubmission(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateStatus(context.Background(), "nope", models.StatusIssued, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
