package handlers

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mgh333114/chance-winner-hub-sub001/pkg/logging"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/models"
)

func testPaymentEvent() models.PaymentEvent {
	return models.PaymentEvent{
		EventID:         "evt_1",
		UserID:          "user-1",
		AmountCents:     2500,
		Status:          models.PaymentStatusPaid,
		PaymentIntentID: "pi_1",
	}
}

func TestLedgerRecordInserts(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	writer := NewLedgerWriter(mockDB, logging.NewLogger())

	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "user-1", int64(2500), "pi_1").
		WillReturnRows(transactionRows("txn-1", "user-1", 2500, "pi_1"))

	rec, err := writer.Record(context.Background(), testPaymentEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "txn-1" {
		t.Fatalf("expected txn-1, got %q", rec.ID)
	}
	if rec.Type != "deposit" || rec.Status != "completed" {
		t.Fatalf("expected completed deposit, got %s/%s", rec.Type, rec.Status)
	}
	if rec.AmountCents != 2500 {
		t.Fatalf("expected amount stored in cents, got %d", rec.AmountCents)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerRecordDuplicateReturnsExisting(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	writer := NewLedgerWriter(mockDB, logging.NewLogger())

	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "user-1", int64(2500), "pi_1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM transactions").
		WithArgs("pi_1").
		WillReturnRows(transactionRows("txn-orig", "user-1", 2500, "pi_1"))

	rec, err := writer.Record(context.Background(), testPaymentEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "txn-orig" {
		t.Fatalf("expected the original record back, got %q", rec.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerRecordStorageFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	writer := NewLedgerWriter(mockDB, logging.NewLogger())

	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "user-1", int64(2500), "pi_1").
		WillReturnError(errors.New("disk full"))

	_, err = writer.Record(context.Background(), testPaymentEvent())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
