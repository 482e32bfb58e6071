package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mgh333114/chance-winner-hub-sub001/pkg/logging"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/models"
)

// ErrPersistence marks a storage failure while appending to the ledger.
// The webhook boundary surfaces it as a 5xx so the provider redelivers.
var ErrPersistence = errors.New("ledger storage failure")

// LedgerWriter appends transaction records for normalized payment events.
// Idempotency rests on the payment_intent_id unique constraint, not on an
// application-level existence check: two concurrent writers racing on the
// same delivery cannot both insert.
type LedgerWriter struct {
	db     *sql.DB
	logger logging.Logger
}

func NewLedgerWriter(db *sql.DB, logger logging.Logger) *LedgerWriter {
	return &LedgerWriter{
		db:     db,
		logger: logger,
	}
}

const transactionColumns = `id, user_id, amount_cents, type, status, payment_intent_id, created_at`

// Record appends a deposit for the event, or returns the existing record
// when the payment intent was already processed.
func (w *LedgerWriter) Record(ctx context.Context, event models.PaymentEvent) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := w.db.QueryRowContext(ctx, `
		INSERT INTO transactions (id, user_id, amount_cents, type, status, payment_intent_id)
		VALUES ($1, $2, $3, 'deposit', 'completed', $4)
		ON CONFLICT (payment_intent_id) DO NOTHING
		RETURNING `+transactionColumns+`
	`, uuid.New().String(), event.UserID, event.AmountCents, event.PaymentIntentID).Scan(
		&rec.ID, &rec.UserID, &rec.AmountCents, &rec.Type, &rec.Status, &rec.PaymentIntentID, &rec.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict path: the provider redelivered an event we already hold
		return w.existing(ctx, event.PaymentIntentID)
	}
	if err != nil {
		w.recordOutcome("error")
		return nil, fmt.Errorf("%w: failed to insert transaction: %v", ErrPersistence, err)
	}

	w.recordOutcome("inserted")
	w.logger.WithFields(logging.Fields{
		"transaction_id":    rec.ID,
		"user_id":           rec.UserID,
		"amount_cents":      rec.AmountCents,
		"payment_intent_id": rec.PaymentIntentID,
	}).Info("Recorded deposit transaction")

	return &rec, nil
}

func (w *LedgerWriter) existing(ctx context.Context, paymentIntentID string) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := w.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE payment_intent_id = $1
	`, paymentIntentID).Scan(
		&rec.ID, &rec.UserID, &rec.AmountCents, &rec.Type, &rec.Status, &rec.PaymentIntentID, &rec.CreatedAt,
	)
	if err != nil {
		w.recordOutcome("error")
		return nil, fmt.Errorf("%w: failed to load existing transaction: %v", ErrPersistence, err)
	}

	w.recordOutcome("duplicate")
	w.logger.WithFields(logging.Fields{
		"transaction_id":    rec.ID,
		"payment_intent_id": rec.PaymentIntentID,
	}).Info("Duplicate payment event, returning existing transaction")

	return &rec, nil
}

func (w *LedgerWriter) recordOutcome(outcome string) {
	if metrics == nil || metrics.LedgerWrites == nil {
		return
	}
	metrics.LedgerWrites.WithLabelValues(outcome).Inc()
}
