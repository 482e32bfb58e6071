package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mgh333114/chance-winner-hub-sub001/pkg/logging"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/models"
)

// ErrMalformedEvent means a recognized event kind is missing required fields.
var ErrMalformedEvent = errors.New("malformed payment event")

// eventCheckoutCompleted is the only event kind that produces a ledger entry.
// Every other kind is acknowledged and dropped so the provider can add new
// kinds without breaking deliveries.
const eventCheckoutCompleted = "checkout.session.completed"

// PaymentWebhookPayload is the provider's envelope. Data.Object is parsed
// per event kind.
type PaymentWebhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSessionObject for checkout.session.completed events
type CheckoutSessionObject struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"` // minor units (cents), stored as-is
	Metadata      struct {
		UserID string `json:"user_id"`
	} `json:"metadata"`
}

// NormalizePaymentEvent converts a verified payload into a domain event.
// Unknown event kinds return (nil, nil): not an error, no side effect.
func NormalizePaymentEvent(payload PaymentWebhookPayload) (*models.PaymentEvent, error) {
	if payload.Type != eventCheckoutCompleted {
		return nil, nil
	}

	var obj CheckoutSessionObject
	if err := json.Unmarshal(payload.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("%w: failed to parse checkout session: %v", ErrMalformedEvent, err)
	}

	if obj.Metadata.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id in checkout metadata", ErrMalformedEvent)
	}
	if obj.PaymentIntent == "" {
		return nil, fmt.Errorf("%w: missing payment_intent", ErrMalformedEvent)
	}
	if obj.AmountTotal < 0 {
		return nil, fmt.Errorf("%w: negative amount_total", ErrMalformedEvent)
	}

	status := models.PaymentStatusPaid
	switch obj.PaymentStatus {
	case "", "paid":
		// completed checkouts default to paid
	case "unpaid":
		status = models.PaymentStatusPending
	default:
		status = obj.PaymentStatus
	}

	return &models.PaymentEvent{
		EventID:         payload.ID,
		UserID:          obj.Metadata.UserID,
		AmountCents:     obj.AmountTotal,
		Status:          status,
		PaymentIntentID: obj.PaymentIntent,
	}, nil
}

// ProcessPaymentWebhook runs the full ingestion pipeline for one delivery:
// signature verification, normalization, ledger write, then the referral
// follow-up. Returns (success, error_message, http_status_code).
func ProcessPaymentWebhook(ctx context.Context, body []byte, signatureHeader string) (bool, string, int) {
	if err := verifier.Verify(body, signatureHeader); err != nil {
		switch {
		case errors.Is(err, ErrSignatureMissing):
			logger.Warn("Payment webhook signature missing")
			recordSignatureFailure("missing")
			return false, "Missing signature", 400
		default:
			// Generic rejection only; no oracle for forgery attempts
			logger.Warn("Payment webhook signature verification failed")
			recordSignatureFailure("invalid")
			return false, "Invalid signature", 400
		}
	}

	var payload PaymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.WithError(err).Warn("Invalid payment webhook payload")
		return false, "Invalid payload", 400
	}

	logger.WithFields(logging.Fields{
		"event_id":   payload.ID,
		"event_type": payload.Type,
	}).Info("Received payment webhook")

	event, err := NormalizePaymentEvent(payload)
	if err != nil {
		logger.WithError(err).WithField("event_type", payload.Type).Warn("Malformed payment event")
		recordWebhookEvent(payload.Type, "malformed")
		return false, "Malformed event", 400
	}
	if event == nil {
		logger.WithField("event_type", payload.Type).Debug("Ignoring unhandled payment event type")
		recordWebhookEvent(payload.Type, "ignored")
		return true, "", 200
	}

	record, err := ledger.Record(ctx, *event)
	if err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"event_id":          event.EventID,
			"payment_intent_id": event.PaymentIntentID,
		}).Error("Failed to record payment event")
		recordWebhookEvent(payload.Type, "failed")
		return false, "Failed to process event", 500
	}
	recordWebhookEvent(payload.Type, "processed")

	// A paid deposit may complete the payer's referral and push the referrer
	// over the influencer threshold. The ledger write above is the financial
	// effect; anything that goes wrong past this point is logged, not
	// surfaced, so the provider does not redeliver.
	if event.Status == models.PaymentStatusPaid {
		settleReferralForDeposit(ctx, event.UserID, record)
	}

	return true, "", 200
}

// settleReferralForDeposit completes the payer's pending referral (if any)
// and runs the referrer through the promotion engine.
func settleReferralForDeposit(ctx context.Context, refereeID string, record *models.TransactionRecord) {
	referrerID, completed, err := promotions.CompleteReferral(ctx, refereeID)
	if err != nil {
		logger.WithError(err).WithField("referee_id", refereeID).Warn("Failed to complete referral after deposit")
		return
	}
	if !completed {
		return
	}

	logger.WithFields(logging.Fields{
		"referrer_id":    referrerID,
		"referee_id":     refereeID,
		"transaction_id": record.ID,
	}).Info("Referral completed by first deposit")

	if _, err := promotions.CheckAndPromote(ctx, referrerID); err != nil {
		logger.WithError(err).WithField("referrer_id", referrerID).Warn("Promotion check failed after referral completion")
	}
}
