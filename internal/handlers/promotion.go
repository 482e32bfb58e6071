package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mgh333114/chance-winner-hub-sub001/pkg/logging"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/models"
)

const defaultReferralThreshold = 100

// PromotionEngine decides whether a user crosses the influencer threshold
// and performs the one-way account tier upgrade. The client-visible count
// check is only a fast path; the authoritative decision is a single atomic
// statement in the storage layer, so concurrent checks for the same user
// cannot promote twice.
type PromotionEngine struct {
	db        *sql.DB
	logger    logging.Logger
	notifier  Notifier
	threshold int
}

func NewPromotionEngine(db *sql.DB, logger logging.Logger, notifier Notifier, threshold int) *PromotionEngine {
	if threshold <= 0 {
		threshold = defaultReferralThreshold
	}
	return &PromotionEngine{
		db:        db,
		logger:    logger,
		notifier:  notifier,
		threshold: threshold,
	}
}

// ReferralCount counts a user's completed referrals. Reads the latest
// committed state directly; no caching.
func (e *PromotionEngine) ReferralCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM referrals
		WHERE referrer_id = $1 AND status = 'completed'
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}

// CompleteReferral flips the referee's pending referral to completed and
// returns the referrer. Returns completed=false when the user has no
// pending referral, which is the common case.
func (e *PromotionEngine) CompleteReferral(ctx context.Context, refereeID string) (string, bool, error) {
	var referrerID string
	err := e.db.QueryRowContext(ctx, `
		UPDATE referrals
		SET status = 'completed'
		WHERE referee_id = $1 AND status = 'pending'
		RETURNING referrer_id
	`, refereeID).Scan(&referrerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to complete referral: %w", err)
	}
	return referrerID, true, nil
}

// CheckAndPromote returns whether the user became an influencer in this
// call. Repeat invocations after a promotion observe false and send no
// further notification.
func (e *PromotionEngine) CheckAndPromote(ctx context.Context, userID string) (bool, error) {
	// Fast path: skip the atomic procedure when the user is plainly not
	// eligible. This read is racy and never the source of truth.
	var accountType string
	err := e.db.QueryRowContext(ctx, `
		SELECT account_type FROM profiles WHERE id = $1
	`, userID).Scan(&accountType)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("profile not found: %s", userID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to load profile: %w", err)
	}
	if accountType != models.AccountTypeStandard {
		return false, nil
	}

	count, err := e.ReferralCount(ctx, userID)
	if err != nil {
		return false, err
	}
	if count < e.threshold {
		return false, nil
	}

	// Authoritative decision: re-verify the threshold and flip the tier in
	// one statement. RowsAffected is 1 exactly once per user lifetime.
	result, err := e.db.ExecContext(ctx, `
		UPDATE profiles
		SET account_type = 'influencer', updated_at = NOW()
		WHERE id = $1
		  AND account_type = 'standard'
		  AND (SELECT COUNT(*) FROM referrals
		       WHERE referrer_id = $1 AND status = 'completed') >= $2
	`, userID, e.threshold)
	if err != nil {
		return false, fmt.Errorf("failed to promote profile: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Lost the race or the count moved under us; someone else promoted
		// or the user is no longer eligible.
		return false, nil
	}

	e.logger.WithFields(logging.Fields{
		"user_id":        userID,
		"referral_count": count,
		"threshold":      e.threshold,
	}).Info("Promoted user to influencer")
	e.recordPromotion("promoted")

	e.notifyPromoted(ctx, userID)
	return true, nil
}

// notifyPromoted sends the one-shot congratulations message. A missing
// email or notifier failure leaves the promotion in place; the condition is
// logged as a recoverable warning.
func (e *PromotionEngine) notifyPromoted(ctx context.Context, userID string) {
	var email string
	err := e.db.QueryRowContext(ctx, `
		SELECT email FROM profiles WHERE id = $1
	`, userID).Scan(&email)
	if err != nil {
		e.logger.WithError(err).WithField("user_id", userID).Warn("Failed to load email for promotion notification")
		e.recordPromotion("notify_skipped")
		return
	}
	if email == "" {
		e.logger.WithField("user_id", userID).Warn("No email for promotion notification")
		e.recordPromotion("notify_skipped")
		return
	}

	if e.notifier == nil {
		e.logger.WithField("user_id", userID).Warn("Notifier not configured; skipping promotion notification")
		e.recordPromotion("notify_skipped")
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.notifier.SendCongratulations(notifyCtx, email); err != nil {
		e.logger.WithError(err).WithFields(logging.Fields{
			"user_id": userID,
		}).Warn("Failed to send promotion notification")
		e.recordPromotion("notify_failed")
		return
	}

	e.recordPromotion("notified")
}

func (e *PromotionEngine) recordPromotion(outcome string) {
	if metrics == nil || metrics.Promotions == nil {
		return
	}
	metrics.Promotions.WithLabelValues(outcome).Inc()
}
