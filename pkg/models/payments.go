package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Payment event statuses as reported by the provider
const (
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
	PaymentStatusPending = "pending"
)

// PaymentEvent is the normalized form of an inbound provider webhook.
// Built once per delivery and never mutated.
type PaymentEvent struct {
	EventID         string `json:"event_id"`
	UserID          string `json:"user_id"`
	AmountCents     int64  `json:"amount_cents"`
	Status          string `json:"status"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// Transaction types
const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypePrize      = "prize"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// TransactionRecord is a ledger entry for a member's money movement.
// payment_intent_id carries a unique constraint; there is never more than
// one row per provider payment intent.
type TransactionRecord struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	AmountCents     int64     `json:"amount_cents" db:"amount_cents"`
	Type            string    `json:"type" db:"type"`
	Status          string    `json:"status" db:"status"`
	PaymentIntentID string    `json:"payment_intent_id" db:"payment_intent_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Referral statuses
const (
	ReferralStatusPending   = "pending"
	ReferralStatusCompleted = "completed"
)

// ReferralRecord links a referrer to a referee. Rows are created by the
// referral subsystem; this service completes them on the referee's first
// deposit and counts completed rows for promotion decisions.
type ReferralRecord struct {
	ID         string    `json:"id" db:"id"`
	ReferrerID string    `json:"referrer_id" db:"referrer_id"`
	RefereeID  string    `json:"referee_id" db:"referee_id"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Account types
const (
	AccountTypeStandard       = "standard"
	AccountTypeInfluencer     = "influencer"
	AccountTypeDemoInfluencer = "demo_influencer"
)

// Profile is a syndicate member's account row. account_type moves
// standard -> influencer at most once and is never reverted automatically.
type Profile struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	AccountType string    `json:"account_type" db:"account_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
