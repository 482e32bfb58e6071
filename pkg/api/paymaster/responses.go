// Package paymaster defines the request/response types of the payments API.
package paymaster

import "github.com/mgh333114/chance-winner-hub-sub001/pkg/models"

// ErrorResponse is the generic error body
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// WebhookResponse acknowledges a provider webhook delivery
type WebhookResponse struct {
	Received bool `json:"received"`
}

// PromotionCheckRequest asks whether a user crossed the influencer threshold
type PromotionCheckRequest struct {
	UserID string `json:"userId"`
}

// PromotionCheckResponse reports the outcome of a promotion check
type PromotionCheckResponse struct {
	Success          bool `json:"success"`
	BecameInfluencer bool `json:"becameInfluencer"`
}

// MergeRequest carries two partial attribute documents. Either side may be a
// pre-parsed object, serialized text, or null.
type MergeRequest struct {
	Current interface{} `json:"current"`
	New     interface{} `json:"new"`
}

// GetTransactionsResponse lists a member's ledger entries
type GetTransactionsResponse struct {
	Transactions []models.TransactionRecord `json:"transactions"`
	Count        int                        `json:"count"`
}

// GetProfileResponse returns a member's profile
type GetProfileResponse struct {
	Profile models.Profile `json:"profile"`
}
