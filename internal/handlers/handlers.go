package handlers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"

	paymasterapi "github.com/mgh333114/chance-winner-hub-sub001/pkg/api/paymaster"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/jsondoc"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/middleware"
	"github.com/mgh333114/chance-winner-hub-sub001/pkg/models"
)

// Payment API Endpoints

// HandlePaymentWebhook receives provider payment events. The raw body is
// read before any parsing so the signature covers exactly what was sent.
func HandlePaymentWebhook(c middleware.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.WithError(err).Warn("Failed to read webhook body")
		c.JSON(http.StatusBadRequest, paymasterapi.ErrorResponse{Error: "Invalid payload"})
		return
	}

	ok, msg, code := ProcessPaymentWebhook(c.Request.Context(), body, c.GetHeader("Payment-Signature"))
	if !ok {
		c.JSON(code, paymasterapi.ErrorResponse{Error: msg})
		return
	}

	c.JSON(http.StatusOK, paymasterapi.WebhookResponse{Received: true})
}

// CheckPromotion answers the influencer status poll for a user.
func CheckPromotion(c middleware.Context) {
	var req paymasterapi.PromotionCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, paymasterapi.ErrorResponse{Error: "userId is required"})
		return
	}

	became, err := promotions.CheckAndPromote(c.Request.Context(), req.UserID)
	if err != nil {
		logger.WithError(err).WithField("user_id", req.UserID).Error("Promotion check failed")
		c.JSON(http.StatusInternalServerError, paymasterapi.ErrorResponse{Error: "Failed to check promotion status"})
		return
	}

	c.JSON(http.StatusOK, paymasterapi.PromotionCheckResponse{
		Success:          true,
		BecameInfluencer: became,
	})
}

// MergeAttributes combines two partial attribute documents with
// override-wins semantics. Used for ledger metadata updates and profile
// patches by browser-origin callers.
func MergeAttributes(c middleware.Context) {
	var req paymasterapi.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, paymasterapi.ErrorResponse{Error: "Invalid JSON format", Details: err.Error()})
		return
	}

	merged, err := jsondoc.MergeInputs(req.Current, req.New)
	if err != nil {
		if errors.Is(err, jsondoc.ErrInvalidDocument) {
			c.JSON(http.StatusBadRequest, paymasterapi.ErrorResponse{Error: "Invalid JSON format", Details: err.Error()})
			return
		}
		logger.WithError(err).Error("Failed to merge documents")
		c.JSON(http.StatusInternalServerError, paymasterapi.ErrorResponse{Error: "Failed to merge documents"})
		return
	}

	c.JSON(http.StatusOK, merged)
}

// GetTransactions returns the authenticated member's ledger entries
func GetTransactions(c middleware.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, paymasterapi.ErrorResponse{Error: "User context required"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	rows, err := db.QueryContext(c.Request.Context(), `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch transactions")
		c.JSON(http.StatusInternalServerError, paymasterapi.ErrorResponse{Error: "Failed to fetch transactions"})
		return
	}
	defer rows.Close()

	var transactions []models.TransactionRecord
	for rows.Next() {
		var rec models.TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.AmountCents, &rec.Type, &rec.Status, &rec.PaymentIntentID, &rec.CreatedAt); err != nil {
			logger.WithError(err).Error("Error scanning transaction")
			continue
		}
		transactions = append(transactions, rec)
	}

	c.JSON(http.StatusOK, paymasterapi.GetTransactionsResponse{
		Transactions: transactions,
		Count:        len(transactions),
	})
}

// GetProfile returns the authenticated member's profile
func GetProfile(c middleware.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, paymasterapi.ErrorResponse{Error: "User context required"})
		return
	}

	var profile models.Profile
	err := db.QueryRowContext(c.Request.Context(), `
		SELECT id, email, account_type, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`, userID).Scan(&profile.ID, &profile.Email, &profile.AccountType, &profile.CreatedAt, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, paymasterapi.ErrorResponse{Error: "Profile not found"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to fetch profile")
		c.JSON(http.StatusInternalServerError, paymasterapi.ErrorResponse{Error: "Failed to fetch profile"})
		return
	}

	c.JSON(http.StatusOK, paymasterapi.GetProfileResponse{Profile: profile})
}
