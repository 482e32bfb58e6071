package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/mgh333114/chance-winner-hub-sub001/pkg/logging"
)

func setupHandlerTest(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	Init(mockDB, logging.NewLogger(), nil, Config{
		WebhookSecret:     "unit-test-secret",
		ReferralThreshold: 100,
	}, nil)
	t.Cleanup(func() {
		db = nil
		ledger = nil
		promotions = nil
		verifier = nil
	})

	return mock, gin.New()
}

func TestHandlePaymentWebhookRespondsReceived(t *testing.T) {
	mock, router := setupHandlerTest(t)
	router.POST("/webhooks/payments", HandlePaymentWebhook)

	body := checkoutCompletedBody(t, `{"id":"cs_1","payment_intent":"pi_1","payment_status":"paid","amount_total":2500,"metadata":{"user_id":"user-1"}}`)

	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "user-1", int64(2500), "pi_1").
		WillReturnRows(transactionRows("txn-1", "user-1", 2500, "pi_1"))
	mock.ExpectQuery("UPDATE referrals").
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest("POST", "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("Payment-Signature", paymentSignatureHeader(body, "unit-test-secret", time.Now().Unix()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}

	var resp map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp["received"] {
		t.Fatalf("expected received=true, got %s", w.Body.String())
	}
}

func TestHandlePaymentWebhookRejectsUnsigned(t *testing.T) {
	_, router := setupHandlerTest(t)
	router.POST("/webhooks/payments", HandlePaymentWebhook)

	req := httptest.NewRequest("POST", "/webhooks/payments", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCheckPromotionRequiresUserID(t *testing.T) {
	_, router := setupHandlerTest(t)
	router.POST("/promotion/check", CheckPromotion)

	req := httptest.NewRequest("POST", "/promotion/check", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCheckPromotionReportsOutcome(t *testing.T) {
	mock, router := setupHandlerTest(t)
	router.POST("/promotion/check", CheckPromotion)

	mock.ExpectQuery("SELECT account_type FROM profiles").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"account_type"}).AddRow("standard"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM referrals`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	req := httptest.NewRequest("POST", "/promotion/check", bytes.NewReader([]byte(`{"userId":"user-1"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}

	var resp struct {
		Success          bool `json:"success"`
		BecameInfluencer bool `json:"becameInfluencer"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Success || resp.BecameInfluencer {
		t.Fatalf("expected success without promotion, got %+v", resp)
	}
}

func TestMergeAttributesOverrideWins(t *testing.T) {
	_, router := setupHandlerTest(t)
	router.POST("/merge", MergeAttributes)

	body := []byte(`{"current":{"a":1,"b":{"x":true}},"new":{"b":"replaced","c":3}}`)
	req := httptest.NewRequest("POST", "/merge", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}

	var merged map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &merged); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if merged["a"] != float64(1) || merged["b"] != "replaced" || merged["c"] != float64(3) {
		t.Fatalf("unexpected merge result: %v", merged)
	}
}

func TestMergeAttributesRejectsInvalidJSON(t *testing.T) {
	_, router := setupHandlerTest(t)
	router.POST("/merge", MergeAttributes)

	body := []byte(`{"current":"{not valid","new":{}}`)
	req := httptest.NewRequest("POST", "/merge", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body=%s)", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["error"] != "Invalid JSON format" {
		t.Fatalf("expected Invalid JSON format, got %v", resp["error"])
	}
}

func TestGetTransactionsScopedToUser(t *testing.T) {
	mock, router := setupHandlerTest(t)
	router.GET("/transactions", func(c *gin.Context) {
		c.Set("user_id", "user-1")
		GetTransactions(c)
	})

	mock.ExpectQuery("SELECT (.+) FROM transactions").
		WithArgs("user-1", 50, 0).
		WillReturnRows(transactionRows("txn-1", "user-1", 2500, "pi_1"))

	req := httptest.NewRequest("GET", "/transactions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", w.Code, w.Body.String())
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("expected 1 transaction, got %d", resp.Count)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	mock, router := setupHandlerTest(t)
	router.GET("/profile", func(c *gin.Context) {
		c.Set("user_id", "ghost")
		GetProfile(c)
	})

	mock.ExpectQuery("SELECT (.+) FROM profiles").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest("GET", "/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
