package handlers

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mgh333114/chance-winner-hub-sub001/pkg/logging"
)

// Notifier delivers the one-shot congratulations message after a promotion.
// Delivery is owned by an external service; failures are logged, never
// propagated into the promotion outcome.
type Notifier interface {
	SendCongratulations(ctx context.Context, email string) error
}

var (
	db         *sql.DB
	logger     logging.Logger
	metrics    *PaymasterMetrics
	verifier   SignatureVerifier
	ledger     *LedgerWriter
	promotions *PromotionEngine
)

// PaymasterMetrics holds all Prometheus metrics for Paymaster
type PaymasterMetrics struct {
	WebhookEvents     *prometheus.CounterVec
	SignatureFailures *prometheus.CounterVec
	LedgerWrites      *prometheus.CounterVec
	Promotions        *prometheus.CounterVec
	DBQueries         *prometheus.CounterVec
	DBDuration        *prometheus.HistogramVec
	DBConnections     *prometheus.GaugeVec
}

// Config carries the explicit configuration injected at startup. Components
// never read ambient process state themselves.
type Config struct {
	WebhookSecret     string
	ReferralThreshold int
}

// Init initializes the handlers with database, logger, metrics and collaborators
func Init(database *sql.DB, log logging.Logger, paymasterMetrics *PaymasterMetrics, cfg Config, notifier Notifier) {
	db = database
	logger = log
	metrics = paymasterMetrics
	verifier = NewHMACVerifier(cfg.WebhookSecret)
	ledger = NewLedgerWriter(database, log)
	promotions = NewPromotionEngine(database, log, notifier, cfg.ReferralThreshold)
}

func recordSignatureFailure(reason string) {
	if metrics == nil || metrics.SignatureFailures == nil {
		return
	}
	metrics.SignatureFailures.WithLabelValues(reason).Inc()
}

func recordWebhookEvent(eventType, status string) {
	if metrics == nil || metrics.WebhookEvents == nil {
		return
	}
	metrics.WebhookEvents.WithLabelValues(eventType, status).Inc()
}
