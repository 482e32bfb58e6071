// Package notifier is the HTTP client for the external notification
// service. Delivery is fire-and-forget from the caller's point of view:
// errors are returned for logging but never roll back domain state.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mgh333114/chance-winner-hub-sub001/pkg/logging"
)

const congratulationsSubject = "You're an influencer now!"

const congratulationsMessage = "Congratulations! You reached the referral milestone and your account " +
	"has been upgraded to influencer status. Your new perks are live in the app."

// Config for creating a notifier client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  logging.Logger
}

// Client sends notification requests to the notifier service
type Client struct {
	http   *resty.Client
	logger logging.Logger
}

// NewClient creates a notifier client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:   httpClient,
		logger: cfg.Logger,
	}
}

type sendRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// SendCongratulations delivers the influencer promotion message to a
// member's email address.
func (c *Client) SendCongratulations(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("notifier: email is required")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			Email:   email,
			Subject: congratulationsSubject,
			Message: congratulationsMessage,
		}).
		Post("/notifications/send")
	if err != nil {
		return fmt.Errorf("notifier request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notifier returned %d", resp.StatusCode())
	}

	c.logger.WithField("status", resp.StatusCode()).Debug("Sent promotion notification")
	return nil
}
