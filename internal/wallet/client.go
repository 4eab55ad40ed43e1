// Package wallet moves race stakes and winnings through the external player wallet over HTTP.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/logger"
	"github.com/yourusername/paddock/internal/metrics"
	"github.com/yourusername/paddock/internal/models"
	"golang.org/x/time/rate"
)

var (
	// ErrCircuitOpen is returned while the wallet is considered down
	ErrCircuitOpen = errors.New("wallet circuit breaker open")
	// ErrRejected is returned when the wallet refuses a request; it is not retried
	ErrRejected = errors.New("wallet rejected request")
)

// Config holds wallet client settings
type Config struct {
	URL               string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RequestsPerSecond float64
	// BreakerThreshold is the number of consecutive failures that opens the circuit
	BreakerThreshold int
	// BreakerCooldown is how long the circuit stays open
	BreakerCooldown time.Duration
}

// FromAppConfig maps the wallet section of the application configuration
func FromAppConfig(cfg config.WalletConfig) Config {
	return Config{
		URL:               cfg.URL,
		APIKey:            cfg.APIKey,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.RetryAttempts,
		RetryWaitMin:      100 * time.Millisecond,
		RetryWaitMax:      5 * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		BreakerThreshold:  5,
		BreakerCooldown:   30 * time.Second,
	}
}

type creditRequest struct {
	Account   string          `json:"account"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type balanceResponse struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

// Client is a rate limited, retrying wallet client with a circuit breaker
type Client struct {
	cfg     Config
	http    *retryablehttp.Client
	limiter *rate.Limiter
	log     *logrus.Entry

	mu          sync.Mutex
	failures    int
	openedUntil time.Time
	lastError   error
}

// NewClient creates a wallet client
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}
	entry := logger.Component(log, "wallet")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = retryPolicy
	retryClient.Logger = leveledLogger{entry}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		cfg:     cfg,
		http:    retryClient,
		limiter: rate.NewLimiter(limit, 1),
		log:     entry,
	}
}

// Credit adds amount to the bettor's account. The reference is sent as the idempotency
// key, so a repeated credit for the same wager is acknowledged without paying twice.
func (c *Client) Credit(ctx context.Context, bettor string, amount decimal.Decimal, reference string) (err error) {
	defer func() { metrics.RecordWalletCredit(err) }()

	body, err := json.Marshal(creditRequest{Account: bettor, Amount: amount, Reference: reference})
	if err != nil {
		return fmt.Errorf("failed to marshal credit: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/credits", body, reference)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		c.log.WithField("reference", reference).Debug("Credit already applied")
		return nil
	case resp.StatusCode >= 300:
		return rejection(resp)
	}

	c.log.WithFields(logrus.Fields{
		"account":   bettor,
		"amount":    amount.String(),
		"reference": reference,
	}).Info("Payout credited")
	return nil
}

// Debit takes a wager stake from the bettor's account. A 402 from the wallet means the
// balance cannot cover the stake and is reported as a validation error.
func (c *Client) Debit(ctx context.Context, bettor string, amount decimal.Decimal, reference string) (err error) {
	defer func() { metrics.RecordWalletDebit(err) }()

	body, err := json.Marshal(creditRequest{Account: bettor, Amount: amount, Reference: reference})
	if err != nil {
		return fmt.Errorf("failed to marshal debit: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/debits", body, reference)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return models.NewValidationError("insufficient_credits", "wallet balance cannot cover stake "+amount.String())
	case resp.StatusCode == http.StatusConflict:
		c.log.WithField("reference", reference).Debug("Debit already applied")
		return nil
	case resp.StatusCode >= 300:
		return rejection(resp)
	}

	c.log.WithFields(logrus.Fields{
		"account":   bettor,
		"amount":    amount.String(),
		"reference": reference,
	}).Info("Stake debited")
	return nil
}

// Balance reads an account balance
func (c *Client) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	resp, err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(account)+"/balance", nil, "")
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decimal.Zero, rejection(resp)
	}
	var out balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode balance: %w", err)
	}
	return out.Balance, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.HTTPClient.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, idempotencyKey string) (*http.Response, error) {
	if err := c.allow(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.URL, "/")+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build wallet request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(err)
		return nil, fmt.Errorf("wallet request failed: %w", err)
	}
	if resp.StatusCode >= 500 {
		c.recordFailure(fmt.Errorf("status %d", resp.StatusCode))
	} else {
		c.recordSuccess()
	}
	return resp, nil
}

func (c *Client) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().Before(c.openedUntil) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, c.lastError)
	}
	return nil
}

func (c *Client) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	c.lastError = err
	if c.cfg.BreakerThreshold > 0 && c.failures >= c.cfg.BreakerThreshold {
		c.openedUntil = time.Now().Add(c.cfg.BreakerCooldown)
		c.failures = 0
		c.log.WithFields(logrus.Fields{
			"cooldown": c.cfg.BreakerCooldown.String(),
			"error":    err.Error(),
		}).Warn("Wallet circuit breaker opened")
	}
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
}

func rejection(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
}

// retryPolicy retries network errors, 429 and 5xx responses
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// leveledLogger adapts logrus to retryablehttp.LeveledLogger
type leveledLogger struct {
	entry *logrus.Entry
}

func (l leveledLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Info(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
