package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/paddock/internal/models"
)

func testConfig(url string) Config {
	return Config{
		URL:              url,
		APIKey:           "secret",
		Timeout:          time.Second,
		MaxRetries:       2,
		RetryWaitMin:     time.Millisecond,
		RetryWaitMax:     5 * time.Millisecond,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Minute,
	}
}

func TestCreditSendsIdempotentRequest(t *testing.T) {
	var got creditRequest
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/credits", r.URL.Path)
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL+"/"), nil)
	defer client.Close()

	err := client.Credit(context.Background(), "alice", decimal.RequireFromString("255.5"), "wager-1")
	require.NoError(t, err)

	assert.Equal(t, "alice", got.Account)
	assert.True(t, decimal.RequireFromString("255.5").Equal(got.Amount))
	assert.Equal(t, "wager-1", got.Reference)
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Equal(t, "wager-1", headers.Get("Idempotency-Key"))
}

func TestCreditDuplicateIsAcknowledged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	assert.NoError(t, client.Credit(context.Background(), "alice", decimal.NewFromInt(10), "wager-1"))
}

func TestCreditRejectedIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown account", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	err := client.Credit(context.Background(), "ghost", decimal.NewFromInt(10), "wager-2")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "unknown account")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreditRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	require.NoError(t, client.Credit(context.Background(), "alice", decimal.NewFromInt(10), "wager-3"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxRetries = 0
	client := NewClient(cfg, nil)
	ctx := context.Background()

	assert.Error(t, client.Credit(ctx, "alice", decimal.NewFromInt(1), "a"))
	assert.Error(t, client.Credit(ctx, "alice", decimal.NewFromInt(1), "b"))
	before := atomic.LoadInt32(&calls)

	err := client.Credit(ctx, "alice", decimal.NewFromInt(1), "c")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/alice/balance", r.URL.Path)
		_ = json.NewEncoder(w).Encode(balanceResponse{Account: "alice", Balance: decimal.NewFromInt(1200)})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	balance, err := client.Balance(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1200).Equal(balance))
}

func TestDebit(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   bool
		wantShort bool
	}{
		{name: "accepted", status: http.StatusCreated},
		{name: "duplicate is acknowledged", status: http.StatusConflict},
		{name: "insufficient balance", status: http.StatusPaymentRequired, wantErr: true, wantShort: true},
		{name: "rejected", status: http.StatusForbidden, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got creditRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/debits", r.URL.Path)
				assert.Equal(t, "stake-1", r.Header.Get("Idempotency-Key"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(testConfig(server.URL), nil)
			err := client.Debit(context.Background(), "alice", decimal.NewFromInt(50), "stake-1")

			assert.Equal(t, "alice", got.Account)
			assert.True(t, decimal.NewFromInt(50).Equal(got.Amount))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantShort, models.IsValidation(err))
			if !tt.wantShort {
				assert.ErrorIs(t, err, ErrRejected)
			}
		})
	}
}
