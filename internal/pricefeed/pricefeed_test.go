package pricefeed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/xmr-billing/internal/config"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.PriceFeed{URL: srv.URL + "/simple/price", TimeoutFeed: time.Second}, newNoopLogger())
}

func TestClient_CurrentRate(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantRate string
		wantErr  bool
	}{
		{name: "integer rate", status: http.StatusOK, body: `{"monero":{"usd":162}}`, wantRate: "162"},
		{name: "fractional rate", status: http.StatusOK, body: `{"monero":{"usd":162.35}}`, wantRate: "162.35"},
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantErr: true},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"status":{"error_code":429}}`, wantErr: true},
		{name: "missing coin", status: http.StatusOK, body: `{"bitcoin":{"usd":60000}}`, wantErr: true},
		{name: "missing currency", status: http.StatusOK, body: `{"monero":{"eur":150}}`, wantErr: true},
		{name: "zero rate", status: http.StatusOK, body: `{"monero":{"usd":0}}`, wantErr: true},
		{name: "garbage", status: http.StatusOK, body: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/simple/price", r.URL.Path)
				assert.Equal(t, "monero", r.URL.Query().Get("ids"))
				assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			rate, err := c.CurrentRate(context.Background(), "monero", "usd")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrRateUnavailable)
				assert.True(t, rate.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.wantRate).Equal(rate), "got %s", rate)
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := NewClient(config.PriceFeed{URL: addr, TimeoutFeed: time.Second}, newNoopLogger())
	_, err := c.CurrentRate(context.Background(), "monero", "usd")
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.PriceFeed{URL: srv.URL, TimeoutFeed: 50 * time.Millisecond}, newNoopLogger())
	_, err := c.CurrentRate(context.Background(), "monero", "usd")
	assert.ErrorIs(t, err, ErrRateUnavailable)
}
