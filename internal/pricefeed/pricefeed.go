// Package pricefeed получает текущий курс XMR из внешнего источника (coingecko).
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/xmr-billing/internal/config"
)

// ErrRateUnavailable курс получить не удалось: сетевая ошибка, ответ не 2xx
// или в ответе нет нужной пары.
var ErrRateUnavailable = errors.New("rate unavailable")

// maxBodySize ограничивает размер читаемого ответа.
const maxBodySize = 1 << 20

// Client запрашивает курс по HTTP в формате coingecko simple/price:
// GET <url>?ids=<base>&vs_currencies=<quote> -> {"<base>": {"<quote>": <rate>}}.
type Client struct {
	httpClient *http.Client
	url        string
	log        *slog.Logger
}

// NewClient создаёт клиента внешнего источника курса.
func NewClient(cfg config.PriceFeed, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.TimeoutFeed},
		url:        cfg.URL,
		log:        log,
	}
}

// CurrentRate возвращает цену одной единицы base в валюте quote.
func (c *Client) CurrentRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	const op = "pricefeed.CurrentRate"
	log := c.log.With(slog.String("op", op), slog.String("pair", base+"/"+quote))

	u, err := url.Parse(c.url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w: %v", op, ErrRateUnavailable, err)
	}
	q := u.Query()
	q.Set("ids", base)
	q.Set("vs_currencies", quote)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w: %v", op, ErrRateUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w: %v", op, ErrRateUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w: %v", op, ErrRateUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decimal.Zero, fmt.Errorf("%s: %w: status %d", op, ErrRateUnavailable, resp.StatusCode)
	}

	rate, err := parseRate(body, base, quote)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w: %v", op, ErrRateUnavailable, err)
	}

	log.Debug("rate fetched", slog.String("rate", rate.String()), slog.Duration("took", time.Since(start)))
	return rate, nil
}

func parseRate(body []byte, base, quote string) (decimal.Decimal, error) {
	var payload map[string]map[string]json.Number
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode response: %w", err)
	}
	pair, ok := payload[base]
	if !ok {
		return decimal.Zero, fmt.Errorf("no %q in response", base)
	}
	raw, ok := pair[quote]
	if !ok {
		return decimal.Zero, fmt.Errorf("no %q rate for %q", quote, base)
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse rate %q: %w", raw, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive rate %s", rate)
	}
	return rate, nil
}
