package pricefeed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
)

// Oracle источник курса.
type Oracle interface {
	CurrentRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// Cache описывает кеш, в котором хранится последний полученный курс.
type Cache interface {
	// Get читает значение по ключу. Возвращает false, если ключа нет.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// CachedOracle кеширует курс на ttl. Ошибки кеша не мешают запросу к источнику.
type CachedOracle struct {
	next  Oracle
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedOracle оборачивает источник курса кешем.
func NewCachedOracle(next Oracle, cache Cache, ttl time.Duration, log *slog.Logger) *CachedOracle {
	return &CachedOracle{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

func rateKey(base, quote string) string {
	return fmt.Sprintf("rate:%s:%s", base, quote)
}

// CurrentRate возвращает курс из кеша или из источника.
func (o *CachedOracle) CurrentRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	key := rateKey(base, quote)

	var cached decimal.Decimal
	found, err := o.cache.Get(ctx, key, &cached)
	if err != nil {
		o.log.Warn("failed to read cached rate", slog.String("key", key), sl.Err(err))
	}
	if found && cached.IsPositive() {
		return cached, nil
	}

	rate, err := o.next.CurrentRate(ctx, base, quote)
	if err != nil {
		return decimal.Zero, err
	}

	if err := o.cache.Set(ctx, key, rate, o.ttl); err != nil {
		o.log.Warn("failed to cache rate", slog.String("key", key), sl.Err(err))
	}
	return rate, nil
}
