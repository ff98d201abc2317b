package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/xmr-billing/internal/cache"
	"github.com/magabrotheeeer/xmr-billing/internal/config"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/metrics"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/xmr"
	"github.com/magabrotheeeer/xmr-billing/internal/migrations"
	"github.com/magabrotheeeer/xmr-billing/internal/pricefeed"
	"github.com/magabrotheeeer/xmr-billing/internal/services/coupon"
	"github.com/magabrotheeeer/xmr-billing/internal/services/invoice"
	"github.com/magabrotheeeer/xmr-billing/internal/services/settlement"
	"github.com/magabrotheeeer/xmr-billing/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-сервис биллинга.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает хранилище, кеш и очередь, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.billing.New"

	deriver, err := xmr.NewDeriver(cfg.BaseAddress)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	version, err := migrations.Run(db.DB, cfg.MigrationsPath)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("migrations applied", slog.Uint64("version", uint64(version)))

	app := &App{
		logger: logger,
		db:     db,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var oracle invoice.Oracle = pricefeed.NewClient(cfg.PriceFeed, logger)
	if cfg.CacheTTL > 0 && cfg.AddressRedis != "" {
		app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		oracle = pricefeed.NewCachedOracle(oracle, app.cache, cfg.CacheTTL, logger)
	}

	app.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.ProvisioningExchange, rabbitmq.GetProvisioningQueues())
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	coupons := coupon.NewLedger(db, cfg.DefaultCouponID, logger)
	settler := settlement.New(db, coupons, rabbitmq.NewPublisher(app.ch), m, logger)
	factory := invoice.NewFactory(db, coupons, oracle, settler, deriver, m, logger, invoice.Options{
		Base:     cfg.CoinID,
		Quote:    cfg.Currency,
		Attempts: cfg.PaymentIDAttempts,
	})

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Storage:       db,
		Coupons:       coupons,
		Invoices:      factory,
		Settlement:    settler,
		Deriver:       deriver,
		Tokens:        jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		InvoiceLimit:  rate.NewLimiter(rate.Limit(cfg.InvoiceRate), cfg.InvoiceBurst),
		WebhookSecret: cfg.WebhookSecret,
		Gatherer:      registry,
	})

	if cfg.WebhookSecret == "" {
		logger.Warn("webhook secret is empty, payment confirmations will be rejected")
	}

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает HTTP до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
