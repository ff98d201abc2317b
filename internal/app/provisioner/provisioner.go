// Package provisioner собирает воркер, который завершает активацию
// пользователей по задачам из очереди провижининга.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/xmr-billing/internal/config"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/metrics"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/services/provisioning"
	"github.com/magabrotheeeer/xmr-billing/internal/storage/repository"
)

// App воркер провижининга.
type App struct {
	db      *repository.Storage
	conn    *amqp.Connection
	ch      *amqp.Channel
	service *provisioning.Service
	metrics *http.Server
	logger  *slog.Logger
}

// New подключается к базе и RabbitMQ и объявляет очередь провижининга.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.provisioner.New"
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.ProvisioningExchange, rabbitmq.GetProvisioningQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.DB.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &App{
		db:      db,
		conn:    conn,
		ch:      ch,
		service: provisioning.New(db, m, logger),
		metrics: &http.Server{
			Addr:        cfg.AddressHTTP,
			Handler:     router,
			ReadTimeout: cfg.TimeoutHTTP,
			IdleTimeout: cfg.IdleTimeout,
		},
		logger: logger,
	}, nil
}

// Run обрабатывает задачи до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.ProvisioningQueue, a.logger, a.service.HandleMessage)
	if err != nil {
		a.logger.Error("failed to start provisioning consumer", sl.Err(err))
		return err
	}

	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.metrics.Addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", sl.Err(err))
		}
	}()

	<-ctx.Done()
	a.logger.Info("provisioner shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metrics.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to stop metrics server", sl.Err(err))
	}

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	return nil
}
