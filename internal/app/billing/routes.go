// Package billing собирает HTTP-приложение биллинга: хранилище, кеш курса,
// сервисы счетов и расчёта, публикацию задач провижининга и маршруты API.
package billing

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/account"
	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/coupons/status"
	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/health"
	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/invoices/create"
	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/invoices/read"
	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/payments/confirm"
	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/plans/list"
	"github.com/magabrotheeeer/xmr-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/xmr-billing/internal/services/coupon"
	"github.com/magabrotheeeer/xmr-billing/internal/services/invoice"
	"github.com/magabrotheeeer/xmr-billing/internal/services/settlement"
	"github.com/magabrotheeeer/xmr-billing/internal/storage/repository"
)

// Deps зависимости, из которых строятся обработчики.
type Deps struct {
	Storage       *repository.Storage
	Coupons       *coupon.Ledger
	Invoices      *invoice.Factory
	Settlement    *settlement.Service
	Deriver       read.Deriver
	Tokens        middlewarectx.TokenParser
	InvoiceLimit  *rate.Limiter
	WebhookSecret string
	Gatherer      prometheus.Gatherer
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(logger, d.Storage).ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/plans", list.New(logger, d.Coupons).ServeHTTP)
		r.Get("/coupons/{code}", status.New(logger, d.Coupons).ServeHTTP)

		// Подтверждение оплаты от наблюдателя кошелька, проверяется подписью
		r.Post("/payments/confirm", confirm.New(logger, d.Storage, d.Settlement, d.WebhookSecret).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))
			r.With(middlewarectx.RateLimitMiddleware(d.InvoiceLimit, logger)).
				Post("/invoices", create.New(logger, d.Invoices).ServeHTTP)
			r.Get("/invoices/{payment_id}", read.New(logger, d.Storage, d.Deriver).ServeHTTP)
			r.Get("/account", account.New(logger, d.Storage, d.Coupons).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
}

