// Package read реализует HTTP-обработчик просмотра счёта по платёжному идентификатору.
// Счёт виден только его владельцу; для остальных он не существует.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/invoices"
	"github.com/magabrotheeeer/xmr-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/xmr-billing/internal/http/response"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/storage"
)

// Service читает счёт.
type Service interface {
	GetInvoiceByPaymentID(ctx context.Context, paymentID models.PaymentID) (*models.Invoice, error)
}

// Deriver строит адрес для оплаты.
type Deriver interface {
	Derive(paymentID [models.PaymentIDSize]byte) string
}

// Handler обрабатывает GET /invoices/{payment_id}.
type Handler struct {
	log     *slog.Logger
	service Service
	deriver Deriver
}

// New создаёт обработчик просмотра счёта.
func New(log *slog.Logger, service Service, deriver Deriver) *Handler {
	return &Handler{
		log:     log,
		service: service,
		deriver: deriver,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invoices.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFromContext(r.Context())
	if !ok {
		log.Error("user id missing in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	paymentID, err := models.ParsePaymentID(chi.URLParam(r, "payment_id"))
	if err != nil {
		log.Error("failed to decode payment id from url", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid payment id"))
		return
	}

	inv, err := h.service.GetInvoiceByPaymentID(r.Context(), paymentID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error("failed to read invoice", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read invoice"))
		return
	}
	if err != nil || inv.UserID != userID {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("invoice not found"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"invoice": invoices.NewView(inv, h.deriver.Derive(inv.PaymentID)),
	}))
}
