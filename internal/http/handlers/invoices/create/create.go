// Package create реализует HTTP-обработчик выставления счёта на тарифный план.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/invoices"
	"github.com/magabrotheeeer/xmr-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/xmr-billing/internal/http/response"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/services/invoice"
)

// Request тело запроса на создание счёта.
type Request struct {
	Plan string `json:"plan" validate:"required,uuid"`
}

// Service описывает выставление счёта.
type Service interface {
	Create(ctx context.Context, userID int64, planUUID uuid.UUID) (*invoice.Receipt, error)
}

// Handler обрабатывает POST /invoices.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт обработчик создания счёта.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invoices.create"
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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var validateErr validator.ValidationErrors
		errors.As(err, &validateErr)
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(validateErr))
		return
	}
	planUUID, err := uuid.Parse(req.Plan)
	if err != nil {
		log.Error("invalid plan uuid", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("field Plan must be a uuid"))
		return
	}

	receipt, err := h.service.Create(r.Context(), userID, planUUID)
	switch {
	case err == nil:
	case errors.Is(err, invoice.ErrPlanNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("plan not found"))
		return
	case errors.Is(err, invoice.ErrCouponExpired):
		log.Info("coupon expired", slog.String("plan", req.Plan))
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("coupon expired, please select another plan"))
		return
	case errors.Is(err, invoice.ErrPricingUnavailable):
		log.Warn("pricing unavailable", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("pricing unavailable, try again later"))
		return
	default:
		log.Error("failed to create invoice", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create invoice"))
		return
	}

	log.Info("invoice created", sl.PaymentID(receipt.Invoice.PaymentID), slog.Int64("user_id", userID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"invoice": invoices.NewView(receipt.Invoice, receipt.Address),
		"plan":    receipt.Plan.String(),
	}))
}
