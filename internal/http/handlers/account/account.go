// Package account реализует HTTP-обработчик просмотра аккаунта: баланс в днях,
// статус и доступные пользователю планы.
package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/plans/list"
	"github.com/magabrotheeeer/xmr-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/xmr-billing/internal/http/response"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/services/balance"
	"github.com/magabrotheeeer/xmr-billing/internal/services/coupon"
)

// Users читает пользователя.
type Users interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

// Plans подбирает планы по коду купона.
type Plans interface {
	ResolvePlans(ctx context.Context, code string) (*coupon.Offer, error)
}

// Handler обрабатывает GET /account.
type Handler struct {
	log   *slog.Logger
	users Users
	plans Plans
}

// New создаёт обработчик аккаунта.
func New(log *slog.Logger, users Users, plans Plans) *Handler {
	return &Handler{
		log:   log,
		users: users,
		plans: plans,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account"
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

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		log.Error("failed to read user", slog.Int64("user_id", userID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read account"))
		return
	}

	offer, err := h.plans.ResolvePlans(r.Context(), list.CouponCode(r))
	if err != nil {
		log.Error("failed to resolve plans", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read account"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"username":     user.Username,
		"balance_days": balance.DisplayDays(user.BalanceHalfdays),
		"status":       user.Status.String(),
		"offer":        list.NewOfferView(offer),
	}))
}
