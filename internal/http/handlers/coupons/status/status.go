// Package status реализует HTTP-обработчик проверки купона.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/xmr-billing/internal/http/handlers/plans/list"
	"github.com/magabrotheeeer/xmr-billing/internal/http/response"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

// maxCodeLength максимальная длина кода купона.
const maxCodeLength = 10

// Service ищет купон по коду.
type Service interface {
	Lookup(ctx context.Context, code string) (*models.Coupon, bool, error)
}

// Handler обрабатывает GET /coupons/{code}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт обработчик проверки купона.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP отвечает, пригоден ли купон. Пригодный код запоминается в cookie,
// непригодный или неизвестный код из cookie удаляется.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.coupons.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	code := chi.URLParam(r, "code")
	if code == "" || len(code) > maxCodeLength {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid coupon code"))
		return
	}

	_, usable, err := h.service.Lookup(r.Context(), code)
	if err != nil {
		log.Error("failed to look up coupon", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not check coupon"))
		return
	}

	cookie := &http.Cookie{Name: list.CouponCookie, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}
	if usable {
		cookie.Value = code
	} else {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"code":   code,
		"usable": usable,
	}))
}
