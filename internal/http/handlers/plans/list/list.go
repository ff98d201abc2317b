// Package list реализует HTTP-обработчик списка тарифных планов.
//
// Код купона берётся из параметра coupon или из одноимённой cookie. Непригодный
// или неизвестный код не считается ошибкой: возвращаются планы купона по умолчанию.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/xmr-billing/internal/http/response"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/services/coupon"
)

// CouponCookie имя cookie с кодом купона.
const CouponCookie = "coupon"

// Service подбирает планы по коду купона.
type Service interface {
	ResolvePlans(ctx context.Context, code string) (*coupon.Offer, error)
}

// PlanView план в ответе.
type PlanView struct {
	UUID     string `json:"uuid"`
	PriceUSD string `json:"price_usd"`
	NDays    int    `json:"n_days"`
	Days     string `json:"days"`
	IsFree   bool   `json:"is_free"`
}

// OfferView набор планов в ответе.
type OfferView struct {
	Coupon   string     `json:"coupon"`
	Honoured bool       `json:"honoured"`
	Plans    []PlanView `json:"plans"`
}

// NewOfferView формирует представление набора планов.
func NewOfferView(offer *coupon.Offer) OfferView {
	v := OfferView{
		Honoured: offer.Honoured,
		Plans:    make([]PlanView, 0, len(offer.Plans)),
	}
	if offer.Honoured {
		v.Coupon = offer.Coupon.Code
	}
	for _, p := range offer.Plans {
		v.Plans = append(v.Plans, newPlanView(p))
	}
	return v
}

func newPlanView(p *models.Plan) PlanView {
	return PlanView{
		UUID:     p.UUID.String(),
		PriceUSD: p.PriceUSD.StringFixed(2),
		NDays:    p.NDays,
		Days:     p.Days(),
		IsFree:   p.IsFree(),
	}
}

// CouponCode достаёт код купона из запроса.
func CouponCode(r *http.Request) string {
	if code := strings.TrimSpace(r.URL.Query().Get("coupon")); code != "" {
		return code
	}
	if c, err := r.Cookie(CouponCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// Handler обрабатывает GET /plans.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт обработчик списка планов.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	offer, err := h.service.ResolvePlans(r.Context(), CouponCode(r))
	if err != nil {
		log.Error("failed to resolve plans", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list plans"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(NewOfferView(offer)))
}
