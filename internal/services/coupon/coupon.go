// Package coupon реализует учёт купонов: проверку пригодности, атомарное
// списание использования и подбор тарифных планов по коду купона.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/storage"
)

// Repository определяет чтение купонов и планов из хранилища.
type Repository interface {
	// GetCoupon возвращает купон по ID.
	GetCoupon(ctx context.Context, couponID int64) (*models.Coupon, error)
	// GetCouponByCode возвращает купон по тексту кода.
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	// ListPlansByCoupon возвращает планы, открываемые купоном.
	ListPlansByCoupon(ctx context.Context, couponID int64) ([]*models.Plan, error)
}

// Offer набор планов, доступных по купону.
type Offer struct {
	Coupon   *models.Coupon
	Plans    []*models.Plan
	Honoured bool // Переданный код принят; false, если выдан набор купона по умолчанию
}

// Ledger учёт купонов.
type Ledger struct {
	repo            Repository
	defaultCouponID int64
	log             *slog.Logger
}

// NewLedger создаёт учёт купонов. defaultCouponID задаёт купон "без скидки",
// который используется, если код не передан или непригоден.
func NewLedger(repo Repository, defaultCouponID int64, log *slog.Logger) *Ledger {
	return &Ledger{
		repo:            repo,
		defaultCouponID: defaultCouponID,
		log:             log,
	}
}

// DefaultCouponID возвращает ID купона по умолчанию.
func (l *Ledger) DefaultCouponID() int64 {
	return l.defaultCouponID
}

// IsUsable сообщает, можно ли ещё воспользоваться купоном.
func IsUsable(c *models.Coupon) bool {
	if c == nil {
		return false
	}
	return c.IsUnlimited || c.UsedCount < c.TotalCount
}

// IsUsable проверка пригодности купона, единая для всех потребителей.
func (l *Ledger) IsUsable(c *models.Coupon) bool {
	return IsUsable(c)
}

// PlanAvailable сообщает, пригоден ли купон, к которому привязан план.
func (l *Ledger) PlanAvailable(ctx context.Context, plan *models.Plan) (bool, error) {
	const op = "coupon.PlanAvailable"

	c, err := l.repo.GetCoupon(ctx, plan.CouponID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return l.IsUsable(c), nil
}

// Consume списывает одно использование купона внутри транзакции расчёта.
// Возвращает false, если ёмкость уже исчерпана; счётчик при этом не меняется.
func (l *Ledger) Consume(ctx context.Context, tx storage.Tx, couponID int64) (bool, error) {
	const op = "coupon.Consume"

	ok, err := tx.ConsumeCoupon(ctx, couponID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		l.log.Warn("coupon capacity exhausted, usage not recorded", slog.Int64("coupon_id", couponID))
	}
	return ok, nil
}

// Lookup возвращает купон по коду и его пригодность.
// Неизвестный код не является ошибкой: возвращается nil и false.
func (l *Ledger) Lookup(ctx context.Context, code string) (*models.Coupon, bool, error) {
	const op = "coupon.Lookup"

	if code == "" {
		return nil, false, nil
	}
	c, err := l.repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return c, l.IsUsable(c), nil
}

// ResolvePlans подбирает планы по коду купона. Пустой, неизвестный или
// исчерпанный код молча заменяется купоном по умолчанию.
func (l *Ledger) ResolvePlans(ctx context.Context, code string) (*Offer, error) {
	const op = "coupon.ResolvePlans"

	c, usable, err := l.Lookup(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	honoured := usable
	if !usable {
		if code != "" {
			l.log.Debug("coupon not usable, falling back to default", slog.String("code", code))
		}
		c, err = l.repo.GetCoupon(ctx, l.defaultCouponID)
		if err != nil {
			l.log.Error("default coupon missing", slog.Int64("coupon_id", l.defaultCouponID), sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	plans, err := l.repo.ListPlansByCoupon(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Offer{Coupon: c, Plans: plans, Honoured: honoured}, nil
}
