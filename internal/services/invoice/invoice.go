// Package invoice выставляет счета на оплату тарифных планов.
//
// Создание счёта является операцией "всё или ничего": купон плана проверяется до
// обращения к курсу, цена в XMR фиксируется до записи, а счёт бесплатного плана
// сохраняется и рассчитывается в одной транзакции.
package invoice

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/xmr-billing/internal/lib/metrics"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/storage"
)

var (
	// ErrPlanNotFound план с таким UUID не существует.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrCouponExpired купон, открывающий план, больше непригоден.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrPricingUnavailable не удалось получить курс, счёт не создан.
	ErrPricingUnavailable = errors.New("pricing unavailable")
	// ErrIdentifierExhausted все попытки подобрать уникальный платёжный ID закончились конфликтом.
	ErrIdentifierExhausted = errors.New("payment identifier attempts exhausted")
)

// DefaultAttempts число попыток подобрать платёжный идентификатор по умолчанию.
const DefaultAttempts = 5

// Repository определяет методы хранилища, нужные для выставления счёта.
type Repository interface {
	// GetPlanByUUID возвращает план по публичному UUID.
	GetPlanByUUID(ctx context.Context, planUUID uuid.UUID) (*models.Plan, error)
	// CreateInvoice сохраняет неоплаченный счёт и заполняет его ID и время создания.
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
}

// CouponLedger проверяет пригодность купона плана.
type CouponLedger interface {
	PlanAvailable(ctx context.Context, plan *models.Plan) (bool, error)
}

// Oracle возвращает текущий курс.
type Oracle interface {
	CurrentRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// Settler сохраняет и сразу рассчитывает счёт бесплатного плана в одной транзакции.
type Settler interface {
	CreateSettled(ctx context.Context, inv *models.Invoice) error
}

// Deriver строит адрес для оплаты по платёжному идентификатору.
type Deriver interface {
	Derive(paymentID [models.PaymentIDSize]byte) string
}

// Options параметры фабрики счетов.
type Options struct {
	Base     string    // Идентификатор криптовалюты у источника курса, например "monero"
	Quote    string    // Валюта цены плана, например "usd"
	Attempts int       // Число попыток подобрать уникальный платёжный ID
	Rand     io.Reader // Источник случайных байт, по умолчанию crypto/rand
}

// Receipt созданный счёт вместе с адресом для оплаты.
type Receipt struct {
	Invoice *models.Invoice
	Plan    *models.Plan
	Address string
}

// Factory создаёт счета.
type Factory struct {
	repo    Repository
	coupons CouponLedger
	oracle  Oracle
	settler Settler
	deriver Deriver
	metrics *metrics.Metrics
	log     *slog.Logger
	opts    Options
}

// NewFactory создаёт фабрику счетов.
func NewFactory(
	repo Repository,
	coupons CouponLedger,
	oracle Oracle,
	settler Settler,
	deriver Deriver,
	m *metrics.Metrics,
	log *slog.Logger,
	opts Options,
) *Factory {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	return &Factory{
		repo:    repo,
		coupons: coupons,
		oracle:  oracle,
		settler: settler,
		deriver: deriver,
		metrics: m,
		log:     log,
		opts:    opts,
	}
}

// Create выставляет пользователю счёт на план planUUID.
func (f *Factory) Create(ctx context.Context, userID int64, planUUID uuid.UUID) (*Receipt, error) {
	const op = "invoice.Create"
	log := f.log.With(slog.String("op", op), slog.Int64("user_id", userID), slog.String("plan", planUUID.String()))

	plan, err := f.repo.GetPlanByUUID(ctx, planUUID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrPlanNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	usable, err := f.coupons.PlanAvailable(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !usable {
		log.Info("plan coupon is no longer usable", slog.Int64("coupon_id", plan.CouponID))
		return nil, fmt.Errorf("%s: %w", op, ErrCouponExpired)
	}

	price := decimal.Zero
	if !plan.IsFree() {
		rate, err := f.oracle.CurrentRate(ctx, f.opts.Base, f.opts.Quote)
		if err != nil {
			f.metrics.PriceFeedFailures.Inc()
			log.Warn("rate lookup failed", sl.Err(err))
			return nil, fmt.Errorf("%s: %w: %v", op, ErrPricingUnavailable, err)
		}
		price = plan.PriceUSD.DivRound(rate, models.PriceXMRPlaces)
	}

	save := f.repo.CreateInvoice
	if plan.IsFree() {
		save = f.settler.CreateSettled
	}
	inv, err := f.persist(ctx, userID, plan, price, save)
	if err != nil {
		if errors.Is(err, ErrIdentifierExhausted) {
			log.Error("could not allocate a unique payment id", slog.Int("attempts", f.opts.Attempts))
		} else if plan.IsFree() {
			log.Error("failed to settle free invoice", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(sl.PaymentID(inv.PaymentID))

	if plan.IsFree() {
		f.metrics.InvoicesCreated.WithLabelValues("free").Inc()
	} else {
		f.metrics.InvoicesCreated.WithLabelValues("priced").Inc()
	}

	log.Info("invoice created", slog.String("price_xmr", inv.PriceXMR.StringFixed(models.PriceXMRPlaces)))
	return &Receipt{
		Invoice: inv,
		Plan:    plan,
		Address: f.deriver.Derive(inv.PaymentID),
	}, nil
}

// persist подбирает случайный платёжный ID и сохраняет счёт через save,
// повторяя попытку при конфликте уникальности.
func (f *Factory) persist(
	ctx context.Context,
	userID int64,
	plan *models.Plan,
	price decimal.Decimal,
	save func(context.Context, *models.Invoice) error,
) (*models.Invoice, error) {
	for attempt := 1; attempt <= f.opts.Attempts; attempt++ {
		var id models.PaymentID
		if _, err := io.ReadFull(f.opts.Rand, id[:]); err != nil {
			return nil, fmt.Errorf("generate payment id: %w", err)
		}

		inv := &models.Invoice{
			PaymentID: id,
			UserID:    userID,
			PlanID:    plan.ID,
			PriceXMR:  price,
			State:     models.InvoiceUnpaid,
		}
		err := save(ctx, inv)
		if err == nil {
			return inv, nil
		}
		if !errors.Is(err, storage.ErrPaymentIDConflict) {
			return nil, err
		}
		f.log.Warn("payment id collision", slog.Int("attempt", attempt), sl.PaymentID(id))
	}
	return nil, ErrIdentifierExhausted
}
