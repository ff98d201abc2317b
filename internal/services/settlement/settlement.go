// Package settlement выполняет расчёт оплаченного счёта.
//
// Расчёт идемпотентен: первой записью транзакции счёт условно переводится
// в оплаченный, и все остальные эффекты выполняются только победителем этого
// обновления. Повторные подтверждения оплаты ничего не меняют.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/xmr-billing/internal/lib/metrics"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/services/balance"
	"github.com/magabrotheeeer/xmr-billing/internal/storage"
)

// Store выполняет функцию в транзакции.
type Store interface {
	InTx(ctx context.Context, fn storage.TxFunc) error
}

// CouponLedger списывает использование купона в транзакции расчёта.
type CouponLedger interface {
	Consume(ctx context.Context, tx storage.Tx, couponID int64) (bool, error)
}

// Publisher отправляет задачу провижининга.
type Publisher interface {
	PublishProvisioning(ctx context.Context, job models.ProvisioningJob) error
}

// Service рассчитывает счета.
type Service struct {
	store     Store
	coupons   CouponLedger
	publisher Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// New создаёт сервис расчёта.
func New(store Store, coupons CouponLedger, publisher Publisher, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		coupons:   coupons,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
}

// Settle отмечает счёт оплаченным, списывает купон, начисляет дни и переводит
// пользователя в ACTIVATING. Возвращает true, если эффекты применены этим вызовом,
// и false, если счёт уже был оплачен. Задача провижининга публикуется после
// фиксации транзакции; ошибка публикации только логируется.
func (s *Service) Settle(ctx context.Context, invoiceID int64) (bool, error) {
	const op = "settlement.Settle"
	log := s.log.With(slog.String("op", op), slog.Int64("invoice_id", invoiceID))

	var job *models.ProvisioningJob
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		job, err = s.apply(ctx, tx, invoiceID, log)
		return err
	})
	if err != nil {
		log.Error("settlement rolled back", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if job == nil {
		s.metrics.Settlements.WithLabelValues("duplicate").Inc()
		log.Info("invoice already settled")
		return false, nil
	}
	s.dispatch(ctx, *job, log)
	return true, nil
}

// CreateSettled сохраняет новый счёт и рассчитывает его в одной транзакции:
// при любой ошибке не остаётся ни счёта, ни его эффектов. Используется для
// бесплатных планов. Конфликт платёжного идентификатора возвращается как
// storage.ErrPaymentIDConflict.
func (s *Service) CreateSettled(ctx context.Context, inv *models.Invoice) error {
	const op = "settlement.CreateSettled"
	log := s.log.With(slog.String("op", op), sl.PaymentID(inv.PaymentID))

	var job *models.ProvisioningJob
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		var err error
		job, err = s.apply(ctx, tx, inv.ID, log)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("invoice %d paid before creation committed", inv.ID)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, storage.ErrPaymentIDConflict) {
			log.Error("settlement rolled back", sl.Err(err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	inv.State = models.InvoicePaid
	s.dispatch(ctx, *job, log)
	return nil
}

// apply выполняет эффекты оплаты внутри транзакции. Возвращает nil без ошибки,
// если счёт уже был оплачен.
func (s *Service) apply(ctx context.Context, tx storage.Tx, invoiceID int64, log *slog.Logger) (*models.ProvisioningJob, error) {
	won, err := tx.MarkInvoicePaid(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, nil
	}

	inv, err := tx.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	plan, err := tx.GetPlan(ctx, inv.PlanID)
	if err != nil {
		return nil, err
	}

	consumed, err := s.coupons.Consume(ctx, tx, plan.CouponID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		s.metrics.CouponOvershoots.Inc()
		log.Warn("coupon exhausted by a concurrent settlement", slog.Int64("coupon_id", plan.CouponID))
	}

	user, err := tx.GetUserForUpdate(ctx, inv.UserID)
	if err != nil {
		return nil, err
	}
	if err := balance.Credit(user, plan.NDays); err != nil {
		return nil, err
	}
	status, err := user.Status.BeginActivation()
	if err != nil {
		return nil, err
	}
	user.Status = status
	if err := tx.UpdateUserAccount(ctx, user); err != nil {
		return nil, err
	}

	return &models.ProvisioningJob{
		UserID:    user.ID,
		InvoiceID: inv.ID,
		PaymentID: inv.PaymentID.String(),
	}, nil
}

// dispatch учитывает применённый расчёт и публикует задачу провижининга.
func (s *Service) dispatch(ctx context.Context, job models.ProvisioningJob, log *slog.Logger) {
	s.metrics.Settlements.WithLabelValues("applied").Inc()
	log.Info("invoice settled", slog.Int64("user_id", job.UserID), slog.String("payment_id", job.PaymentID))

	if err := s.publisher.PublishProvisioning(ctx, job); err != nil {
		s.metrics.PublishFailures.Inc()
		log.Error("failed to publish provisioning job", slog.Int64("user_id", job.UserID), sl.Err(err))
	}
}
