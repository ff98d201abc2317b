// Package provisioning завершает активацию пользователя после оплаты.
package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/xmr-billing/internal/lib/metrics"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/storage"
)

// Repository меняет статус пользователя.
type Repository interface {
	// CompareAndSetUserStatus меняет статус с from на to, если текущий статус равен from.
	CompareAndSetUserStatus(ctx context.Context, userID int64, from, to models.UserStatus) (bool, error)
}

// Service обрабатывает задачи провижининга.
type Service struct {
	repo    Repository
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New создаёт сервис провижининга.
func New(repo Repository, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		metrics: m,
		log:     log,
	}
}

// Handle переводит пользователя из ACTIVATING в ACTIVE. Задача для пользователя,
// который уже не в ACTIVATING или удалён, подтверждается без изменений.
// Ошибка означает, что задачу нужно повторить.
func (s *Service) Handle(ctx context.Context, job models.ProvisioningJob) error {
	const op = "provisioning.Handle"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", job.UserID), slog.String("payment_id", job.PaymentID))

	to, err := models.StatusActivating.CompleteActivation()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	swapped, err := s.repo.CompareAndSetUserStatus(ctx, job.UserID, models.StatusActivating, to)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.ProvisioningEvents.WithLabelValues("skipped").Inc()
			log.Warn("user not found, job dropped")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !swapped {
		s.metrics.ProvisioningEvents.WithLabelValues("skipped").Inc()
		log.Info("user is not activating, job ignored")
		return nil
	}

	s.metrics.ProvisioningEvents.WithLabelValues("completed").Inc()
	log.Info("user activated")
	return nil
}

// HandleMessage разбирает тело сообщения из очереди и передаёт задачу в Handle.
// Неразбираемое сообщение отбрасывается: повторная доставка его не исправит.
func (s *Service) HandleMessage(ctx context.Context, body []byte) error {
	var job models.ProvisioningJob
	if err := json.Unmarshal(body, &job); err != nil || job.UserID == 0 {
		s.metrics.ProvisioningEvents.WithLabelValues("malformed").Inc()
		s.log.Error("malformed provisioning job dropped", slog.Int("size", len(body)), sl.Err(err))
		return nil
	}
	return s.Handle(ctx, job)
}
