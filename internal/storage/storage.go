// Package storage описывает общий контракт хранилища биллинга: транзакцию расчёта
// счёта и ошибки, которые реализации обязаны возвращать. Реализации находятся
// в подпакетах repository (PostgreSQL) и memory.
package storage

import (
	"context"
	"errors"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

var (
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrPaymentIDConflict счёт с таким платёжным идентификатором уже существует.
	ErrPaymentIDConflict = errors.New("payment id already exists")
)

// Tx операции, доступные внутри атомарной транзакции расчёта.
// Изменения видны снаружи только после успешного завершения TxFunc.
type Tx interface {
	// CreateInvoice сохраняет неоплаченный счёт в рамках транзакции.
	// При совпадении платёжного идентификатора возвращает ErrPaymentIDConflict.
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	// MarkInvoicePaid атомарно переводит счёт из неоплаченного в оплаченный.
	// Возвращает false, если счёт уже оплачен.
	MarkInvoicePaid(ctx context.Context, invoiceID int64) (bool, error)
	// GetInvoice возвращает счёт по ID.
	GetInvoice(ctx context.Context, invoiceID int64) (*models.Invoice, error)
	// GetPlan возвращает план по ID.
	GetPlan(ctx context.Context, planID int64) (*models.Plan, error)
	// ConsumeCoupon увеличивает счётчик использований, если у купона осталась ёмкость.
	// Возвращает false, если ёмкость исчерпана.
	ConsumeCoupon(ctx context.Context, couponID int64) (bool, error)
	// GetUserForUpdate читает пользователя, блокируя запись до конца транзакции.
	GetUserForUpdate(ctx context.Context, userID int64) (*models.User, error)
	// UpdateUserAccount сохраняет баланс и статус пользователя.
	UpdateUserAccount(ctx context.Context, user *models.User) error
}

// TxFunc тело транзакции. Ненулевая ошибка откатывает все изменения.
type TxFunc func(ctx context.Context, tx Tx) error
