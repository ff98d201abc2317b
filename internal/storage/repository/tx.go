package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

// tx реализует storage.Tx поверх *sql.Tx.
type tx struct {
	q querier
}

func (t *tx) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	return insertInvoice(ctx, t.q, "storage.tx.CreateInvoice", inv)
}

func (t *tx) MarkInvoicePaid(ctx context.Context, invoiceID int64) (bool, error) {
	const op = "storage.MarkInvoicePaid"
	// Условное обновление служит точкой сериализации: конкурентная транзакция ждёт
	// блокировку строки и после коммита первой уже не находит is_paid = FALSE.
	query := `UPDATE invoices SET is_paid = TRUE WHERE id = $1 AND is_paid = FALSE`
	result, err := t.q.ExecContext(ctx, query, invoiceID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

func (t *tx) GetInvoice(ctx context.Context, invoiceID int64) (*models.Invoice, error) {
	const op = "storage.GetInvoice"
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(t.q.QueryRowContext(ctx, query, invoiceID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return inv, nil
}

func (t *tx) GetPlan(ctx context.Context, planID int64) (*models.Plan, error) {
	const op = "storage.GetPlan"
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	p, err := scanPlan(t.q.QueryRowContext(ctx, query, planID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return p, nil
}

func (t *tx) ConsumeCoupon(ctx context.Context, couponID int64) (bool, error) {
	const op = "storage.ConsumeCoupon"
	query := `UPDATE coupons
			  SET used_count = used_count + 1
			  WHERE id = $1 AND (is_unlimited OR used_count < total_count)`
	result, err := t.q.ExecContext(ctx, query, couponID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

func (t *tx) GetUserForUpdate(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.GetUserForUpdate"
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	u, err := scanUser(t.q.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

func (t *tx) UpdateUserAccount(ctx context.Context, user *models.User) error {
	const op = "storage.UpdateUserAccount"
	query := `UPDATE users SET balance_halfdays = $1, status = $2 WHERE id = $3`
	result, err := t.q.ExecContext(ctx, query, user.BalanceHalfdays, int16(user.Status), user.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("%s: user %d not updated", op, user.ID)
	}
	return nil
}
