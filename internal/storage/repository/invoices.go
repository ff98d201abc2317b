package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/storage"
)

const invoiceColumns = `id, payment_id, user_id, plan_id, price_xmr, created, is_paid`

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	inv := &models.Invoice{}
	var paymentID []byte
	var isPaid bool
	if err := row.Scan(&inv.ID, &paymentID, &inv.UserID, &inv.PlanID, &inv.PriceXMR, &inv.Created, &isPaid); err != nil {
		return nil, err
	}
	if len(paymentID) != models.PaymentIDSize {
		return nil, fmt.Errorf("unexpected payment id length %d", len(paymentID))
	}
	copy(inv.PaymentID[:], paymentID)
	inv.State = models.InvoiceState(isPaid)
	return inv, nil
}

// CreateInvoice сохраняет неоплаченный счёт и заполняет его ID и время создания.
// При совпадении платёжного идентификатора возвращает storage.ErrPaymentIDConflict.
func (s *Storage) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	const op = "storage.CreateInvoice"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	return insertInvoice(ctx, s.DB, op, inv)
}

func insertInvoice(ctx context.Context, q querier, op string, inv *models.Invoice) error {
	query := `INSERT INTO invoices (payment_id, user_id, plan_id, price_xmr, is_paid)
			  VALUES ($1, $2, $3, $4, FALSE)
			  RETURNING id, created`
	err := q.QueryRowContext(ctx, query,
		inv.PaymentID[:], inv.UserID, inv.PlanID, inv.PriceXMR.Round(models.PriceXMRPlaces)).
		Scan(&inv.ID, &inv.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrPaymentIDConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	inv.State = models.InvoiceUnpaid
	return nil
}

// GetInvoiceByPaymentID возвращает счёт по платёжному идентификатору.
func (s *Storage) GetInvoiceByPaymentID(ctx context.Context, paymentID models.PaymentID) (*models.Invoice, error) {
	const op = "storage.GetInvoiceByPaymentID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE payment_id = $1`
	inv, err := scanInvoice(s.DB.QueryRowContext(ctx, query, paymentID[:]))
	if err != nil {
		return nil, notFound(op, err)
	}
	return inv, nil
}
