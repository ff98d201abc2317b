package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

const planColumns = `id, uuid, coupon_id, n_days, price_usd`

func scanPlan(row rowScanner) (*models.Plan, error) {
	p := &models.Plan{}
	if err := row.Scan(&p.ID, &p.UUID, &p.CouponID, &p.NDays, &p.PriceUSD); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePlan сохраняет новый план и возвращает его ID и UUID.
func (s *Storage) CreatePlan(ctx context.Context, couponID int64, nDays int, priceUSD decimal.Decimal) (int64, uuid.UUID, error) {
	const op = "storage.CreatePlan"
	select {
	case <-ctx.Done():
		return 0, uuid.Nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	planUUID := uuid.New()
	query := `INSERT INTO plans (uuid, coupon_id, n_days, price_usd)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var newID int64
	if err := s.DB.QueryRowContext(ctx, query, planUUID, couponID, nDays, priceUSD.Round(2)).Scan(&newID); err != nil {
		return 0, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	return newID, planUUID, nil
}

// GetPlanByUUID возвращает план по публичному UUID.
func (s *Storage) GetPlanByUUID(ctx context.Context, planUUID uuid.UUID) (*models.Plan, error) {
	const op = "storage.GetPlanByUUID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + planColumns + ` FROM plans WHERE uuid = $1`
	p, err := scanPlan(s.DB.QueryRowContext(ctx, query, planUUID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return p, nil
}

// ListPlansByCoupon возвращает планы, привязанные к купону, по возрастанию цены.
func (s *Storage) ListPlansByCoupon(ctx context.Context, couponID int64) ([]*models.Plan, error) {
	const op = "storage.ListPlansByCoupon"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + planColumns + `
			  FROM plans
			  WHERE coupon_id = $1
			  ORDER BY price_usd, n_days, id`
	rows, err := s.DB.QueryContext(ctx, query, couponID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
