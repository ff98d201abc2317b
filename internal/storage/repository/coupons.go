package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

const couponColumns = `id, code, total_count, used_count, is_unlimited`

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	c := &models.Coupon{}
	if err := row.Scan(&c.ID, &c.Code, &c.TotalCount, &c.UsedCount, &c.IsUnlimited); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCoupon сохраняет купон. Счётчик использований всегда начинается с нуля.
func (s *Storage) CreateCoupon(ctx context.Context, code string, totalCount int, isUnlimited bool) (int64, error) {
	const op = "storage.CreateCoupon"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO coupons (code, total_count, used_count, is_unlimited)
			  VALUES ($1, $2, 0, $3)
			  RETURNING id`
	var newID int64
	if err := s.DB.QueryRowContext(ctx, query, code, totalCount, isUnlimited).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetCoupon возвращает купон по ID.
func (s *Storage) GetCoupon(ctx context.Context, couponID int64) (*models.Coupon, error) {
	const op = "storage.GetCoupon"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`
	c, err := scanCoupon(s.DB.QueryRowContext(ctx, query, couponID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return c, nil
}

// GetCouponByCode возвращает купон по тексту.
func (s *Storage) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	const op = "storage.GetCouponByCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	c, err := scanCoupon(s.DB.QueryRowContext(ctx, query, code))
	if err != nil {
		return nil, notFound(op, err)
	}
	return c, nil
}
