package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/storage"
)

func TestStore_InTxRollback(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := s.PutUser(models.User{Username: "alice", BalanceHalfdays: 4})
	couponID := s.PutCoupon(models.Coupon{Code: "ONE", TotalCount: 1})

	errBoom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		ok, err := tx.ConsumeCoupon(ctx, couponID)
		require.NoError(t, err)
		require.True(t, ok)

		u, err := tx.GetUserForUpdate(ctx, userID)
		require.NoError(t, err)
		u.BalanceHalfdays = 100
		require.NoError(t, tx.UpdateUserAccount(ctx, u))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	c, err := s.GetCoupon(ctx, couponID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.UsedCount)

	u, err := s.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, u.BalanceHalfdays)
}

func TestStore_MarkInvoicePaidOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := s.PutUser(models.User{Username: "bob"})
	plan := s.PutPlan(models.Plan{CouponID: 1, NDays: 5, PriceUSD: decimal.RequireFromString("5")})

	inv := &models.Invoice{PaymentID: models.PaymentID{1}, UserID: userID, PlanID: plan.ID}
	require.NoError(t, s.CreateInvoice(ctx, inv))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
				ok, err := tx.MarkInvoicePaid(ctx, inv.ID)
				if err != nil {
					return err
				}
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	got, err := s.GetInvoiceByPaymentID(ctx, inv.PaymentID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid())
}

func TestStore_ConsumeCouponCapacity(t *testing.T) {
	tests := []struct {
		name   string
		coupon models.Coupon
		calls  int
		want   int
	}{
		{name: "limited", coupon: models.Coupon{Code: "TRIO", TotalCount: 3}, calls: 5, want: 3},
		{name: "already exhausted", coupon: models.Coupon{Code: "DONE", TotalCount: 2, UsedCount: 2}, calls: 2, want: 2},
		{name: "unlimited", coupon: models.Coupon{Code: "FREE", IsUnlimited: true}, calls: 4, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := New()
			id := s.PutCoupon(tt.coupon)

			for i := 0; i < tt.calls; i++ {
				require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
					_, err := tx.ConsumeCoupon(ctx, id)
					return err
				}))
			}

			c, err := s.GetCoupon(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.UsedCount)
		})
	}
}

func TestStore_CreateInvoiceConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &models.Invoice{PaymentID: models.PaymentID{7}, UserID: 1, PlanID: 1}
	require.NoError(t, s.CreateInvoice(ctx, first))
	assert.NotZero(t, first.ID)
	assert.False(t, first.Created.IsZero())

	second := &models.Invoice{PaymentID: models.PaymentID{7}, UserID: 2, PlanID: 1}
	assert.ErrorIs(t, s.CreateInvoice(ctx, second), storage.ErrPaymentIDConflict)
	assert.Len(t, s.Invoices(), 1)
}

func TestStore_ListPlansByCoupon(t *testing.T) {
	ctx := context.Background()
	s := New()
	other := s.PutCoupon(models.Coupon{Code: "X", TotalCount: 1})

	s.PutPlan(models.Plan{CouponID: 1, NDays: 30, PriceUSD: decimal.RequireFromString("9.99")})
	s.PutPlan(models.Plan{CouponID: 1, NDays: 7, PriceUSD: decimal.RequireFromString("2.50")})
	s.PutPlan(models.Plan{CouponID: other, NDays: 7, PriceUSD: decimal.Zero})

	plans, err := s.ListPlansByCoupon(ctx, 1)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, 7, plans[0].NDays)
	assert.Equal(t, 30, plans[1].NDays)

	_, err = s.GetCouponByCode(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
