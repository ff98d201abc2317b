package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/storage"
)

func TestStorage_Users(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.CreateUser(ctx, "abcdefgh")
	require.NoError(t, err)

	u, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", u.Username)
	assert.Equal(t, 0, u.BalanceHalfdays)
	assert.Equal(t, models.StatusInactive, u.Status)

	_, err = s.GetUser(ctx, id+100)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ok, err := s.CompareAndSetUserStatus(ctx, id, models.StatusActivating, models.StatusActive)
	require.NoError(t, err)
	assert.False(t, ok, "status is INACTIVE, swap must not happen")
}

func TestStorage_CouponsAndPlans(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	couponID, err := s.CreateCoupon(ctx, "SPRING", 10, false)
	require.NoError(t, err)

	c, err := s.GetCouponByCode(ctx, "SPRING")
	require.NoError(t, err)
	assert.Equal(t, couponID, c.ID)
	assert.Equal(t, 10, c.TotalCount)
	assert.Equal(t, 0, c.UsedCount)

	_, err = s.GetCouponByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	def, err := s.GetCoupon(ctx, 1)
	require.NoError(t, err)
	assert.True(t, def.IsUnlimited)

	_, cheapUUID, err := s.CreatePlan(ctx, couponID, 30, decimal.RequireFromString("4.5"))
	require.NoError(t, err)
	_, _, err = s.CreatePlan(ctx, couponID, 90, decimal.RequireFromString("12.00"))
	require.NoError(t, err)

	plans, err := s.ListPlansByCoupon(ctx, couponID)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, cheapUUID, plans[0].UUID)
	assert.Equal(t, "4.50", plans[0].PriceUSD.StringFixed(2))

	p, err := s.GetPlanByUUID(ctx, cheapUUID)
	require.NoError(t, err)
	assert.Equal(t, 30, p.NDays)

	_, err = s.GetPlanByUUID(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_CreateInvoice(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	userID := f.CreateUser(t, "user0001", 0, models.StatusInactive)
	plan := f.CreatePlan(t, 1, 30, "10.00")
	paymentID := models.PaymentID{1, 2, 3, 4, 5, 6, 7, 8}

	inv := f.CreateInvoice(t, paymentID, userID, plan.ID, "0.061728395062")
	assert.NotZero(t, inv.ID)
	assert.False(t, inv.Created.IsZero())

	got, err := s.GetInvoiceByPaymentID(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
	assert.Equal(t, "0.061728395062", got.PriceXMR.StringFixed(models.PriceXMRPlaces))
	assert.False(t, got.IsPaid())

	dup := &models.Invoice{PaymentID: paymentID, UserID: userID, PlanID: plan.ID, PriceXMR: decimal.Zero}
	err = s.CreateInvoice(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrPaymentIDConflict)

	_, err = s.GetInvoiceByPaymentID(ctx, models.PaymentID{9})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_InTx_MarkInvoicePaidOnce(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	userID := f.CreateUser(t, "user0002", 0, models.StatusInactive)
	plan := f.CreatePlan(t, 1, 30, "10.00")
	inv := f.CreateInvoice(t, models.PaymentID{7}, userID, plan.ID, "0.1")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
				ok, err := tx.MarkInvoicePaid(ctx, inv.ID)
				if ok {
					wins.Add(1)
				}
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestStorage_InTx_Rollback(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	userID := f.CreateUser(t, "user0003", 4, models.StatusInactive)
	plan := f.CreatePlan(t, 1, 30, "10.00")
	inv := f.CreateInvoice(t, models.PaymentID{8}, userID, plan.ID, "0.1")

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		ok, err := tx.MarkInvoicePaid(ctx, inv.ID)
		require.NoError(t, err)
		require.True(t, ok)

		u, err := tx.GetUserForUpdate(ctx, userID)
		require.NoError(t, err)
		u.BalanceHalfdays = 100
		u.Status = models.StatusActivating
		require.NoError(t, tx.UpdateUserAccount(ctx, u))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetInvoiceByPaymentID(ctx, inv.PaymentID)
	require.NoError(t, err)
	assert.False(t, got.IsPaid(), "rolled back invoice must stay unpaid")

	u, err := s.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, u.BalanceHalfdays)
	assert.Equal(t, models.StatusInactive, u.Status)
}

func TestStorage_InTx_CreateInvoice(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	userID := f.CreateUser(t, "user0005", 0, models.StatusInactive)
	plan := f.CreatePlan(t, 1, 7, "0.00")
	existing := f.CreateInvoice(t, models.PaymentID{10}, userID, plan.ID, "0")

	err := s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.CreateInvoice(ctx, &models.Invoice{PaymentID: existing.PaymentID, UserID: userID, PlanID: plan.ID})
	})
	assert.ErrorIs(t, err, storage.ErrPaymentIDConflict)

	boom := errors.New("boom")
	inv := &models.Invoice{PaymentID: models.PaymentID{11}, UserID: userID, PlanID: plan.ID}
	err = s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		require.NoError(t, tx.CreateInvoice(ctx, inv))
		ok, err := tx.MarkInvoicePaid(ctx, inv.ID)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetInvoiceByPaymentID(ctx, inv.PaymentID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_InTx_PanicRollsBack(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	userID := f.CreateUser(t, "user0004", 0, models.StatusInactive)
	plan := f.CreatePlan(t, 1, 30, "10.00")
	inv := f.CreateInvoice(t, models.PaymentID{9}, userID, plan.ID, "0.1")

	// Единственное соединение в пуле: незакрытая транзакция заблокирует следующий запрос.
	s.DB.SetMaxOpenConns(1)

	assert.PanicsWithValue(t, "handler bug", func() {
		_ = s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			ok, err := tx.MarkInvoicePaid(ctx, inv.ID)
			require.NoError(t, err)
			require.True(t, ok)
			panic("handler bug")
		})
	})

	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	got, err := s.GetInvoiceByPaymentID(readCtx, inv.PaymentID)
	require.NoError(t, err, "connection must return to the pool after a panic")
	assert.False(t, got.IsPaid())
	assert.Equal(t, 0, s.DB.Stats().InUse)
}

func TestStorage_InTx_ConsumeCouponCapacity(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	f := NewTestDataFactory(s)

	couponID := f.CreateCoupon(t, "ONCE", 3, 0, false)

	var consumed atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
				ok, err := tx.ConsumeCoupon(ctx, couponID)
				if ok {
					consumed.Add(1)
				}
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), consumed.Load())
	c, err := s.GetCoupon(ctx, couponID)
	require.NoError(t, err)
	assert.Equal(t, 3, c.UsedCount)

	err = s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		ok, err := tx.ConsumeCoupon(ctx, 1)
		assert.True(t, ok, "default coupon is unlimited")
		return err
	})
	require.NoError(t, err)
}
