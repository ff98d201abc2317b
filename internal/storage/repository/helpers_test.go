package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/xmr-billing/internal/migrations"
	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя с заданным балансом и статусом
func (f *TestDataFactory) CreateUser(t *testing.T, username string, halfdays int, status models.UserStatus) int64 {
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO users (username, balance_halfdays, status)
		VALUES ($1, $2, $3) RETURNING id`, username, halfdays, int16(status)).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateCoupon создает тестовый купон с уже заданным числом использований
func (f *TestDataFactory) CreateCoupon(t *testing.T, code string, total, used int, unlimited bool) int64 {
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO coupons (code, total_count, used_count, is_unlimited)
		VALUES ($1, $2, $3, $4) RETURNING id`, code, total, used, unlimited).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreatePlan создает тестовый план
func (f *TestDataFactory) CreatePlan(t *testing.T, couponID int64, nDays int, price string) *models.Plan {
	id, planUUID, err := f.storage.CreatePlan(context.Background(), couponID, nDays, decimal.RequireFromString(price))
	require.NoError(t, err)
	return &models.Plan{ID: id, UUID: planUUID, CouponID: couponID, NDays: nDays, PriceUSD: decimal.RequireFromString(price)}
}

// CreateInvoice создает тестовый неоплаченный счёт
func (f *TestDataFactory) CreateInvoice(t *testing.T, paymentID models.PaymentID, userID, planID int64, price string) *models.Invoice {
	inv := &models.Invoice{
		PaymentID: paymentID,
		UserID:    userID,
		PlanID:    planID,
		PriceXMR:  decimal.RequireFromString(price),
	}
	require.NoError(t, f.storage.CreateInvoice(context.Background(), inv))
	return inv
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "Failed to create storage after retries")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	_, err = migrations.Run(storage.DB, migrationsPath)
	require.NoError(t, err, "Failed to apply migrations")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		_ = pgContainer.Terminate(ctx)
	}

	return storage, cleanup
}
