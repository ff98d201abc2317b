package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

const userColumns = `id, username, balance_halfdays, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var status int16
	if err := row.Scan(&u.ID, &u.Username, &u.BalanceHalfdays, &status); err != nil {
		return nil, err
	}
	u.Status = models.UserStatus(status)
	return u, nil
}

// CreateUser сохраняет нового пользователя с нулевым балансом и возвращает его ID.
func (s *Storage) CreateUser(ctx context.Context, username string) (int64, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (username, balance_halfdays, status)
			  VALUES ($1, 0, $2)
			  RETURNING id`
	var newID int64
	if err := s.DB.QueryRowContext(ctx, query, username, int16(models.StatusInactive)).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// CompareAndSetUserStatus меняет статус пользователя, только если текущий равен from.
// Возвращает false, если статус уже другой.
func (s *Storage) CompareAndSetUserStatus(ctx context.Context, userID int64, from, to models.UserStatus) (bool, error) {
	const op = "storage.CompareAndSetUserStatus"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET status = $1 WHERE id = $2 AND status = $3`
	result, err := s.DB.ExecContext(ctx, query, int16(to), userID, int16(from))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}
