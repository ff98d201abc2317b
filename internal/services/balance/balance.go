// Package balance ведёт баланс пользователя в полуднях.
//
// Показываемое число дней равно ceil(halfdays/2). Начисление выполняется по правилу
// "прочитать в днях, прибавить, записать в полуднях": неполный день при этом
// округляется вверх и становится целым.
package balance

import (
	"fmt"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

// DisplayDays возвращает баланс в днях для показа пользователю.
func DisplayDays(halfdays int) int {
	if halfdays <= 0 {
		return 0
	}
	return (halfdays + 1) / 2
}

// CreditDays возвращает новый баланс в полуднях после начисления nDays дней.
func CreditDays(halfdays, nDays int) int {
	return (DisplayDays(halfdays) + nDays) * 2
}

// Credit начисляет пользователю nDays дней.
func Credit(u *models.User, nDays int) error {
	if nDays <= 0 {
		return fmt.Errorf("balance.Credit: non-positive days %d", nDays)
	}
	u.BalanceHalfdays = CreditDays(u.BalanceHalfdays, nDays)
	return nil
}
