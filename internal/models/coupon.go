package models

import "fmt"

// Coupon код скидки с ограниченной ёмкостью.
// UsedCount меняется только сервером при расчёте счёта.
type Coupon struct {
	ID          int64  // Внутренний идентификатор
	Code        string // Текст купона, уникален
	TotalCount  int    // Сколько раз купон можно использовать
	UsedCount   int    // Сколько раз купон уже использован
	IsUnlimited bool   // Купон без ограничения использований
}

func (c *Coupon) String() string {
	if c.IsUnlimited {
		return fmt.Sprintf("Coupon '%s' - %d used", c.Code, c.UsedCount)
	}
	return fmt.Sprintf("Coupon '%s' - %d/%d used", c.Code, c.UsedCount, c.TotalCount)
}
