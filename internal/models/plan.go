package models

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Plan тариф: цена в долларах и длительность в днях.
// План доступен к покупке, пока пригоден его купон. После создания не меняется.
type Plan struct {
	ID       int64           // Внутренний идентификатор
	UUID     uuid.UUID       // Публичный идентификатор, приходит от клиента
	CouponID int64           // Купон, открывающий доступ к плану
	NDays    int             // Длительность в днях
	PriceUSD decimal.Decimal // Цена, 2 знака после запятой
}

// IsFree сообщает, что план бесплатный и оплата не ожидается.
func (p *Plan) IsFree() bool {
	return p.PriceUSD.IsZero()
}

// Days возвращает длительность плана в человекочитаемом виде.
func (p *Plan) Days() string {
	if p.NDays == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", p.NDays)
}

func (p *Plan) String() string {
	return fmt.Sprintf("Plan #%d: $%s - %s", p.ID, p.PriceUSD.StringFixed(2), p.Days())
}
