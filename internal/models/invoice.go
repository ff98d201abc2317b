package models

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentIDSize длина платёжного идентификатора в байтах.
const PaymentIDSize = 8

// PriceXMRPlaces точность цены счёта в XMR.
const PriceXMRPlaces = 12

// PaymentID случайный идентификатор, встраиваемый в интегрированный адрес.
type PaymentID [PaymentIDSize]byte

// String возвращает hex-представление идентификатора.
func (p PaymentID) String() string {
	return hex.EncodeToString(p[:])
}

// ParsePaymentID разбирает hex-строку из 16 символов.
func ParsePaymentID(s string) (PaymentID, error) {
	var id PaymentID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid payment id: %w", err)
	}
	if len(b) != PaymentIDSize {
		return id, fmt.Errorf("invalid payment id: want %d bytes, got %d", PaymentIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// InvoiceState состояние оплаты счёта. Переход только Unpaid -> Paid.
type InvoiceState bool

const (
	// InvoiceUnpaid счёт создан и ждёт оплаты.
	InvoiceUnpaid InvoiceState = false
	// InvoicePaid счёт оплачен и его эффекты применены.
	InvoicePaid InvoiceState = true
)

func (s InvoiceState) String() string {
	if s == InvoicePaid {
		return "PAID"
	}
	return "UNPAID"
}

// MarkPaid выполняет единственный допустимый переход Unpaid -> Paid.
func (s InvoiceState) MarkPaid() (InvoiceState, error) {
	if s == InvoicePaid {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, InvoicePaid)
	}
	return InvoicePaid, nil
}

// Invoice счёт на оплату плана.
// Цена в XMR фиксируется при создании и больше не пересчитывается.
type Invoice struct {
	ID        int64           // Внутренний идентификатор
	PaymentID PaymentID       // Уникальный случайный идентификатор платежа
	UserID    int64           // Плательщик
	PlanID    int64           // Оплачиваемый план
	PriceXMR  decimal.Decimal // Цена в XMR, 12 знаков после запятой
	Created   time.Time       // Время создания
	State     InvoiceState    // Состояние оплаты
}

// IsPaid сообщает, оплачен ли счёт.
func (i *Invoice) IsPaid() bool {
	return i.State == InvoicePaid
}

// CreatedString форматирует время создания с точностью до секунд.
func (i *Invoice) CreatedString() string {
	return i.Created.Format("2006-01-02 15:04:05")
}

func (i *Invoice) String() string {
	return fmt.Sprintf("Invoice %s for user #%d - %s XMR - %s #%d:%s",
		i.State, i.UserID, i.PriceXMR.StringFixed(PriceXMRPlaces), i.CreatedString(), i.ID, i.PaymentID)
}
