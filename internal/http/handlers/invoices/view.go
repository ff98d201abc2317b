// Package invoices содержит общее JSON-представление счёта для обработчиков.
package invoices

import (
	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

// View счёт в том виде, в каком его видит плательщик.
type View struct {
	PaymentID string `json:"payment_id"`
	Address   string `json:"address"`
	PriceXMR  string `json:"price_xmr"`
	Created   string `json:"created"`
	IsPaid    bool   `json:"is_paid"`
}

// NewView формирует представление счёта с адресом для оплаты.
func NewView(inv *models.Invoice, address string) View {
	return View{
		PaymentID: inv.PaymentID.String(),
		Address:   address,
		PriceXMR:  inv.PriceXMR.StringFixed(models.PriceXMRPlaces),
		Created:   inv.CreatedString(),
		IsPaid:    inv.IsPaid(),
	}
}
