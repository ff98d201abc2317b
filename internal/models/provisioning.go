package models

// ProvisioningJob сообщение для воркера провижининга,
// публикуется после фиксации транзакции расчёта.
type ProvisioningJob struct {
	UserID    int64  `json:"user_id"`
	InvoiceID int64  `json:"invoice_id"`
	PaymentID string `json:"payment_id"`
}
