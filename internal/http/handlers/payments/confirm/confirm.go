// Package confirm реализует приём подтверждений оплаты от наблюдателя кошелька.
//
// Тело запроса подписывается HMAC-SHA256 общим секретом, подпись в base64
// передаётся в заголовке X-Api-Signature. Повторное подтверждение уже оплаченного
// счёта не является ошибкой.
package confirm

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/xmr-billing/internal/http/response"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
	"github.com/magabrotheeeer/xmr-billing/internal/models"
	"github.com/magabrotheeeer/xmr-billing/internal/storage"
)

// SignatureHeader заголовок с подписью тела запроса.
const SignatureHeader = "X-Api-Signature"

// maxBodySize ограничивает размер тела подтверждения.
const maxBodySize = 4 << 10

// Payload тело подтверждения оплаты.
type Payload struct {
	PaymentID string `json:"payment_id"`
}

// Invoices ищет счёт по платёжному идентификатору.
type Invoices interface {
	GetInvoiceByPaymentID(ctx context.Context, paymentID models.PaymentID) (*models.Invoice, error)
}

// Settler рассчитывает счёт.
type Settler interface {
	Settle(ctx context.Context, invoiceID int64) (bool, error)
}

// Handler обрабатывает POST /payments/confirm.
type Handler struct {
	log           *slog.Logger
	invoices      Invoices
	settler       Settler
	webhookSecret string
}

// New создаёт обработчик подтверждений оплаты.
func New(log *slog.Logger, invoices Invoices, settler Settler, secret string) *Handler {
	return &Handler{
		log:           log,
		invoices:      invoices,
		settler:       settler,
		webhookSecret: secret,
	}
}

// Sign возвращает подпись тела для заголовка X-Api-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if h.webhookSecret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(h.webhookSecret, body)), []byte(signature))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payments.confirm"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read confirmation body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		log.Error("invalid or missing confirmation signature")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal confirmation payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	paymentID, err := models.ParsePaymentID(payload.PaymentID)
	if err != nil {
		log.Error("invalid payment id", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid payment id"))
		return
	}
	log = log.With(sl.PaymentID(paymentID))

	inv, err := h.invoices.GetInvoiceByPaymentID(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("confirmation for unknown invoice")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("invoice not found"))
			return
		}
		log.Error("failed to read invoice", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not confirm payment"))
		return
	}

	applied, err := h.settler.Settle(r.Context(), inv.ID)
	if err != nil {
		log.Error("failed to settle invoice", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not confirm payment"))
		return
	}

	log.Info("payment confirmed", slog.Bool("applied", applied))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payment_id": paymentID.String(),
		"applied":    applied,
	}))
}
