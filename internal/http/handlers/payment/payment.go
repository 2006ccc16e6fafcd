// Package payment содержит HTTP-обработчики webhook платежного шлюза и истории платежей.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/http/response"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	"github.com/magabrotheeeer/motivation-hub/internal/paymentprovider"
)

// SignatureHeader заголовок с HMAC-SHA256 подписью тела webhook.
const SignatureHeader = "hashstring"

const maxWebhookBytes = 1 << 20

type Service interface {
	ProcessWebhook(ctx context.Context, raw []byte) (bool, error)
	VerifyPayment(ctx context.Context, userID, chargeID string) (*paymentprovider.Charge, error)
	ListTransactions(ctx context.Context, userID string) ([]models.PaymentTransaction, error)
}

type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

// New создает Handler. Пустой secret отключает проверку подписи webhook.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

type webhookStatus struct {
	Status string `json:"status"`
}

// verifySignature сравнивает подпись с HMAC-SHA256 тела. Подпись принимается в hex или base64.
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := mac.Sum(nil)

	signature = strings.TrimSpace(signature)
	if got, err := hex.DecodeString(signature); err == nil && hmac.Equal(expected, got) {
		return true
	}
	if got, err := base64.StdEncoding.DecodeString(signature); err == nil && hmac.Equal(expected, got) {
		return true
	}
	return false
}

// Webhook godoc
// @Summary Webhook платежного шлюза
// @Description Применяет событие списания к транзакции и подписке. Повторная доставка безопасна.
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} webhookStatus
// @Failure 400 {object} webhookStatus "Неизвестный платеж или некорректное тело"
// @Failure 401 {object} webhookStatus "Неверная подпись"
// @Router /payments/webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.Webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		h.status(w, r, http.StatusBadRequest, "failed")
		return
	}
	defer func() { _ = r.Body.Close() }()

	if h.webhookSecret != "" && !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		log.Error("invalid or missing webhook signature")
		h.status(w, r, http.StatusUnauthorized, "failed")
		return
	}

	handled, err := h.service.ProcessWebhook(r.Context(), body)
	switch {
	case errors.Is(err, models.ErrValidation):
		log.Warn("invalid webhook payload", sl.Err(err))
		h.status(w, r, http.StatusBadRequest, "failed")
	case err != nil:
		log.Error("failed to process webhook", sl.Err(err))
		h.status(w, r, http.StatusInternalServerError, "failed")
	case !handled:
		h.status(w, r, http.StatusBadRequest, "failed")
	default:
		h.status(w, r, http.StatusOK, "success")
	}
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request, code int, status string) {
	render.Status(r, code)
	render.JSON(w, r, webhookStatus{Status: status})
}

// List возвращает платежи текущего пользователя.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.List"
	txs, err := h.service.ListTransactions(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		h.log.Error("failed to list transactions",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, txs)
}

// Verify запрашивает у шлюза состояние платежа {chargeID}.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.Verify"
	chargeID := chi.URLParam(r, "chargeID")
	if chargeID == "" {
		response.BadRequest(w, r, "invalid chargeID")
		return
	}
	charge, err := h.service.VerifyPayment(r.Context(), middlewarectx.UserIDFrom(r.Context()), chargeID)
	if err != nil {
		h.log.Warn("failed to verify payment",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("charge_id", chargeID),
			sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, charge)
}
