package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	"github.com/magabrotheeeer/motivation-hub/internal/paymentprovider"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ProcessWebhook(ctx context.Context, raw []byte) (bool, error) {
	args := m.Called(ctx, raw)
	return args.Bool(0), args.Error(1)
}

func (m *ServiceMock) VerifyPayment(ctx context.Context, userID, chargeID string) (*paymentprovider.Charge, error) {
	args := m.Called(ctx, userID, chargeID)
	charge, _ := args.Get(0).(*paymentprovider.Charge)
	return charge, args.Error(1)
}

func (m *ServiceMock) ListTransactions(ctx context.Context, userID string) ([]models.PaymentTransaction, error) {
	args := m.Called(ctx, userID)
	txs, _ := args.Get(0).([]models.PaymentTransaction)
	return txs, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

const secret = "whsec"

var payload = []byte(`{"id":"chg_1","status":"CAPTURED"}`)

func sign(body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func TestHandler_Webhook(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		signature  string
		handled    bool
		err        error
		callSvc    bool
		wantStatus int
		wantBody   string
	}{
		{
			name:       "handled without secret",
			handled:    true,
			callSvc:    true,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"success"}`,
		},
		{
			name:       "hex signature",
			secret:     secret,
			signature:  hex.EncodeToString(sign(payload)),
			handled:    true,
			callSvc:    true,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"success"}`,
		},
		{
			name:       "base64 signature",
			secret:     secret,
			signature:  base64.StdEncoding.EncodeToString(sign(payload)),
			handled:    true,
			callSvc:    true,
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"success"}`,
		},
		{
			name:       "missing signature",
			secret:     secret,
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"status":"failed"}`,
		},
		{
			name:       "wrong signature",
			secret:     secret,
			signature:  hex.EncodeToString(sign([]byte("other"))),
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"status":"failed"}`,
		},
		{
			name:       "unknown charge",
			callSvc:    true,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"status":"failed"}`,
		},
		{
			name:       "invalid payload",
			err:        models.NewValidationError("id", "charge id is missing"),
			callSvc:    true,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"status":"failed"}`,
		},
		{
			name:       "storage error",
			err:        errors.New("db down"),
			callSvc:    true,
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"status":"failed"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callSvc {
				svc.On("ProcessWebhook", mock.Anything, payload).Return(tt.handled, tt.err).Once()
			}
			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(payload))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc, tt.secret).Webhook(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_Verify(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("VerifyPayment", mock.Anything, "u1", "chg_1").
		Return(&paymentprovider.Charge{ID: "chg_1", Status: paymentprovider.StatusCaptured}, nil).Once()
	svc.On("VerifyPayment", mock.Anything, "u1", "chg_2").Return(nil, models.ErrNotFound).Once()

	r := chi.NewRouter()
	r.Get("/payments/verify/{chargeID}", New(newNoopLogger(), svc, "").Verify)

	for chargeID, want := range map[string]int{"chg_1": http.StatusOK, "chg_2": http.StatusNotFound} {
		req := httptest.NewRequest(http.MethodGet, "/payments/verify/"+chargeID, nil)
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, chargeID)
	}
	svc.AssertExpectations(t)
}

func TestHandler_List(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("ListTransactions", mock.Anything, "u1").
		Return([]models.PaymentTransaction{{ID: 1, ChargeID: "chg_1", Status: models.TxCompleted}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/payments", nil)
	req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
	rec := httptest.NewRecorder()
	New(newNoopLogger(), svc, "").List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"charge_id":"chg_1"`)
	svc.AssertExpectations(t)
}
