package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	subsvc "github.com/magabrotheeeer/motivation-hub/internal/services/subscription"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Checkout(ctx context.Context, user *models.User, req subsvc.CheckoutRequest) (*subsvc.CheckoutResult, error) {
	args := m.Called(ctx, user, req)
	res, _ := args.Get(0).(*subsvc.CheckoutResult)
	return res, args.Error(1)
}

func (m *ServiceMock) Activate(ctx context.Context, subID int64) (*subsvc.ActivationResult, error) {
	args := m.Called(ctx, subID)
	res, _ := args.Get(0).(*subsvc.ActivationResult)
	return res, args.Error(1)
}

func (m *ServiceMock) Cancel(ctx context.Context, userID string, subID int64) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *ServiceMock) UpdateScopes(ctx context.Context, userID string, subID int64, scopeIDs []int64) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subID, scopeIDs)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func (m *ServiceMock) Active(ctx context.Context, userID string) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	subs, _ := args.Get(0).([]models.Subscription)
	return subs, args.Error(1)
}

func (m *ServiceMock) List(ctx context.Context, userID string) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	subs, _ := args.Get(0).([]models.Subscription)
	return subs, args.Error(1)
}

func (m *ServiceMock) Get(ctx context.Context, userID string, subID int64) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

var testUser = &models.User{ID: "u1", Username: "ann", Email: "ann@example.com", Role: models.RoleNormal}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// withUser имитирует JWTMiddleware: кладет в контекст пользователя и его права.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caps := access.Resolve(testUser, nil, time.Now())
		next.ServeHTTP(w, r.WithContext(middlewarectx.WithCapabilities(r.Context(), caps)))
	})
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(withUser)
	r.Post("/subscriptions", h.Checkout)
	r.Get("/subscriptions", h.List)
	r.Get("/subscriptions/active", h.Active)
	r.Get("/subscriptions/{id}", h.Get)
	r.Post("/subscriptions/{id}/cancel", h.Cancel)
	r.Patch("/subscriptions/{id}/scopes", h.UpdateScopes)
	r.Post("/admin/subscriptions/{id}/activate", h.Activate)
	return r
}

func serve(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, bytes.NewBufferString(body)))
	got := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	return rec, got
}

func TestHandler_Checkout(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*ServiceMock)
		wantStatus int
		wantError  string
	}{
		{
			name: "pending subscription with payment url",
			body: `{"package_id":2,"scope_ids":[1,3]}`,
			setup: func(s *ServiceMock) {
				s.On("Checkout", mock.Anything, testUser, subsvc.CheckoutRequest{PackageID: 2, ScopeIDs: []int64{1, 3}}).
					Return(&subsvc.CheckoutResult{
						Subscription: &models.Subscription{ID: 10, Status: models.StatusPending},
						ChargeID:     "chg_1",
						PaymentURL:   "https://pay.example.com/chg_1",
					}, nil).Once()
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "no scopes",
			body:       `{"package_id":2,"scope_ids":[]}`,
			setup:      func(*ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "ScopeIDs",
		},
		{
			name: "too many scopes",
			body: `{"package_id":2,"scope_ids":[1,2,3,4]}`,
			setup: func(s *ServiceMock) {
				s.On("Checkout", mock.Anything, testUser, mock.Anything).
					Return(nil, models.NewValidationError("scope_ids", "at most %d scopes allowed", 3)).Once()
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "scope_ids: at most 3 scopes allowed",
		},
		{
			name: "gateway down",
			body: `{"package_id":2,"scope_ids":[1]}`,
			setup: func(s *ServiceMock) {
				s.On("Checkout", mock.Anything, testUser, mock.Anything).
					Return(nil, &models.UpstreamError{Service: "payment", Err: errors.New("timeout")}).Once()
			},
			wantStatus: http.StatusBadGateway,
			wantError:  "payment service is unavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)

			rec, got := serve(t, newRouter(New(newNoopLogger(), svc)), http.MethodPost, "/subscriptions", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Contains(t, got["error"], tt.wantError)
			} else {
				assert.Equal(t, "https://pay.example.com/chg_1", got["data"].(map[string]any)["payment_url"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_Checkout_Unauthenticated(t *testing.T) {
	h := New(newNoopLogger(), new(ServiceMock))
	rec := httptest.NewRecorder()
	h.Checkout(rec, httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_Cancel(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		setup      func(*ServiceMock)
		wantStatus int
	}{
		{
			name:   "active subscription",
			target: "/subscriptions/5/cancel",
			setup: func(s *ServiceMock) {
				s.On("Cancel", mock.Anything, "u1", int64(5)).
					Return(&models.Subscription{ID: 5, Status: models.StatusCancelled}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "already cancelled",
			target: "/subscriptions/6/cancel",
			setup: func(s *ServiceMock) {
				s.On("Cancel", mock.Anything, "u1", int64(6)).
					Return(nil, &models.TransitionError{From: models.StatusCancelled, Action: "cancel"}).Once()
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "foreign subscription",
			target: "/subscriptions/7/cancel",
			setup: func(s *ServiceMock) {
				s.On("Cancel", mock.Anything, "u1", int64(7)).Return(nil, models.ErrNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "bad id",
			target:     "/subscriptions/0/cancel",
			setup:      func(*ServiceMock) {},
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)
			rec, _ := serve(t, newRouter(New(newNoopLogger(), svc)), http.MethodPost, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_UpdateScopes(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("UpdateScopes", mock.Anything, "u1", int64(5), []int64{2, 4}).
		Return(&models.Subscription{ID: 5}, nil).Once()
	router := newRouter(New(newNoopLogger(), svc))

	rec, _ := serve(t, router, http.MethodPatch, "/subscriptions/5/scopes", `{"scope_ids":[2,4]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = serve(t, router, http.MethodPatch, "/subscriptions/5/scopes", `{"scope_ids":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandler_ListAndActive(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("List", mock.Anything, "u1").Return([]models.Subscription{{ID: 1}, {ID: 2}}, nil).Once()
	svc.On("Active", mock.Anything, "u1").Return([]models.Subscription{}, nil).Once()
	router := newRouter(New(newNoopLogger(), svc))

	rec, got := serve(t, router, http.MethodGet, "/subscriptions", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, got["data"], 2)

	rec, _ = serve(t, router, http.MethodGet, "/subscriptions/active", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandler_Activate(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Activate", mock.Anything, int64(9)).Return(&subsvc.ActivationResult{
		Subscription: &models.Subscription{ID: 9, Status: models.StatusActive},
		RoleUpgraded: true,
	}, nil).Once()

	rec, got := serve(t, newRouter(New(newNoopLogger(), svc)), http.MethodPost, "/admin/subscriptions/9/activate", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, got["data"].(map[string]any)["role_upgraded"])
	svc.AssertExpectations(t)
}
