package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	authsvc "github.com/magabrotheeeer/motivation-hub/internal/services/auth"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Register(ctx context.Context, req authsvc.RegisterRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *ServiceMock) Login(ctx context.Context, username, password string) (*authsvc.LoginResult, error) {
	args := m.Called(ctx, username, password)
	res, _ := args.Get(0).(*authsvc.LoginResult)
	return res, args.Error(1)
}

func (m *ServiceMock) Me(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *ServiceMock) Access(ctx context.Context, userID string) (access.Summary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(access.Summary), args.Error(1)
}

func (m *ServiceMock) Feature(ctx context.Context, userID, feature string) (access.FeatureInfo, error) {
	args := m.Called(ctx, userID, feature)
	return args.Get(0).(access.FeatureInfo), args.Error(1)
}

func (m *ServiceMock) StartTrial(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *ServiceMock) ManageTrial(ctx context.Context, userID, action string, days int) (*models.User, error) {
	args := m.Called(ctx, userID, action, days)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *ServiceMock) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset)
	users, _ := args.Get(0).([]*models.User)
	return users, args.Error(1)
}

func (m *ServiceMock) Downgrade(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	return got
}

func TestHandler_Register(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		mockErr        error
		callService    bool
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "valid registration",
			requestBody:    RegisterRequest{Username: "user1", Password: "password123", Email: "user1@example.com"},
			callService:    true,
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "validation error - missing password",
			requestBody:    RegisterRequest{Username: "user1", Email: "user1@example.com"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Password is a required field",
		},
		{
			name:           "user exists",
			requestBody:    RegisterRequest{Username: "user1", Password: "password123", Email: "user1@example.com"},
			mockErr:        models.ErrUserExists,
			callService:    true,
			wantStatusCode: http.StatusConflict,
			wantError:      "user already exists",
		},
		{
			name:           "storage error",
			requestBody:    RegisterRequest{Username: "user1", Password: "password123", Email: "user1@example.com"},
			mockErr:        errors.New("db error"),
			callService:    true,
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callService {
				var user *models.User
				if tt.mockErr == nil {
					user = &models.User{ID: "u1", Username: "user1", Role: models.RoleNormal}
				}
				svc.On("Register", mock.Anything, authsvc.RegisterRequest{
					Username: "user1", Email: "user1@example.com", Password: "password123",
				}).Return(user, tt.mockErr).Once()
			}

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(v)
				require.NoError(t, err)
			}
			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc).Register(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			got := decodeBody(t, rec)
			if tt.wantError != "" {
				assert.Equal(t, "Error", got["status"])
				assert.Contains(t, got["error"], tt.wantError)
			} else {
				assert.Equal(t, "OK", got["status"])
				data := got["data"].(map[string]any)
				assert.Equal(t, "user1", data["username"])
				assert.NotContains(t, data, "PasswordHash")
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_RegisterWithoutTrial(t *testing.T) {
	no := false
	svc := new(ServiceMock)
	svc.On("Register", mock.Anything, authsvc.RegisterRequest{
		Username: "user1", Email: "user1@example.com", Password: "password123", StartTrial: &no,
	}).Return(&models.User{ID: "u1", Username: "user1", Role: models.RoleNormal}, nil).Once()

	body := `{"username":"user1","email":"user1@example.com","password":"password123","start_trial":false}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	rec := httptest.NewRecorder()

	New(newNoopLogger(), svc).Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandler_Login(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Login", mock.Anything, "ann", "secret123").
		Return(&authsvc.LoginResult{Token: "tok", ExpiresIn: 900, User: &models.User{ID: "u1"}}, nil).Once()
	svc.On("Login", mock.Anything, "ann", "wrong").Return(nil, models.ErrInvalidCredentials).Once()
	h := New(newNoopLogger(), svc)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"username":"ann","password":"secret123"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", decodeBody(t, rec)["data"].(map[string]any)["access_token"])

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"username":"ann","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandler_ManageTrial(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(*ServiceMock)
		wantStatusCode int
	}{
		{
			name: "extend",
			body: `{"user_id":"u2","action":"extend","days":3}`,
			setup: func(s *ServiceMock) {
				s.On("ManageTrial", mock.Anything, "u2", "extend", 3).Return(&models.User{ID: "u2"}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "unknown action",
			body:           `{"user_id":"u2","action":"pause"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name: "trial already used",
			body: `{"user_id":"u2","action":"start"}`,
			setup: func(s *ServiceMock) {
				s.On("ManageTrial", mock.Anything, "u2", "start", 0).Return(nil, models.ErrTrialAlreadyUsed).Once()
			},
			wantStatusCode: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.setup != nil {
				tt.setup(svc)
			}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/admin/trials", bytes.NewBufferString(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "admin1"))

			New(newNoopLogger(), svc).ManageTrial(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_Feature(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Feature", mock.Anything, "u1", access.FeatureCustomGoals).
		Return(access.FeatureInfo{Feature: access.FeatureCustomGoals, Reason: "No plan"}, nil).Once()

	r := chi.NewRouter()
	r.Get("/me/features/{feature}", New(newNoopLogger(), svc).Feature)

	req := httptest.NewRequest(http.MethodGet, "/me/features/custom_goals", nil)
	req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["data"].(map[string]any)["can_access"])
	svc.AssertExpectations(t)
}

func TestHandler_ListUsers_BadLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	New(newNoopLogger(), new(ServiceMock)).ListUsers(rec, httptest.NewRequest(http.MethodGet, "/admin/users?limit=1000", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
