package goal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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

	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	goalsvc "github.com/magabrotheeeer/motivation-hub/internal/services/goal"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Create(ctx context.Context, userID string, req goalsvc.CreateRequest) (*models.UserGoal, error) {
	args := m.Called(ctx, userID, req)
	g, _ := args.Get(0).(*models.UserGoal)
	return g, args.Error(1)
}

func (m *ServiceMock) Update(ctx context.Context, userID string, id int64, req goalsvc.UpdateRequest) (*models.UserGoal, error) {
	args := m.Called(ctx, userID, id, req)
	g, _ := args.Get(0).(*models.UserGoal)
	return g, args.Error(1)
}

func (m *ServiceMock) Complete(ctx context.Context, userID string, id int64) (*models.UserGoal, error) {
	args := m.Called(ctx, userID, id)
	g, _ := args.Get(0).(*models.UserGoal)
	return g, args.Error(1)
}

func (m *ServiceMock) Delete(ctx context.Context, userID string, id int64) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *ServiceMock) List(ctx context.Context, f models.GoalFilter) ([]models.UserGoal, error) {
	args := m.Called(ctx, f)
	goals, _ := args.Get(0).([]models.UserGoal)
	return goals, args.Error(1)
}

func (m *ServiceMock) Get(ctx context.Context, userID string, id int64) (*models.UserGoal, error) {
	args := m.Called(ctx, userID, id)
	g, _ := args.Get(0).(*models.UserGoal)
	return g, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middlewarectx.UserID, "u1")))
		})
	})
	r.Post("/goals", h.Create)
	r.Get("/goals", h.List)
	r.Get("/goals/{id}", h.Get)
	r.Patch("/goals/{id}", h.Update)
	r.Post("/goals/{id}/complete", h.Complete)
	r.Delete("/goals/{id}", h.Delete)
	return r
}

func serve(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, bytes.NewBufferString(body)))
	got := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	}
	return rec, got
}

func ptr[T any](v T) *T { return &v }

func TestHandler_Create(t *testing.T) {
	target := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		body       string
		setup      func(*ServiceMock)
		wantStatus int
		wantError  string
	}{
		{
			name: "with scope and target date",
			body: `{"scope_id":2,"title":"Run 10k","target_date":"2025-06-01"}`,
			setup: func(s *ServiceMock) {
				s.On("Create", mock.Anything, "u1", goalsvc.CreateRequest{
					ScopeID: ptr(int64(2)), Title: "Run 10k", TargetDate: &target,
				}).Return(&models.UserGoal{ID: 1, Title: "Run 10k", Status: models.GoalActive}, nil).Once()
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing title",
			body:       `{"scope_id":2}`,
			setup:      func(*ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "field Title is a required field",
		},
		{
			name:       "bad target date",
			body:       `{"title":"Read","target_date":"01.06.2025"}`,
			setup:      func(*ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "target_date",
		},
		{
			name: "plan without custom goals",
			body: `{"title":"Read"}`,
			setup: func(s *ServiceMock) {
				s.On("Create", mock.Anything, "u1", mock.Anything).
					Return(nil, fmt.Errorf("goal.Create: %w: current plan doesn't include custom goals", models.ErrForbidden)).Once()
			},
			wantStatus: http.StatusForbidden,
			wantError:  "forbidden: current plan doesn't include custom goals",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)

			rec, got := serve(t, newRouter(New(newNoopLogger(), svc)), http.MethodPost, "/goals", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Contains(t, got["error"], tt.wantError)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_Update(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Update", mock.Anything, "u1", int64(4), goalsvc.UpdateRequest{
		Status:   ptr(models.GoalPaused),
		Progress: ptr(40),
	}).Return(&models.UserGoal{ID: 4, Status: models.GoalPaused, Progress: 40}, nil).Once()
	svc.On("Update", mock.Anything, "u1", int64(5), mock.Anything).
		Return(nil, models.NewValidationError("progress", "must be between 0 and 100")).Once()
	router := newRouter(New(newNoopLogger(), svc))

	rec, got := serve(t, router, http.MethodPatch, "/goals/4", `{"status":"paused","progress":40}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paused", got["data"].(map[string]any)["status"])

	rec, _ = serve(t, router, http.MethodPatch, "/goals/5", `{"progress":140}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandler_CompleteGetDelete(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Complete", mock.Anything, "u1", int64(3)).
		Return(&models.UserGoal{ID: 3, Status: models.GoalCompleted, Progress: 100}, nil).Once()
	svc.On("Get", mock.Anything, "u1", int64(9)).Return(nil, models.ErrNotFound).Once()
	svc.On("Delete", mock.Anything, "u1", int64(3)).Return(nil).Once()
	router := newRouter(New(newNoopLogger(), svc))

	rec, got := serve(t, router, http.MethodPost, "/goals/3/complete", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 100, got["data"].(map[string]any)["progress"])

	rec, _ = serve(t, router, http.MethodGet, "/goals/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, router, http.MethodDelete, "/goals/3", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandler_List(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("List", mock.Anything, models.GoalFilter{UserID: "u1", Status: models.GoalActive}).
		Return([]models.UserGoal{{ID: 1}}, nil).Once()

	rec, got := serve(t, newRouter(New(newNoopLogger(), svc)), http.MethodGet, "/goals?status=active", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, got["data"], 1)
	svc.AssertExpectations(t)
}
