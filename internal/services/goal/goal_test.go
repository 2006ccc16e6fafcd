package goal

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) ListActiveSubscriptions(ctx context.Context, userID string, now time.Time) ([]models.Subscription, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func (m *RepoMock) CreateGoal(ctx context.Context, g *models.UserGoal) error {
	args := m.Called(ctx, g)
	if args.Error(0) == nil {
		g.ID = 1
	}
	return args.Error(0)
}

func (m *RepoMock) GetGoal(ctx context.Context, userID string, id int64) (*models.UserGoal, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserGoal), args.Error(1)
}

func (m *RepoMock) ListGoals(ctx context.Context, f models.GoalFilter) ([]models.UserGoal, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserGoal), args.Error(1)
}

func (m *RepoMock) UpdateGoal(ctx context.Context, g *models.UserGoal) error {
	return m.Called(ctx, g).Error(0)
}

func (m *RepoMock) DeleteGoal(ctx context.Context, userID string, id int64) error {
	return m.Called(ctx, userID, id).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func sub(id int64, customGoals bool, endIn time.Duration) models.Subscription {
	end := now.Add(endIn)
	return models.Subscription{
		ID:             id,
		UserID:         "u1",
		Status:         models.StatusActive,
		EndDate:        &end,
		Package:        &models.Package{CustomGoalsEnabled: customGoals},
		SelectedScopes: []models.Scope{{ID: 3}},
	}
}

func newService(repo *RepoMock) *Service {
	s := New(repo, newNoopLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name    string
		subs    []models.Subscription
		req     CreateRequest
		wantErr error
		wantSub int64
	}{
		{
			name:    "success",
			subs:    []models.Subscription{sub(10, true, 48*time.Hour)},
			req:     CreateRequest{Title: "  Run 5k ", ScopeID: ptr(int64(3))},
			wantSub: 10,
		},
		{
			name:    "picks subscription with custom goals",
			subs:    []models.Subscription{sub(10, false, 96*time.Hour), sub(11, true, 48*time.Hour)},
			req:     CreateRequest{Title: "Read"},
			wantSub: 11,
		},
		{
			name:    "no active subscription",
			subs:    []models.Subscription{sub(10, true, -time.Hour)},
			req:     CreateRequest{Title: "Read"},
			wantErr: models.ErrNoActiveSubscription,
		},
		{
			name:    "plan without custom goals",
			subs:    []models.Subscription{sub(10, false, 48*time.Hour)},
			req:     CreateRequest{Title: "Read"},
			wantErr: models.ErrForbidden,
		},
		{
			name:    "scope not selected",
			subs:    []models.Subscription{sub(10, true, 48*time.Hour)},
			req:     CreateRequest{Title: "Read", ScopeID: ptr(int64(4))},
			wantErr: models.ErrValidation,
		},
		{
			name:    "empty title",
			req:     CreateRequest{Title: " "},
			wantErr: models.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("GetUser", mock.Anything, "u1").Return(&models.User{ID: "u1", Role: models.RoleSubscriber}, nil)
			repo.On("ListActiveSubscriptions", mock.Anything, "u1", now).Return(tt.subs, nil)
			repo.On("CreateGoal", mock.Anything, mock.Anything).Return(nil)

			g, err := newService(repo).Create(context.Background(), "u1", tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "CreateGoal", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, g.SubscriptionID)
			assert.Equal(t, models.GoalActive, g.Status)
			assert.Equal(t, strings.TrimSpace(tt.req.Title), g.Title)
		})
	}
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name       string
		req        UpdateRequest
		wantErr    error
		wantStatus models.GoalStatus
		wantDone   bool
	}{
		{name: "progress", req: UpdateRequest{Progress: ptr(40)}, wantStatus: models.GoalActive},
		{name: "progress 100 completes", req: UpdateRequest{Progress: ptr(100)}, wantStatus: models.GoalCompleted, wantDone: true},
		{name: "progress out of range", req: UpdateRequest{Progress: ptr(101)}, wantErr: models.ErrValidation},
		{name: "unknown status", req: UpdateRequest{Status: ptr(models.GoalStatus("done"))}, wantErr: models.ErrValidation},
		{name: "pause", req: UpdateRequest{Status: ptr(models.GoalPaused)}, wantStatus: models.GoalPaused},
		{name: "empty title", req: UpdateRequest{Title: ptr("")}, wantErr: models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("GetGoal", mock.Anything, "u1", int64(1)).
				Return(&models.UserGoal{ID: 1, UserID: "u1", Title: "Read", Status: models.GoalActive}, nil)
			repo.On("UpdateGoal", mock.Anything, mock.Anything).Return(nil)

			g, err := newService(repo).Update(context.Background(), "u1", 1, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "UpdateGoal", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, g.Status)
			assert.Equal(t, tt.wantDone, g.CompletedAt != nil)
		})
	}
}

func TestComplete(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetGoal", mock.Anything, "u1", int64(1)).Return(&models.UserGoal{ID: 1, Progress: 30, Status: models.GoalActive}, nil)
	repo.On("UpdateGoal", mock.Anything, mock.Anything).Return(nil).Once()

	g, err := newService(repo).Complete(context.Background(), "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, models.GoalCompleted, g.Status)
	assert.Equal(t, 100, g.Progress)
	assert.Equal(t, now, *g.CompletedAt)

	repo.On("GetGoal", mock.Anything, "u2", int64(1)).Return(nil, models.ErrNotFound)
	_, err = newService(repo).Complete(context.Background(), "u2", 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestList_InvalidStatus(t *testing.T) {
	_, err := newService(new(RepoMock)).List(context.Background(), models.GoalFilter{UserID: "u1", Status: "done"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func ptr[T any](v T) *T { return &v }
