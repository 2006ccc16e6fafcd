// Package goal управляет персональными целями подписчиков.
package goal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// Repository хранилище целей и источник действующих подписок.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListActiveSubscriptions(ctx context.Context, userID string, now time.Time) ([]models.Subscription, error)
	CreateGoal(ctx context.Context, g *models.UserGoal) error
	GetGoal(ctx context.Context, userID string, id int64) (*models.UserGoal, error)
	ListGoals(ctx context.Context, f models.GoalFilter) ([]models.UserGoal, error)
	UpdateGoal(ctx context.Context, g *models.UserGoal) error
	DeleteGoal(ctx context.Context, userID string, id int64) error
}

// CreateRequest данные новой цели.
type CreateRequest struct {
	ScopeID     *int64
	Title       string
	Description string
	TargetDate  *time.Time
}

// UpdateRequest частичное обновление цели. nil означает "не менять".
type UpdateRequest struct {
	Title       *string
	Description *string
	TargetDate  *time.Time
	Status      *models.GoalStatus
	Progress    *int
}

type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// New создает Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// goalSubscription выбирает действующую подписку с пакетом, разрешающим свои цели.
// Предпочитается основная подписка пользователя.
func goalSubscription(caps *access.Capabilities) (*models.Subscription, error) {
	if !caps.HasActiveSubscription() {
		return nil, models.ErrNoActiveSubscription
	}
	if p := caps.PrimarySubscription(); p.Package != nil && p.Package.CustomGoalsEnabled {
		return p, nil
	}
	for i := range caps.Active {
		if pkg := caps.Active[i].Package; pkg != nil && pkg.CustomGoalsEnabled {
			return &caps.Active[i], nil
		}
	}
	return nil, fmt.Errorf("%w: current plan doesn't include custom goals", models.ErrForbidden)
}

// Create создает цель в рамках действующей подписки с включенными целями.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*models.UserGoal, error) {
	const op = "goal.Create"

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("title", "is required"))
	}

	now := s.now()
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	subs, err := s.repo.ListActiveSubscriptions(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := goalSubscription(access.Resolve(user, subs, now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.ScopeID != nil && !hasScope(sub, *req.ScopeID) {
		return nil, fmt.Errorf("%s: %w", op,
			models.NewValidationError("scope_id", "scope %d is not selected in your subscription", *req.ScopeID))
	}

	g := &models.UserGoal{
		UserID:         userID,
		SubscriptionID: sub.ID,
		ScopeID:        req.ScopeID,
		Title:          title,
		Description:    req.Description,
		TargetDate:     req.TargetDate,
		Status:         models.GoalActive,
	}
	if err := s.repo.CreateGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("goal created", slog.String("op", op), slog.String("user_id", userID), slog.Int64("goal_id", g.ID))
	return g, nil
}

func hasScope(sub *models.Subscription, id int64) bool {
	for _, sc := range sub.SelectedScopes {
		if sc.ID == id {
			return true
		}
	}
	return false
}

// Update применяет частичное обновление. Прогресс 100 или статус completed завершают цель.
func (s *Service) Update(ctx context.Context, userID string, id int64, req UpdateRequest) (*models.UserGoal, error) {
	const op = "goal.Update"

	g, err := s.repo.GetGoal(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("title", "must not be empty"))
		}
		g.Title = title
	}
	if req.Description != nil {
		g.Description = *req.Description
	}
	if req.TargetDate != nil {
		g.TargetDate = req.TargetDate
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("status", "unknown status %q", *req.Status))
		}
		if *req.Status == models.GoalCompleted {
			g.Complete(now)
		} else {
			g.Status = *req.Status
			g.CompletedAt = nil
		}
	}
	if req.Progress != nil {
		if err := g.SetProgress(*req.Progress, now); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.repo.UpdateGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return g, nil
}

// Complete завершает цель.
func (s *Service) Complete(ctx context.Context, userID string, id int64) (*models.UserGoal, error) {
	const op = "goal.Complete"
	g, err := s.repo.GetGoal(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	g.Complete(s.now())
	if err := s.repo.UpdateGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return g, nil
}

// Delete удаляет цель.
func (s *Service) Delete(ctx context.Context, userID string, id int64) error {
	const op = "goal.Delete"
	if err := s.repo.DeleteGoal(ctx, userID, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// List возвращает цели пользователя.
func (s *Service) List(ctx context.Context, f models.GoalFilter) ([]models.UserGoal, error) {
	const op = "goal.List"
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("status", "unknown status %q", f.Status))
	}
	goals, err := s.repo.ListGoals(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return goals, nil
}

// Get возвращает цель пользователя.
func (s *Service) Get(ctx context.Context, userID string, id int64) (*models.UserGoal, error) {
	const op = "goal.Get"
	g, err := s.repo.GetGoal(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return g, nil
}
