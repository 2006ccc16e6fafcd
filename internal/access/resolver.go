package access

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// Repository источник пользователей и их действующих подписок.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListActiveSubscriptions(ctx context.Context, userID string, now time.Time) ([]models.Subscription, error)
}

// Resolver загружает актуальное состояние пользователя и вычисляет его права.
// Кеширования нет: каждый вызов читает хранилище заново.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

// NewResolver создает Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

// Resolve вычисляет права пользователя userID на текущий момент.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Capabilities, error) {
	const op = "access.Resolve"

	user, err := r.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := r.now()
	subs, err := r.repo.ListActiveSubscriptions(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return Resolve(user, subs, now), nil
}
