// Package dashboard собирает статистику личного кабинета.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/day"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	"github.com/magabrotheeeer/motivation-hub/internal/services/quota"
)

type Repository interface {
	GoalStats(ctx context.Context, userID string) (models.GoalStats, error)
	MessageStats(ctx context.Context, userID string, weekStart time.Time) (models.MessageStats, error)
}

type AccessResolver interface {
	Resolve(ctx context.Context, userID string) (*access.Capabilities, error)
}

type Quota interface {
	Usage(ctx context.Context, userID string, sub *models.Subscription, at time.Time) (quota.Usage, error)
}

type Service struct {
	repo     Repository
	resolver AccessResolver
	quota    Quota
	loc      *time.Location
	log      *slog.Logger
}

// New создает Service. Неделя для статистики сообщений считается в loc.
func New(repo Repository, resolver AccessResolver, q Quota, loc *time.Location, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, resolver: resolver, quota: q, loc: loc, log: log}
}

// Stats возвращает статистику целей, сообщений и основной подписки.
func (s *Service) Stats(ctx context.Context, userID string) (models.DashboardStats, error) {
	const op = "dashboard.Stats"
	var st models.DashboardStats

	caps, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}
	if st.Goals, err = s.repo.GoalStats(ctx, userID); err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}
	if st.Messages, err = s.repo.MessageStats(ctx, userID, day.WeekStart(caps.Now, s.loc)); err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}

	sub := caps.PrimarySubscription()
	if sub == nil {
		return st, nil
	}
	usage, err := s.quota.Usage(ctx, userID, sub, caps.Now)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}
	info := &models.SubscriptionInfo{
		DaysRemaining: sub.DaysRemaining(caps.Now),
		EndDate:       *sub.EndDate,
		MessagesToday: usage.Used,
		MessagesLimit: usage.Limit,
	}
	if sub.Package != nil {
		info.PackageName = sub.Package.Name
	}
	st.Subscription = info
	return st, nil
}
