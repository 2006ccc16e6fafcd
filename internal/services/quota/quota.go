// Package quota ограничивает число сгенерированных сообщений в календарные сутки.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/lib/day"
	"github.com/magabrotheeeer/motivation-hub/internal/metrics"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// Repository считает и сохраняет сообщения.
type Repository interface {
	CountMessages(ctx context.Context, userID string, from, to time.Time) (int, error)
	InsertMessageWithinQuota(ctx context.Context, msg *models.AIMessage, from, to time.Time, check func(used int) error) error
}

// Usage расход квоты за сутки.
type Usage struct {
	Day       string    `json:"day"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}

// Allowed сообщает, можно ли создать еще одно сообщение.
func (u Usage) Allowed() bool { return u.Used < u.Limit }

type Service struct {
	repo Repository
	loc  *time.Location
	log  *slog.Logger
}

// New создает Service. Сутки считаются в часовом поясе loc.
func New(repo Repository, loc *time.Location, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, log: log}
}

// Window возвращает границы суток, в которые попадает at.
func (s *Service) Window(at time.Time) (time.Time, time.Time) {
	return day.Bounds(at, s.loc)
}

func limitOf(sub *models.Subscription, at time.Time) (int, error) {
	if sub == nil || !sub.IsCurrentlyActive(at) || sub.Package == nil {
		return 0, models.ErrNoActiveSubscription
	}
	return sub.Package.MessagesPerDay, nil
}

func (s *Service) usage(used, limit int, at time.Time) Usage {
	_, end := s.Window(at)
	return Usage{
		Day:       day.Key(at, s.loc),
		Used:      used,
		Limit:     limit,
		Remaining: max(limit-used, 0),
		ResetsAt:  end,
	}
}

// Usage возвращает расход квоты пользователя за сутки at по подписке sub.
// Без действующей подписки возвращает ErrNoActiveSubscription.
func (s *Service) Usage(ctx context.Context, userID string, sub *models.Subscription, at time.Time) (Usage, error) {
	const op = "quota.Usage"
	limit, err := limitOf(sub, at)
	if err != nil {
		return Usage{}, fmt.Errorf("%s: %w", op, err)
	}
	from, to := s.Window(at)
	used, err := s.repo.CountMessages(ctx, userID, from, to)
	if err != nil {
		return Usage{}, fmt.Errorf("%s: %w", op, err)
	}
	return s.usage(used, limit, at), nil
}

// CanSendMessage проверяет квоту без резервирования. Исчерпанная квота возвращает
// *models.QuotaExceededError вместе с текущим расходом.
func (s *Service) CanSendMessage(ctx context.Context, user *models.User, sub *models.Subscription, at time.Time) (Usage, error) {
	const op = "quota.CanSendMessage"
	if user == nil {
		return Usage{}, fmt.Errorf("%s: %w", op, models.ErrNoActiveSubscription)
	}
	u, err := s.Usage(ctx, user.ID, sub, at)
	if err != nil {
		return u, fmt.Errorf("%s: %w", op, err)
	}
	if !u.Allowed() {
		metrics.QuotaDenials.Inc()
		return u, fmt.Errorf("%s: %w", op, &models.QuotaExceededError{Used: u.Used, Limit: u.Limit})
	}
	return u, nil
}

// Reserve сохраняет msg, если квота суток msg.CreatedAt не исчерпана.
// Проверка и вставка атомарны для пары (пользователь, сутки).
func (s *Service) Reserve(ctx context.Context, msg *models.AIMessage, sub *models.Subscription) error {
	const op = "quota.Reserve"
	limit, err := limitOf(sub, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	from, to := s.Window(msg.CreatedAt)

	err = s.repo.InsertMessageWithinQuota(ctx, msg, from, to, func(used int) error {
		if used >= limit {
			return &models.QuotaExceededError{Used: used, Limit: limit}
		}
		return nil
	})
	if errors.Is(err, models.ErrQuotaExceeded) {
		metrics.QuotaDenials.Inc()
		s.log.Info("quota exceeded", slog.String("op", op), slog.String("user_id", msg.UserID), slog.Int("limit", limit))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
