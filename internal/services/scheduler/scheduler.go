// Package scheduler периодически ищет заканчивающиеся пробные периоды и подписки
// и публикует уведомления в брокер. Статусы подписок он не меняет.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/lib/day"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

type Repository interface {
	FindTrialsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.TrialNotice, error)
	FindSubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]models.SubscriptionNotice, error)
}

type Publisher interface {
	Publish(routingKey string, message any) error
}

// Result количество опубликованных уведомлений за один проход.
type Result struct {
	Trials        int
	Subscriptions int
}

type Service struct {
	repo      Repository
	publisher Publisher
	loc       *time.Location
	log       *slog.Logger
	now       func() time.Time

	lastDay string
}

// New создает Service. Сутки считаются в loc.
func New(repo Repository, publisher Publisher, loc *time.Location, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, publisher: publisher, loc: loc, log: log, now: time.Now}
}

// Run выполняет проход сразу и затем на каждом тике interval, пока ctx не отменен.
// За одни календарные сутки уведомления рассылаются один раз.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	today := day.Key(s.now(), s.loc)
	if today == s.lastDay {
		return
	}
	res, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("scheduler pass failed", sl.Err(err))
		return
	}
	s.lastDay = today
	s.log.Info("scheduler pass finished",
		slog.String("day", today),
		slog.Int("trials", res.Trials),
		slog.Int("subscriptions", res.Subscriptions))
}

// RunOnce публикует уведомления о пробных периодах, истекающих сегодня,
// и подписках, заканчивающихся завтра.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	const op = "scheduler.RunOnce"
	log := s.log.With(slog.String("op", op))
	var res Result

	todayStart, todayEnd := day.Bounds(s.now(), s.loc)
	trials, err := s.repo.FindTrialsExpiringBetween(ctx, todayStart, todayEnd)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	for _, n := range trials {
		if err := s.publisher.Publish(rabbitmq.RoutingTrialEnding, n); err != nil {
			log.Error("failed to publish trial notice", slog.String("user_id", n.UserID), sl.Err(err))
			continue
		}
		res.Trials++
	}

	tomorrowStart, tomorrowEnd := day.Bounds(todayEnd, s.loc)
	subs, err := s.repo.FindSubscriptionsEndingBetween(ctx, tomorrowStart, tomorrowEnd)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	for _, n := range subs {
		if err := s.publisher.Publish(rabbitmq.RoutingSubscriptionEnding, n); err != nil {
			log.Error("failed to publish subscription notice", slog.Int64("subscription_id", n.SubscriptionID), sl.Err(err))
			continue
		}
		res.Subscriptions++
	}
	return res, nil
}
