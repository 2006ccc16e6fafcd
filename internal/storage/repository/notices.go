package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// FindTrialsExpiringBetween возвращает пользователей, чей пробный период истекает в [from, to).
func (s *Storage) FindTrialsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.TrialNotice, error) {
	const op = "storage.FindTrialsExpiringBetween"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, email, username, trial_expires_at FROM users
		 WHERE trial_expires_at >= $1 AND trial_expires_at < $2
		 ORDER BY trial_expires_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []models.TrialNotice
	for rows.Next() {
		var n models.TrialNotice
		if err := rows.Scan(&n.UserID, &n.Email, &n.Username, &n.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindSubscriptionsEndingBetween возвращает действующие подписки с end_date в [from, to).
// Статус при этом не меняется.
func (s *Storage) FindSubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]models.SubscriptionNotice, error) {
	const op = "storage.FindSubscriptionsEndingBetween"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT s.id, u.email, u.username, p.name, s.end_date, p.price
		 FROM subscriptions s
		 JOIN users u ON u.id = s.user_id
		 JOIN packages p ON p.id = s.package_id
		 WHERE s.status = 'active' AND s.end_date >= $1 AND s.end_date < $2
		 ORDER BY s.end_date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []models.SubscriptionNotice
	for rows.Next() {
		var n models.SubscriptionNotice
		if err := rows.Scan(&n.SubscriptionID, &n.Email, &n.Username, &n.PackageName, &n.EndDate, &n.Price); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
