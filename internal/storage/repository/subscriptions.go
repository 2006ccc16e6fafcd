package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

const subscriptionSelect = `SELECT s.id, s.user_id, s.package_id, s.status, s.start_date, s.end_date, s.auto_renew,
	s.payment_id, s.payment_method, s.amount_paid, s.cancelled_at, s.version, s.created_at, s.updated_at,
	p.id, p.name, p.description, p.price, p.duration, p.duration_days, p.max_scopes, p.messages_per_day,
	p.custom_goals_enabled, p.priority_support, p.is_active, p.is_featured, p.display_order,
	p.created_at, p.updated_at
FROM subscriptions s
JOIN packages p ON p.id = s.package_id`

func scanSubscription(row scanner) (*models.Subscription, error) {
	var (
		sub           models.Subscription
		pkg           models.Package
		status        string
		duration      string
		start, end    sql.NullTime
		cancelledAt   sql.NullTime
		paymentMethod sql.NullString
		amountPaid    decimal.NullDecimal
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.PackageID, &status, &start, &end, &sub.AutoRenew,
		&sub.PaymentID, &paymentMethod, &amountPaid, &cancelledAt, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt,
		&pkg.ID, &pkg.Name, &pkg.Description, &pkg.Price, &duration, &pkg.DurationDays, &pkg.MaxScopes,
		&pkg.MessagesPerDay, &pkg.CustomGoalsEnabled, &pkg.PrioritySupport, &pkg.IsActive, &pkg.IsFeatured,
		&pkg.DisplayOrder, &pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatus(status)
	sub.StartDate = timePtr(start)
	sub.EndDate = timePtr(end)
	sub.CancelledAt = timePtr(cancelledAt)
	if paymentMethod.Valid {
		sub.PaymentMethod = &paymentMethod.String
	}
	if amountPaid.Valid {
		sub.AmountPaid = &amountPaid.Decimal
	}
	pkg.Duration = models.DurationLabel(duration)
	sub.Package = &pkg
	sub.SelectedScopes = []models.Scope{}
	return &sub, nil
}

func querySubscriptions(ctx context.Context, q querier, query string, args ...any) ([]models.Subscription, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := []models.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Соединение транзакции должно освободиться до запроса областей.
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := attachScopes(ctx, q, result); err != nil {
		return nil, err
	}
	return result, nil
}

// attachScopes загружает выбранные области для набора подписок одним запросом.
func attachScopes(ctx context.Context, q querier, subs []models.Subscription) error {
	if len(subs) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(subs))
	index := make(map[int64]int, len(subs))
	for i, s := range subs {
		ids = append(ids, s.ID)
		index[s.ID] = i
	}

	rows, err := q.QueryContext(ctx,
		`SELECT ss.subscription_id, sc.id, sc.name, sc.description, sc.category, sc.icon, sc.is_active, sc.created_at
		 FROM subscription_scopes ss
		 JOIN scopes sc ON sc.id = ss.scope_id
		 WHERE ss.subscription_id = ANY($1)
		 ORDER BY sc.id`, ids)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			subID    int64
			sc       models.Scope
			category string
		)
		if err := rows.Scan(&subID, &sc.ID, &sc.Name, &sc.Description, &category, &sc.Icon, &sc.IsActive, &sc.CreatedAt); err != nil {
			return err
		}
		sc.Category = models.ScopeCategory(category)
		i := index[subID]
		subs[i].SelectedScopes = append(subs[i].SelectedScopes, sc)
	}
	return rows.Err()
}

func replaceScopes(ctx context.Context, q querier, subID int64, scopeIDs []int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM subscription_scopes WHERE subscription_id = $1`, subID); err != nil {
		return err
	}
	if len(scopeIDs) == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO subscription_scopes (subscription_id, scope_id)
		 SELECT $1, UNNEST($2::BIGINT[])
		 ON CONFLICT DO NOTHING`, subID, scopeIDs)
	return err
}

// CreateSubscription сохраняет новую подписку вместе с выбранными областями.
func (s *Storage) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.CreateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO subscriptions (user_id, package_id, status, start_date, end_date, auto_renew, payment_method)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, version, created_at, updated_at`,
			sub.UserID, sub.PackageID, string(sub.Status), nullTime(sub.StartDate), nullTime(sub.EndDate),
			sub.AutoRenew, sub.PaymentMethod,
		).Scan(&sub.ID, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt)
		if err != nil {
			return err
		}
		return replaceScopes(ctx, tx, sub.ID, sub.ScopeIDs())
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSubscription возвращает подписку с пакетом и выбранными областями.
func (s *Storage) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	subs, err := querySubscriptions(ctx, s.DB, subscriptionSelect+` WHERE s.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return &subs[0], nil
}

// ListSubscriptions возвращает все подписки пользователя, новые первыми.
func (s *Storage) ListSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	subs, err := querySubscriptions(ctx, s.DB,
		subscriptionSelect+` WHERE s.user_id = $1 ORDER BY s.created_at DESC, s.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// ListActiveSubscriptions возвращает действующие на now подписки: status active и end_date > now.
// Статус expired в базу не записывается, срок проверяется здесь.
func (s *Storage) ListActiveSubscriptions(ctx context.Context, userID string, now time.Time) ([]models.Subscription, error) {
	const op = "storage.ListActiveSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	subs, err := querySubscriptions(ctx, s.DB,
		subscriptionSelect+` WHERE s.user_id = $1 AND s.status = 'active' AND s.end_date > $2
		ORDER BY s.end_date DESC`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// UpdateSubscriptionLocked блокирует подписку и ее владельца (SELECT ... FOR UPDATE),
// передает их в fn и сохраняет результат в той же транзакции. Пакет читается заново,
// поэтому fn видит актуальные лимиты. Каждая запись увеличивает version.
func (s *Storage) UpdateSubscriptionLocked(
	ctx context.Context,
	id int64,
	fn func(sub *models.Subscription, owner *models.User) error,
) (*models.Subscription, error) {
	const op = "storage.UpdateSubscriptionLocked"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var result *models.Subscription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sub, owner, err := lockSubscription(ctx, tx, id)
		if err != nil {
			return err
		}
		before := sub.ScopeIDs()
		if err := fn(sub, owner); err != nil {
			return err
		}
		if err := saveSubscription(ctx, tx, sub, before); err != nil {
			return err
		}
		if err := saveUserState(ctx, tx, owner); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func lockSubscription(ctx context.Context, tx *sql.Tx, id int64) (*models.Subscription, *models.User, error) {
	subs, err := querySubscriptions(ctx, tx, subscriptionSelect+` WHERE s.id = $1 FOR UPDATE OF s`, id)
	if err != nil {
		return nil, nil, err
	}
	if len(subs) == 0 {
		return nil, nil, models.ErrNotFound
	}
	sub := &subs[0]
	owner, err := lockUser(ctx, tx, sub.UserID)
	if err != nil {
		return nil, nil, err
	}
	return sub, owner, nil
}

func saveSubscription(ctx context.Context, tx *sql.Tx, sub *models.Subscription, scopesBefore []int64) error {
	err := tx.QueryRowContext(ctx,
		`UPDATE subscriptions SET status = $1, start_date = $2, end_date = $3, auto_renew = $4,
			payment_id = $5, payment_method = $6, amount_paid = $7, cancelled_at = $8,
			version = version + 1, updated_at = NOW()
		 WHERE id = $9
		 RETURNING version, updated_at`,
		string(sub.Status), nullTime(sub.StartDate), nullTime(sub.EndDate), sub.AutoRenew,
		sub.PaymentID, sub.PaymentMethod, sub.AmountPaid, nullTime(sub.CancelledAt), sub.ID,
	).Scan(&sub.Version, &sub.UpdatedAt)
	if err != nil {
		return err
	}

	after := sub.ScopeIDs()
	slices.Sort(scopesBefore)
	slices.Sort(after)
	if !slices.Equal(scopesBefore, after) {
		return replaceScopes(ctx, tx, sub.ID, after)
	}
	return nil
}
