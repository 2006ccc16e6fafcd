package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

const goalColumns = `id, user_id, subscription_id, scope_id, title, description, target_date, status, progress,
	created_at, updated_at, completed_at`

func scanGoal(row scanner) (*models.UserGoal, error) {
	var (
		g           models.UserGoal
		scopeID     sql.NullInt64
		targetDate  sql.NullTime
		completedAt sql.NullTime
		status      string
	)
	err := row.Scan(&g.ID, &g.UserID, &g.SubscriptionID, &scopeID, &g.Title, &g.Description, &targetDate,
		&status, &g.Progress, &g.CreatedAt, &g.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	g.ScopeID = int64Ptr(scopeID)
	g.TargetDate = timePtr(targetDate)
	g.CompletedAt = timePtr(completedAt)
	g.Status = models.GoalStatus(status)
	return &g, nil
}

// CreateGoal сохраняет цель.
func (s *Storage) CreateGoal(ctx context.Context, g *models.UserGoal) error {
	const op = "storage.CreateGoal"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO user_goals (user_id, subscription_id, scope_id, title, description, target_date, status, progress)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		g.UserID, g.SubscriptionID, nullInt64(g.ScopeID), g.Title, g.Description, nullTime(g.TargetDate),
		string(g.Status), g.Progress,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetGoal возвращает цель пользователя.
func (s *Storage) GetGoal(ctx context.Context, userID string, id int64) (*models.UserGoal, error) {
	const op = "storage.GetGoal"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	g, err := scanGoal(s.DB.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM user_goals WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return g, nil
}

// ListGoals возвращает цели пользователя, опционально по статусу.
func (s *Storage) ListGoals(ctx context.Context, f models.GoalFilter) ([]models.UserGoal, error) {
	const op = "storage.ListGoals"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + goalColumns + ` FROM user_goals WHERE user_id = $1`
	args := []any{f.UserID}
	if f.Status != "" {
		query += ` AND status = $2`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	result := []models.UserGoal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateGoal сохраняет изменяемые поля цели.
func (s *Storage) UpdateGoal(ctx context.Context, g *models.UserGoal) error {
	const op = "storage.UpdateGoal"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.DB.QueryRowContext(ctx,
		`UPDATE user_goals SET title = $1, description = $2, target_date = $3, status = $4, progress = $5,
			completed_at = $6, updated_at = NOW()
		 WHERE id = $7 AND user_id = $8
		 RETURNING updated_at`,
		g.Title, g.Description, nullTime(g.TargetDate), string(g.Status), g.Progress, nullTime(g.CompletedAt),
		g.ID, g.UserID,
	).Scan(&g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err))
	}
	return nil
}

// DeleteGoal удаляет цель пользователя.
func (s *Storage) DeleteGoal(ctx context.Context, userID string, id int64) error {
	const op = "storage.DeleteGoal"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM user_goals WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := rowsAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GoalStats статистика целей пользователя.
func (s *Storage) GoalStats(ctx context.Context, userID string) (models.GoalStats, error) {
	const op = "storage.GoalStats"
	var st models.GoalStats
	if err := checkCtx(ctx, op); err != nil {
		return st, err
	}

	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'completed')
		 FROM user_goals WHERE user_id = $1`, userID,
	).Scan(&st.Total, &st.Active, &st.Completed)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}
	if st.Total > 0 {
		st.CompletionRate = float64(st.Completed) / float64(st.Total) * 100
	}
	return st, nil
}
