package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, role,
	trial_started_at, trial_expires_at, has_used_trial, created_at`

func scanUser(row scanner) (*models.User, error) {
	var (
		u            models.User
		trialStarted sql.NullTime
		trialExpires sql.NullTime
		role         string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role,
		&trialStarted, &trialExpires, &u.HasUsedTrial, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.TrialStartedAt = timePtr(trialStarted)
	u.TrialExpiresAt = timePtr(trialExpires)
	return &u, nil
}

// CreateUser сохраняет пользователя. Пустой ID генерируется.
// Занятые username или email дают models.ErrUserExists.
func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleNormal
	}

	query := `INSERT INTO users (id, username, email, password_hash, first_name, last_name, role,
				trial_started_at, trial_expires_at, has_used_trial)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING created_at`
	err := s.DB.QueryRowContext(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role),
		nullTime(u.TrialStartedAt), nullTime(u.TrialExpiresAt), u.HasUsedTrial).Scan(&u.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("%s: %w", op, models.ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return u, nil
}

// GetUserByUsername возвращает пользователя по имени.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email без учета регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return u, nil
}

// ListUsers возвращает пользователей постранично, новые первыми.
func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const op = "storage.ListUsers"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateUserLocked блокирует строку пользователя, передает его в fn и сохраняет изменения
// роли и пробного периода. Ошибка fn откатывает транзакцию.
func (s *Storage) UpdateUserLocked(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error) {
	const op = "storage.UpdateUserLocked"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		u, err := lockUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		if err := saveUserState(ctx, tx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func lockUser(ctx context.Context, q querier, id string) (*models.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func saveUserState(ctx context.Context, q querier, u *models.User) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET role = $1, trial_started_at = $2, trial_expires_at = $3, has_used_trial = $4
		 WHERE id = $5`,
		string(u.Role), nullTime(u.TrialStartedAt), nullTime(u.TrialExpiresAt), u.HasUsedTrial, u.ID)
	return err
}
