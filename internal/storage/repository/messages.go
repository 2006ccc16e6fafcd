package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

const messageColumns = `id, user_id, subscription_id, scope_id, goal_id, message_type, prompt, content,
	is_read, is_favorited, rating, ai_model, tokens_used, generation_seconds, created_at`

func scanMessage(row scanner) (*models.AIMessage, error) {
	var (
		m             models.AIMessage
		scopeID, goal sql.NullInt64
		rating        sql.NullInt32
		messageType   string
	)
	err := row.Scan(&m.ID, &m.UserID, &m.SubscriptionID, &scopeID, &goal, &messageType, &m.Prompt, &m.Content,
		&m.IsRead, &m.IsFavorited, &rating, &m.AIModel, &m.TokensUsed, &m.GenerationSeconds, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.ScopeID = int64Ptr(scopeID)
	m.GoalID = int64Ptr(goal)
	m.MessageType = models.MessageType(messageType)
	if rating.Valid {
		r := int(rating.Int32)
		m.Rating = &r
	}
	return &m, nil
}

// quotaLockKey ключ advisory-блокировки квоты пользователя на календарные сутки.
func quotaLockKey(userID string, dayStart time.Time) string {
	return userID + ":" + dayStart.Format(time.DateOnly)
}

// InsertMessageWithinQuota сохраняет сообщение, если квота суток [from, to) не исчерпана.
// Подсчет и вставка выполняются в одной транзакции под pg_advisory_xact_lock на пару
// (пользователь, сутки), поэтому параллельные запросы не могут оба пройти проверку.
// check получает текущее число сообщений и возвращает ошибку, если лимит достигнут.
// Ежедневное сообщение уникально в сутках: если оно уже есть, возвращается
// *models.DailyExistsError с сохраненным сообщением.
func (s *Storage) InsertMessageWithinQuota(
	ctx context.Context,
	msg *models.AIMessage,
	from, to time.Time,
	check func(used int) error,
) error {
	const op = "storage.InsertMessageWithinQuota"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, quotaLockKey(msg.UserID, from)); err != nil {
			return err
		}
		if msg.MessageType == models.MessageDaily {
			existing, err := findMessageOfType(ctx, tx, msg.UserID, models.MessageDaily, from, to)
			switch {
			case err == nil:
				return &models.DailyExistsError{Message: existing}
			case !errors.Is(err, sql.ErrNoRows):
				return err
			}
		}
		used, err := countMessages(ctx, tx, msg.UserID, from, to)
		if err != nil {
			return err
		}
		if err := check(used); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx,
			`INSERT INTO ai_messages (user_id, subscription_id, scope_id, goal_id, message_type, prompt, content,
				ai_model, tokens_used, generation_seconds, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING id`,
			msg.UserID, msg.SubscriptionID, nullInt64(msg.ScopeID), nullInt64(msg.GoalID), string(msg.MessageType),
			msg.Prompt, msg.Content, msg.AIModel, msg.TokensUsed, msg.GenerationSeconds, msg.CreatedAt,
		).Scan(&msg.ID)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func countMessages(ctx context.Context, q querier, userID string, from, to time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_messages WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`,
		userID, from, to).Scan(&n)
	return n, err
}

// CountMessages считает сообщения пользователя с created_at в [from, to).
func (s *Storage) CountMessages(ctx context.Context, userID string, from, to time.Time) (int, error) {
	const op = "storage.CountMessages"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	n, err := countMessages(ctx, s.DB, userID, from, to)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// GetMessage возвращает сообщение пользователя.
func (s *Storage) GetMessage(ctx context.Context, userID string, id int64) (*models.AIMessage, error) {
	const op = "storage.GetMessage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	m, err := scanMessage(s.DB.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM ai_messages WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return m, nil
}

func findMessageOfType(
	ctx context.Context,
	q querier,
	userID string,
	messageType models.MessageType,
	from, to time.Time,
) (*models.AIMessage, error) {
	return scanMessage(q.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM ai_messages
		 WHERE user_id = $1 AND message_type = $2 AND created_at >= $3 AND created_at < $4
		 ORDER BY created_at DESC LIMIT 1`, userID, string(messageType), from, to))
}

// FindMessageOfType возвращает последнее сообщение данного типа с created_at в [from, to).
func (s *Storage) FindMessageOfType(
	ctx context.Context,
	userID string,
	messageType models.MessageType,
	from, to time.Time,
) (*models.AIMessage, error) {
	const op = "storage.FindMessageOfType"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	m, err := findMessageOfType(ctx, s.DB, userID, messageType, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return m, nil
}

// ListMessages возвращает сообщения по фильтру, новые первыми.
func (s *Storage) ListMessages(ctx context.Context, f models.MessageFilter) ([]models.AIMessage, error) {
	const op = "storage.ListMessages"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	where := []string{"user_id = $1"}
	args := []any{f.UserID}
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("message_type = $%d", len(args)))
	}
	if f.ScopeID != nil {
		args = append(args, *f.ScopeID)
		where = append(where, fmt.Sprintf("scope_id = $%d", len(args)))
	}
	if f.Unread {
		where = append(where, "NOT is_read")
	}
	if f.Favorites {
		where = append(where, "is_favorited")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM ai_messages WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		messageColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	result := []models.AIMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateMessageFlags меняет флаги прочтения, избранного и оценку сообщения.
func (s *Storage) UpdateMessageFlags(ctx context.Context, userID string, id int64, flags models.MessageFlags) (*models.AIMessage, error) {
	const op = "storage.UpdateMessageFlags"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var rating sql.NullInt32
	if flags.Rating != nil {
		rating = sql.NullInt32{Int32: int32(*flags.Rating), Valid: true}
	}
	m, err := scanMessage(s.DB.QueryRowContext(ctx,
		`UPDATE ai_messages SET
			is_read = COALESCE($1, is_read),
			is_favorited = COALESCE($2, is_favorited),
			rating = COALESCE($3, rating)
		 WHERE id = $4 AND user_id = $5
		 RETURNING `+messageColumns,
		flags.IsRead, flags.IsFavorited, rating, id, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return m, nil
}

// MessageStats статистика сообщений пользователя; weekStart начало семидневного окна.
func (s *Storage) MessageStats(ctx context.Context, userID string, weekStart time.Time) (models.MessageStats, error) {
	const op = "storage.MessageStats"
	var st models.MessageStats
	if err := checkCtx(ctx, op); err != nil {
		return st, err
	}

	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE NOT is_read),
			COUNT(*) FILTER (WHERE is_favorited),
			COUNT(*) FILTER (WHERE created_at >= $2)
		 FROM ai_messages WHERE user_id = $1`, userID, weekStart,
	).Scan(&st.Total, &st.Unread, &st.Favorited, &st.ThisWeek)
	if err != nil {
		return st, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}
