package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

const transactionColumns = `id, user_id, subscription_id, charge_id, transaction_url, amount, currency, status,
	payment_method, customer_email, customer_phone, raw_response, error_message, created_at, updated_at, completed_at`

func scanTransaction(row scanner) (*models.PaymentTransaction, error) {
	var (
		pt          models.PaymentTransaction
		status      string
		raw         []byte
		completedAt sql.NullTime
	)
	err := row.Scan(&pt.ID, &pt.UserID, &pt.SubscriptionID, &pt.ChargeID, &pt.TransactionURL, &pt.Amount,
		&pt.Currency, &status, &pt.PaymentMethod, &pt.CustomerEmail, &pt.CustomerPhone, &raw,
		&pt.ErrorMessage, &pt.CreatedAt, &pt.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	pt.Status = models.TransactionStatus(status)
	pt.RawResponse = raw
	pt.CompletedAt = timePtr(completedAt)
	return &pt, nil
}

// rawPayload хранит полезную нагрузку шлюза байт в байт; пустая нагрузка пишется как NULL.
func rawPayload(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// CreateTransaction сохраняет платежную транзакцию, созданную при оформлении подписки.
func (s *Storage) CreateTransaction(ctx context.Context, pt *models.PaymentTransaction) error {
	const op = "storage.CreateTransaction"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO payment_transactions (user_id, subscription_id, charge_id, transaction_url, amount, currency,
			status, payment_method, customer_email, customer_phone, raw_response)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at, updated_at`,
		pt.UserID, pt.SubscriptionID, pt.ChargeID, pt.TransactionURL, pt.Amount, pt.Currency,
		string(pt.Status), pt.PaymentMethod, pt.CustomerEmail, pt.CustomerPhone, rawPayload(pt.RawResponse),
	).Scan(&pt.ID, &pt.CreatedAt, &pt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetTransactionByChargeID возвращает транзакцию по идентификатору списания шлюза.
func (s *Storage) GetTransactionByChargeID(ctx context.Context, chargeID string) (*models.PaymentTransaction, error) {
	const op = "storage.GetTransactionByChargeID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	pt, err := scanTransaction(s.DB.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE charge_id = $1`, chargeID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return pt, nil
}

// ListTransactions возвращает транзакции пользователя, новые первыми.
func (s *Storage) ListTransactions(ctx context.Context, userID string) ([]models.PaymentTransaction, error) {
	const op = "storage.ListTransactions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	result := []models.PaymentTransaction{}
	for rows.Next() {
		pt, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ApplyWebhook блокирует транзакцию по charge_id, затем ее подписку и владельца, и вызывает fn.
// raw сохраняется в журнал payment_webhook_events и в raw_response транзакции при любом исходе fn.
// fn возвращает true, если нужно сохранить изменения транзакции, подписки и владельца.
// Все изменения фиксируются одной транзакцией. Неизвестный charge_id возвращает false без изменений.
func (s *Storage) ApplyWebhook(
	ctx context.Context,
	chargeID string,
	raw []byte,
	fn func(pt *models.PaymentTransaction, sub *models.Subscription, owner *models.User) (bool, error),
) (bool, error) {
	const op = "storage.ApplyWebhook"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		pt, err := scanTransaction(tx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM payment_transactions WHERE charge_id = $1 FOR UPDATE`, chargeID))
		if err != nil {
			return notFound(err)
		}
		sub, owner, err := lockSubscription(ctx, tx, pt.SubscriptionID)
		if err != nil {
			return err
		}
		scopesBefore := sub.ScopeIDs()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payment_webhook_events (transaction_id, payload) VALUES ($1, $2)`,
			pt.ID, raw); err != nil {
			return err
		}
		pt.RawResponse = raw

		write, err := fn(pt, sub, owner)
		if err != nil {
			return err
		}
		if !write {
			_, err = tx.ExecContext(ctx,
				`UPDATE payment_transactions SET raw_response = $1, updated_at = NOW() WHERE id = $2`,
				rawPayload(raw), pt.ID)
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE payment_transactions SET status = $1, payment_method = $2, raw_response = $3,
				error_message = $4, completed_at = $5, updated_at = NOW()
			 WHERE id = $6`,
			string(pt.Status), pt.PaymentMethod, rawPayload(pt.RawResponse), pt.ErrorMessage,
			nullTime(pt.CompletedAt), pt.ID)
		if err != nil {
			return err
		}
		if err := saveSubscription(ctx, tx, sub, scopesBefore); err != nil {
			return err
		}
		return saveUserState(ctx, tx, owner)
	})
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// WebhookPayloads возвращает все полезные нагрузки, полученные по charge_id, в порядке поступления.
func (s *Storage) WebhookPayloads(ctx context.Context, chargeID string) ([][]byte, error) {
	const op = "storage.WebhookPayloads"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT e.payload FROM payment_webhook_events e
		 JOIN payment_transactions t ON t.id = e.transaction_id
		 WHERE t.charge_id = $1
		 ORDER BY e.received_at, e.id`, chargeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
