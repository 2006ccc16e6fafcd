// Package payment обработка webhook платежного шлюза и просмотр платежей.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/metrics"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	"github.com/magabrotheeeer/motivation-hub/internal/paymentprovider"
)

// Repository описывает хранилище платежей.
type Repository interface {
	// ApplyWebhook блокирует транзакцию, подписку и владельца и вызывает fn в одной транзакции БД.
	// raw сохраняется на транзакции при любом исходе fn. Возвращает false, если charge_id неизвестен.
	ApplyWebhook(
		ctx context.Context,
		chargeID string,
		raw []byte,
		fn func(pt *models.PaymentTransaction, sub *models.Subscription, owner *models.User) (bool, error),
	) (bool, error)
	GetTransactionByChargeID(ctx context.Context, chargeID string) (*models.PaymentTransaction, error)
	ListTransactions(ctx context.Context, userID string) ([]models.PaymentTransaction, error)
}

// Gateway запрашивает состояние платежа у шлюза.
type Gateway interface {
	GetCharge(ctx context.Context, chargeID string) (*paymentprovider.Charge, error)
}

// Publisher отправляет уведомления в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

type Service struct {
	repo      Repository
	gateway   Gateway
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

// New создает Service. gateway и publisher могут быть nil.
func New(repo Repository, gateway Gateway, publisher Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// ProcessWebhook применяет событие шлюза к транзакции и подписке.
// Возвращает false для неизвестного charge_id: такие события игнорируются без изменений.
// Повторная доставка события по завершенной транзакции не меняет состояние, сохраняется только
// полезная нагрузка; возвращается true.
func (s *Service) ProcessWebhook(ctx context.Context, raw []byte) (bool, error) {
	const op = "payment.ProcessWebhook"

	charge, err := paymentprovider.DecodeCharge(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, models.NewValidationError("body", "invalid webhook payload: %v", err))
	}
	if charge.ID == "" {
		return false, fmt.Errorf("%s: %w", op, models.NewValidationError("id", "charge id is missing"))
	}
	log := s.log.With(slog.String("op", op), slog.String("charge_id", charge.ID), slog.String("status", charge.Status))

	now := s.now()
	outcome := metrics.WebhookPending
	var notice *models.SubscriptionNotice

	found, err := s.repo.ApplyWebhook(ctx, charge.ID, charge.Raw, func(pt *models.PaymentTransaction, sub *models.Subscription, owner *models.User) (bool, error) {
		// Завершенная транзакция не меняется: сохраняется только полезная нагрузка.
		if pt.Status.Terminal() {
			outcome = metrics.WebhookDuplicate
			return false, nil
		}

		switch charge.Status {
		case paymentprovider.StatusCaptured:
			outcome = metrics.WebhookCaptured
			completed := now
			pt.Status = models.TxCompleted
			pt.CompletedAt = &completed
			if pm := charge.PaymentMethod(); pm != nil {
				pt.PaymentMethod = *pm
				sub.PaymentMethod = pm
			}
			amount := pt.Amount
			sub.AmountPaid = &amount
			sub.PaymentID = charge.ID

			if sub.IsCurrentlyActive(now) {
				log.Warn("subscription already active, payment recorded without activation",
					slog.Int64("subscription_id", sub.ID))
				return true, nil
			}
			upgraded, err := sub.Activate(now, owner)
			if err != nil {
				return false, err
			}
			log.Info("subscription activated",
				slog.Int64("subscription_id", sub.ID),
				slog.Time("end_date", *sub.EndDate),
				slog.Bool("role_upgraded", upgraded))
			notice = &models.SubscriptionNotice{
				SubscriptionID: sub.ID,
				Email:          owner.Email,
				Username:       owner.Username,
				EndDate:        *sub.EndDate,
				Price:          amount,
			}
			if sub.Package != nil {
				notice.PackageName = sub.Package.Name
			}

		case paymentprovider.StatusFailed:
			outcome = metrics.WebhookFailed
			pt.Status = models.TxFailed
			pt.ErrorMessage = charge.FailureMessage()
			if sub.Status == models.StatusPending {
				if err := sub.MarkFailed(); err != nil {
					return false, err
				}
			} else {
				log.Warn("payment failed for non-pending subscription",
					slog.Int64("subscription_id", sub.ID), slog.String("subscription_status", string(sub.Status)))
			}
		default:
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(metrics.WebhookError).Inc()
		log.Error("failed to apply webhook", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		metrics.WebhookEvents.WithLabelValues(metrics.WebhookUnknown).Inc()
		log.Warn("ignoring webhook", sl.Err(models.ErrUnknownWebhookReference))
		return false, nil
	}

	metrics.WebhookEvents.WithLabelValues(outcome).Inc()
	switch outcome {
	case metrics.WebhookCaptured:
		if notice != nil {
			metrics.SubscriptionTransitions.WithLabelValues("activate").Inc()
			s.publishActivated(log, notice)
		}
	case metrics.WebhookFailed:
		metrics.SubscriptionTransitions.WithLabelValues("fail").Inc()
	}
	log.Info("webhook processed", slog.String("outcome", outcome))
	return true, nil
}

func (s *Service) publishActivated(log *slog.Logger, notice *models.SubscriptionNotice) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(rabbitmq.RoutingSubscriptionActivated, notice); err != nil {
		log.Warn("failed to publish activation notice", sl.Err(err))
	}
}

// VerifyPayment запрашивает у шлюза текущее состояние платежа пользователя.
func (s *Service) VerifyPayment(ctx context.Context, userID, chargeID string) (*paymentprovider.Charge, error) {
	const op = "payment.VerifyPayment"

	pt, err := s.repo.GetTransactionByChargeID(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pt.UserID != userID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if s.gateway == nil {
		return nil, fmt.Errorf("%s: %w", op, &models.UpstreamError{Service: "payment", Err: fmt.Errorf("payment gateway is not configured")})
	}
	charge, err := s.gateway.GetCharge(ctx, chargeID)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("payment").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return charge, nil
}

// ListTransactions возвращает платежи пользователя.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]models.PaymentTransaction, error) {
	const op = "payment.ListTransactions"
	txs, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return txs, nil
}
