// Package subscription жизненный цикл подписки: оформление, активация, отмена и смена областей.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/metrics"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	"github.com/magabrotheeeer/motivation-hub/internal/paymentprovider"
)

// Repository описывает хранилище подписок.
type Repository interface {
	GetPackage(ctx context.Context, id int64) (*models.Package, error)
	GetScopesByIDs(ctx context.Context, ids []int64) ([]models.Scope, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error)
	ListActiveSubscriptions(ctx context.Context, userID string, now time.Time) ([]models.Subscription, error)
	// UpdateSubscriptionLocked блокирует подписку и ее владельца, применяет fn и сохраняет оба.
	UpdateSubscriptionLocked(
		ctx context.Context,
		id int64,
		fn func(sub *models.Subscription, owner *models.User) error,
	) (*models.Subscription, error)
	CreateTransaction(ctx context.Context, pt *models.PaymentTransaction) error
}

// Gateway создает платеж во внешнем шлюзе.
type Gateway interface {
	CreateCharge(ctx context.Context, in paymentprovider.ChargeRequest) (*paymentprovider.Charge, error)
}

// PaymentSettings параметры платежа, которые не зависят от подписки.
type PaymentSettings struct {
	Currency    string
	PostURL     string
	RedirectURL string
}

// CheckoutRequest запрос на оформление подписки.
type CheckoutRequest struct {
	PackageID int64
	ScopeIDs  []int64
	AutoRenew bool
}

// CheckoutResult созданная подписка и ссылка на оплату.
type CheckoutResult struct {
	Subscription *models.Subscription `json:"subscription"`
	ChargeID     string               `json:"charge_id"`
	PaymentURL   string               `json:"payment_url"`
}

// ActivationResult результат активации. RoleUpgraded отражает побочный эффект
// повышения владельца normal -> subscriber.
type ActivationResult struct {
	Subscription *models.Subscription `json:"subscription"`
	RoleUpgraded bool                 `json:"role_upgraded"`
}

type Service struct {
	repo     Repository
	gateway  Gateway
	settings PaymentSettings
	log      *slog.Logger
	now      func() time.Time
}

// New создает Service. gateway может быть nil, тогда оформление недоступно.
func New(repo Repository, gateway Gateway, settings PaymentSettings, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		gateway:  gateway,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// loadScopes возвращает активные области по идентификаторам без повторов.
func (s *Service) loadScopes(ctx context.Context, ids []int64) ([]models.Scope, error) {
	ids = slices.Compact(slices.Sorted(slices.Values(ids)))
	if len(ids) == 0 {
		return nil, nil
	}
	scopes, err := s.repo.GetScopesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(scopes) != len(ids) {
		return nil, models.NewValidationError("scope_ids", "one or more scopes do not exist")
	}
	for _, sc := range scopes {
		if !sc.IsActive {
			return nil, models.NewValidationError("scope_ids", "scope %d is not available", sc.ID)
		}
	}
	return scopes, nil
}

// Checkout создает подписку в статусе pending и платеж в шлюзе.
// Если платеж не удалось создать или сохранить, подписка переводится в failed.
func (s *Service) Checkout(ctx context.Context, user *models.User, req CheckoutRequest) (*CheckoutResult, error) {
	const op = "subscription.Checkout"
	log := s.log.With(slog.String("op", op), slog.String("user_id", user.ID), slog.Int64("package_id", req.PackageID))

	if s.gateway == nil {
		return nil, fmt.Errorf("%s: %w", op, &models.UpstreamError{Service: "payment", Err: errors.New("payment gateway is not configured")})
	}

	pkg, err := s.repo.GetPackage(ctx, req.PackageID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("package_id", "package %d does not exist", req.PackageID))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !pkg.IsActive {
		return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("package_id", "package %d is not available", req.PackageID))
	}
	scopes, err := s.loadScopes(ctx, req.ScopeIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := models.ValidateScopeCount(pkg, len(scopes)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub := &models.Subscription{
		UserID:         user.ID,
		PackageID:      pkg.ID,
		Package:        pkg,
		Status:         models.StatusPending,
		AutoRenew:      req.AutoRenew,
		SelectedScopes: scopes,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(slog.Int64("subscription_id", sub.ID))

	charge, err := s.gateway.CreateCharge(ctx, s.chargeRequest(user, sub))
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("payment").Inc()
		log.Error("failed to create charge", sl.Err(err))
		s.failCheckout(ctx, log, sub)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pt := &models.PaymentTransaction{
		UserID:         user.ID,
		SubscriptionID: sub.ID,
		ChargeID:       charge.ID,
		TransactionURL: charge.Transaction.URL,
		Amount:         pkg.Price,
		Currency:       s.settings.Currency,
		Status:         models.TxInitiated,
		CustomerEmail:  user.Email,
		RawResponse:    charge.Raw,
	}
	if err := s.repo.CreateTransaction(ctx, pt); err != nil {
		// Ссылка на оплату не выдана, поэтому списание по ней не состоится.
		log.Error("failed to save payment transaction", slog.String("charge_id", charge.ID), sl.Err(err))
		s.failCheckout(ctx, log, sub)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("checkout created", slog.String("charge_id", charge.ID))
	return &CheckoutResult{
		Subscription: sub,
		ChargeID:     charge.ID,
		PaymentURL:   charge.Transaction.URL,
	}, nil
}

// failCheckout переводит только что созданную подписку в failed, чтобы она не осталась в pending.
func (s *Service) failCheckout(ctx context.Context, log *slog.Logger, sub *models.Subscription) {
	_, err := s.repo.UpdateSubscriptionLocked(context.WithoutCancel(ctx), sub.ID,
		func(sub *models.Subscription, _ *models.User) error { return sub.MarkFailed() })
	if err != nil {
		log.Error("failed to mark subscription failed", sl.Err(err))
		return
	}
	sub.Status = models.StatusFailed
	metrics.SubscriptionTransitions.WithLabelValues("fail").Inc()
}

func (s *Service) chargeRequest(user *models.User, sub *models.Subscription) paymentprovider.ChargeRequest {
	subID := strconv.FormatInt(sub.ID, 10)
	firstName := user.FirstName
	if firstName == "" {
		firstName = user.Username
	}
	return paymentprovider.ChargeRequest{
		Amount:              paymentprovider.NewAmount(sub.Package.Price),
		Currency:            s.settings.Currency,
		ThreeDSecure:        true,
		Description:         "Subscription: " + sub.Package.Name,
		StatementDescriptor: "Motivation Hub Subscription",
		Metadata: map[string]string{
			"subscription_id": subID,
			"user_id":         user.ID,
			"package_id":      strconv.FormatInt(sub.PackageID, 10),
		},
		Reference: paymentprovider.Reference{
			Transaction: "SUB-" + subID,
			Order:       "ORD-" + subID + "-" + uuid.NewString(),
		},
		Receipt:  paymentprovider.Receipt{Email: true},
		Customer: paymentprovider.Customer{FirstName: firstName, LastName: user.LastName, Email: user.Email},
		Source:   paymentprovider.Source{ID: "src_card"},
		Post:     paymentprovider.URL{URL: s.settings.PostURL},
		Redirect: paymentprovider.URL{URL: s.settings.RedirectURL},
	}
}

// Activate активирует подписку на срок пакета.
func (s *Service) Activate(ctx context.Context, subID int64) (*ActivationResult, error) {
	const op = "subscription.Activate"
	log := s.log.With(slog.String("op", op), slog.Int64("subscription_id", subID))

	now := s.now()
	var upgraded bool
	sub, err := s.repo.UpdateSubscriptionLocked(ctx, subID, func(sub *models.Subscription, owner *models.User) error {
		var err error
		upgraded, err = sub.Activate(now, owner)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.SubscriptionTransitions.WithLabelValues("activate").Inc()
	log.Info("subscription activated", slog.Time("end_date", *sub.EndDate), slog.Bool("role_upgraded", upgraded))
	return &ActivationResult{Subscription: sub, RoleUpgraded: upgraded}, nil
}

// Cancel отменяет подписку пользователя.
func (s *Service) Cancel(ctx context.Context, userID string, subID int64) (*models.Subscription, error) {
	const op = "subscription.Cancel"

	now := s.now()
	sub, err := s.repo.UpdateSubscriptionLocked(ctx, subID, func(sub *models.Subscription, _ *models.User) error {
		if sub.UserID != userID {
			return models.ErrNotFound
		}
		return sub.Cancel(now)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.SubscriptionTransitions.WithLabelValues("cancel").Inc()
	s.log.Info("subscription cancelled", slog.String("op", op), slog.Int64("subscription_id", subID))
	return sub, nil
}

// UpdateScopes заменяет выбранные области действующей подписки.
// Лимит проверяется по пакету, прочитанному под блокировкой.
func (s *Service) UpdateScopes(ctx context.Context, userID string, subID int64, scopeIDs []int64) (*models.Subscription, error) {
	const op = "subscription.UpdateScopes"

	scopes, err := s.loadScopes(ctx, scopeIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()
	sub, err := s.repo.UpdateSubscriptionLocked(ctx, subID, func(sub *models.Subscription, _ *models.User) error {
		if sub.UserID != userID {
			return models.ErrNotFound
		}
		if !sub.IsCurrentlyActive(now) {
			return &models.TransitionError{From: sub.Status, Action: "update scopes"}
		}
		if err := models.ValidateScopeCount(sub.Package, len(scopes)); err != nil {
			return err
		}
		sub.SelectedScopes = scopes
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription scopes updated", slog.String("op", op), slog.Int64("subscription_id", subID), slog.Int("count", len(scopes)))
	return sub, nil
}

// Active возвращает действующие подписки пользователя.
func (s *Service) Active(ctx context.Context, userID string) ([]models.Subscription, error) {
	const op = "subscription.Active"
	subs, err := s.repo.ListActiveSubscriptions(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// List возвращает все подписки пользователя.
func (s *Service) List(ctx context.Context, userID string) ([]models.Subscription, error) {
	const op = "subscription.List"
	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// Get возвращает подписку пользователя. Чужая подписка считается отсутствующей.
func (s *Service) Get(ctx context.Context, userID string, subID int64) (*models.Subscription, error) {
	const op = "subscription.Get"
	sub, err := s.repo.GetSubscription(ctx, subID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.UserID != userID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return sub, nil
}
