// Package message генерирует мотивационные сообщения с учетом дневной квоты
// и управляет флагами уже созданных сообщений.
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/metrics"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	"github.com/magabrotheeeer/motivation-hub/internal/services/quota"
	"github.com/magabrotheeeer/motivation-hub/internal/textgen"
)

// Repository источник пользователей, подписок, целей и сообщений.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListActiveSubscriptions(ctx context.Context, userID string, now time.Time) ([]models.Subscription, error)
	GetGoal(ctx context.Context, userID string, id int64) (*models.UserGoal, error)
	FindMessageOfType(ctx context.Context, userID string, messageType models.MessageType, from, to time.Time) (*models.AIMessage, error)
	GetMessage(ctx context.Context, userID string, id int64) (*models.AIMessage, error)
	ListMessages(ctx context.Context, f models.MessageFilter) ([]models.AIMessage, error)
	UpdateMessageFlags(ctx context.Context, userID string, id int64, flags models.MessageFlags) (*models.AIMessage, error)
}

// Quota проверяет и резервирует дневную квоту.
type Quota interface {
	CanSendMessage(ctx context.Context, user *models.User, sub *models.Subscription, at time.Time) (quota.Usage, error)
	Reserve(ctx context.Context, msg *models.AIMessage, sub *models.Subscription) error
	Window(at time.Time) (time.Time, time.Time)
}

// Generator генерирует текст по промпту.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*textgen.Result, error)
}

// GenerateRequest параметры генерации. Пустой Type выводится из остальных полей.
type GenerateRequest struct {
	Type    models.MessageType
	ScopeID *int64
	GoalID  *int64
	Custom  string
}

type Service struct {
	repo      Repository
	quota     Quota
	generator Generator
	log       *slog.Logger
	now       func() time.Time
	pick      func(n int) int
}

// New создает Service.
func New(repo Repository, q Quota, generator Generator, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		quota:     q,
		generator: generator,
		log:       log,
		now:       time.Now,
		pick:      rand.IntN,
	}
}

func inferType(req GenerateRequest) models.MessageType {
	switch {
	case req.Type != "":
		return req.Type
	case req.GoalID != nil:
		return models.MessageGoalSpecific
	case req.ScopeID != nil:
		return models.MessageScopeBased
	case strings.TrimSpace(req.Custom) != "":
		return models.MessageCustom
	default:
		return models.MessageDaily
	}
}

// primary загружает пользователя и подписку, по которой считается квота.
func (s *Service) primary(ctx context.Context, userID string, now time.Time) (*models.User, *models.Subscription, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	subs, err := s.repo.ListActiveSubscriptions(ctx, userID, now)
	if err != nil {
		return nil, nil, err
	}
	sub := access.Resolve(user, subs, now).PrimarySubscription()
	if sub == nil {
		return nil, nil, models.ErrNoActiveSubscription
	}
	return user, sub, nil
}

func selectedScope(sub *models.Subscription, id int64) (*models.Scope, error) {
	for i := range sub.SelectedScopes {
		if sub.SelectedScopes[i].ID == id {
			return &sub.SelectedScopes[i], nil
		}
	}
	return nil, models.NewValidationError("scope_id", "scope %d is not selected in your subscription", id)
}

// Generate создает сообщение. Квота проверяется до обращения к генератору
// и еще раз атомарно при сохранении. Ежедневное сообщение создается не чаще
// раза в сутки: повторный запрос получает уже сохраненное.
func (s *Service) Generate(ctx context.Context, userID string, req GenerateRequest) (*models.AIMessage, error) {
	const op = "message.Generate"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	msgType := inferType(req)
	if !msgType.Valid() {
		return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("message_type", "unknown message type %q", msgType))
	}
	now := s.now()
	user, sub, err := s.primary(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	in := textgen.PromptInput{User: user, Type: msgType, Custom: req.Custom}
	if req.ScopeID != nil {
		if in.Scope, err = selectedScope(sub, *req.ScopeID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if req.GoalID != nil {
		if in.Goal, err = s.repo.GetGoal(ctx, userID, *req.GoalID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	msg, err := s.generate(ctx, log, user, sub, in, now)
	var exists *models.DailyExistsError
	if errors.As(err, &exists) {
		return exists.Message, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

func (s *Service) generate(
	ctx context.Context,
	log *slog.Logger,
	user *models.User,
	sub *models.Subscription,
	in textgen.PromptInput,
	now time.Time,
) (*models.AIMessage, error) {
	if _, err := s.quota.CanSendMessage(ctx, user, sub, now); err != nil {
		return nil, err
	}

	prompt := textgen.BuildPrompt(in)
	res, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("textgen").Inc()
		log.Error("text generation failed", sl.Err(err))
		return nil, err
	}

	msg := &models.AIMessage{
		UserID:            user.ID,
		SubscriptionID:    sub.ID,
		MessageType:       in.Type,
		Prompt:            prompt,
		Content:           res.Content,
		AIModel:           res.Model,
		TokensUsed:        res.TokensUsed,
		GenerationSeconds: res.Elapsed.Seconds(),
		CreatedAt:         now,
	}
	if in.Scope != nil {
		id := in.Scope.ID
		msg.ScopeID = &id
	}
	if in.Goal != nil {
		id := in.Goal.ID
		msg.GoalID = &id
	}

	if err := s.quota.Reserve(ctx, msg, sub); err != nil {
		return nil, err
	}
	metrics.MessagesGenerated.WithLabelValues(string(in.Type)).Inc()
	log.Info("message generated",
		slog.Int64("message_id", msg.ID),
		slog.String("message_type", string(in.Type)),
		slog.Int("tokens", msg.TokensUsed))
	return msg, nil
}

// Daily возвращает ежедневное сообщение за текущие сутки, создавая его при первом запросе.
// Второй результат сообщает, было ли сообщение создано этим вызовом. Проверка
// существования повторяется при сохранении под блокировкой квоты, поэтому
// параллельные первые запросы получают одно и то же сообщение.
func (s *Service) Daily(ctx context.Context, userID string) (*models.AIMessage, bool, error) {
	const op = "message.Daily"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	now := s.now()
	from, to := s.quota.Window(now)
	existing, err := s.repo.FindMessageOfType(ctx, userID, models.MessageDaily, from, to)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	user, sub, err := s.primary(ctx, userID, now)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	in := textgen.PromptInput{User: user, Type: models.MessageDaily}
	if n := len(sub.SelectedScopes); n > 0 {
		in.Scope = &sub.SelectedScopes[s.pick(n)]
	}

	msg, err := s.generate(ctx, log, user, sub, in, now)
	var exists *models.DailyExistsError
	if errors.As(err, &exists) {
		log.Info("daily message created by a concurrent request", slog.Int64("message_id", exists.Message.ID))
		return exists.Message, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return msg, true, nil
}

// List возвращает сообщения пользователя по фильтру.
func (s *Service) List(ctx context.Context, f models.MessageFilter) ([]models.AIMessage, error) {
	const op = "message.List"
	if f.Type != "" && !f.Type.Valid() {
		return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("type", "unknown message type %q", f.Type))
	}
	msgs, err := s.repo.ListMessages(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msgs, nil
}

// Get возвращает сообщение пользователя.
func (s *Service) Get(ctx context.Context, userID string, id int64) (*models.AIMessage, error) {
	const op = "message.Get"
	msg, err := s.repo.GetMessage(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

// UpdateFlags меняет флаги прочтения, избранного и оценку.
func (s *Service) UpdateFlags(ctx context.Context, userID string, id int64, flags models.MessageFlags) (*models.AIMessage, error) {
	const op = "message.UpdateFlags"
	if err := flags.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msg, err := s.repo.UpdateMessageFlags(ctx, userID, id, flags)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}
