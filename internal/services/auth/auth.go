// Package auth регистрация, вход, пробный период и административные операции над пользователями.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/password"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// UserRepository описывает хранилище пользователей.
type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	// UpdateUserLocked блокирует строку пользователя, применяет fn и сохраняет результат.
	UpdateUserLocked(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error)
}

// TokenMaker выпускает JWT.
type TokenMaker interface {
	GenerateToken(userID, username, role string) (string, error)
	TTL() time.Duration
}

// AccessResolver пересчитывает права пользователя.
type AccessResolver interface {
	Resolve(ctx context.Context, userID string) (*access.Capabilities, error)
}

// Действия администратора над пробным периодом.
const (
	TrialStart  = "start"
	TrialExtend = "extend"
	TrialCancel = "cancel"
)

// RegisterRequest данные для регистрации.
type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	// StartTrial запускать ли пробный период сразу; nil означает да.
	StartTrial *bool
}

// LoginResult выданный токен и пользователь.
type LoginResult struct {
	Token     string       `json:"access_token"`
	ExpiresIn int          `json:"expires_in"`
	User      *models.User `json:"user"`
}

// Service отвечает за учетные записи пользователей.
type Service struct {
	users     UserRepository
	tokens    TokenMaker
	resolver  AccessResolver
	trialDays int
	log       *slog.Logger
	now       func() time.Time
}

// New создает Service. trialDays длительность пробного периода по умолчанию.
func New(users UserRepository, tokens TokenMaker, resolver AccessResolver, trialDays int, log *slog.Logger) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		resolver:  resolver,
		trialDays: trialDays,
		log:       log,
		now:       time.Now,
	}
}

// Register создает пользователя с ролью normal и, если не отказались, сразу запускает пробный период.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	const op = "auth.Register"

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashed,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleNormal,
	}
	if req.StartTrial == nil || *req.StartTrial {
		if err := user.StartTrial(s.now(), s.trialDays); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user registered", slog.String("op", op), slog.String("user_id", user.ID),
		slog.Bool("trial_started", user.HasUsedTrial))
	return user, nil
}

// EnsureAdmin создает администратора с указанным логином, если такого пользователя еще нет.
// Существующая учетная запись не меняется.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, rawPassword string) error {
	const op = "auth.EnsureAdmin"

	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	admin := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
	}
	if err := s.users.CreateUser(ctx, admin); err != nil && !errors.Is(err, models.ErrUserExists) {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("admin account ensured", slog.String("op", op), slog.String("username", username))
	return nil
}

// Login проверяет пароль и выпускает короткоживущий токен.
// Токен несет только личность и роль, права пересчитываются на каждом запросе.
func (s *Service) Login(ctx context.Context, login, rawPassword string) (*LoginResult, error) {
	const op = "auth.Login"

	user, err := s.findByLogin(ctx, login)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}
	token, err := s.tokens.GenerateToken(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &LoginResult{
		Token:     token,
		ExpiresIn: int(s.tokens.TTL().Seconds()),
		User:      user,
	}, nil
}

// findByLogin ищет пользователя по имени, а если login похож на адрес почты, то и по email.
func (s *Service) findByLogin(ctx context.Context, login string) (*models.User, error) {
	user, err := s.users.GetUserByUsername(ctx, login)
	if errors.Is(err, models.ErrNotFound) && strings.Contains(login, "@") {
		return s.users.GetUserByEmail(ctx, login)
	}
	return user, err
}

// Me возвращает пользователя.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	const op = "auth.Me"
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// Access возвращает сводку прав пользователя на текущий момент.
func (s *Service) Access(ctx context.Context, userID string) (access.Summary, error) {
	const op = "auth.Access"
	caps, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return access.Summary{}, fmt.Errorf("%s: %w", op, err)
	}
	return caps.Summary(), nil
}

// Feature сообщает, доступна ли функция, и как получить к ней доступ.
func (s *Service) Feature(ctx context.Context, userID, feature string) (access.FeatureInfo, error) {
	const op = "auth.Feature"
	caps, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return access.FeatureInfo{}, fmt.Errorf("%s: %w", op, err)
	}
	return caps.FeatureAccessInfo(feature), nil
}

// StartTrial запускает пробный период пользователя. Повторный запуск запрещен.
func (s *Service) StartTrial(ctx context.Context, userID string) (*models.User, error) {
	const op = "auth.StartTrial"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	now := s.now()
	user, err := s.users.UpdateUserLocked(ctx, userID, func(u *models.User) error {
		return u.StartTrial(now, s.trialDays)
	})
	if err != nil {
		log.Info("trial refused", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("trial started", slog.Time("expires_at", *user.TrialExpiresAt))
	return user, nil
}

// ManageTrial выполняет действие администратора над пробным периодом.
// days <= 0 означает длительность по умолчанию.
func (s *Service) ManageTrial(ctx context.Context, userID, action string, days int) (*models.User, error) {
	const op = "auth.ManageTrial"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID), slog.String("action", action))

	if days <= 0 {
		days = s.trialDays
	}
	now := s.now()

	var apply func(u *models.User) error
	switch action {
	case TrialStart:
		apply = func(u *models.User) error { return u.StartTrial(now, days) }
	case TrialExtend:
		apply = func(u *models.User) error { return u.ExtendTrial(now, days) }
	case TrialCancel:
		apply = func(u *models.User) error { return u.CancelTrial(now) }
	default:
		return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("action", "unknown action %q", action))
	}

	user, err := s.users.UpdateUserLocked(ctx, userID, apply)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("trial updated", slog.Int("days", days))
	return user, nil
}

// ListUsers возвращает пользователей постранично.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const op = "auth.ListUsers"
	users, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// Downgrade переводит подписчика обратно в normal. Выполняется только администратором.
func (s *Service) Downgrade(ctx context.Context, userID string) (*models.User, error) {
	const op = "auth.Downgrade"
	user, err := s.users.UpdateUserLocked(ctx, userID, func(u *models.User) error {
		return u.Downgrade()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user downgraded", slog.String("op", op), slog.String("user_id", userID))
	return user, nil
}
