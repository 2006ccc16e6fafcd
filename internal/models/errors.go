package models

import (
	"errors"
	"fmt"
)

// Базовые ошибки предметной области. Слой HTTP сопоставляет их со статусами через errors.Is.
var (
	ErrNotFound                = errors.New("not found")
	ErrValidation              = errors.New("validation failed")
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrNoActiveSubscription    = errors.New("no active subscription")
	ErrQuotaExceeded           = errors.New("daily message limit reached")
	ErrUpstream                = errors.New("upstream service error")
	ErrUnknownWebhookReference = errors.New("unknown webhook reference")
	ErrTrialAlreadyUsed        = errors.New("free trial has already been used")
	ErrForbidden               = errors.New("forbidden")
	ErrUserExists              = errors.New("user already exists")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrPackageInUse            = errors.New("package is referenced by subscriptions")
	ErrDailyMessageExists      = errors.New("daily message already exists")
)

// ValidationError описывает нарушенное ограничение во входных данных.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError создает ValidationError с форматированным сообщением.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// QuotaExceededError несет счетчики, чтобы клиент мог показать лимит.
type QuotaExceededError struct {
	Used  int
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily message limit reached (%d of %d)", e.Used, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// DailyExistsError несет ежедневное сообщение, уже сохраненное за те же сутки.
type DailyExistsError struct {
	Message *AIMessage
}

func (e *DailyExistsError) Error() string {
	return fmt.Sprintf("daily message already exists (id %d)", e.Message.ID)
}

func (e *DailyExistsError) Unwrap() error { return ErrDailyMessageExists }

// TransitionError возникает при попытке перехода подписки из неподходящего статуса.
type TransitionError struct {
	From   SubscriptionStatus
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s subscription in status %q", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// UpstreamError оборачивает ошибку внешнего сервиса (генерация текста, платежный шлюз).
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }
