package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus хранимый статус подписки.
type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "pending"
	StatusActive    SubscriptionStatus = "active"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusFailed    SubscriptionStatus = "failed"
)

// Subscription связь пользователя с пакетом.
// Status хранится, но "активность" всегда вычисляется через IsCurrentlyActive:
// статус active с истекшим EndDate в базе не переписывается.
type Subscription struct {
	ID             int64              `json:"id"`
	UserID         string             `json:"user_id"`
	PackageID      int64              `json:"package_id"`
	Package        *Package           `json:"package,omitempty"`
	Status         SubscriptionStatus `json:"status"`
	StartDate      *time.Time         `json:"start_date,omitempty"`
	EndDate        *time.Time         `json:"end_date,omitempty"`
	AutoRenew      bool               `json:"auto_renew"`
	PaymentID      string             `json:"payment_id,omitempty"`
	PaymentMethod  *string            `json:"payment_method,omitempty"`
	AmountPaid     *decimal.Decimal   `json:"amount_paid,omitempty"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	SelectedScopes []Scope            `json:"selected_scopes"`
	Version        int                `json:"version"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// IsCurrentlyActive истинно только для статуса active с EndDate строго в будущем.
func (s *Subscription) IsCurrentlyActive(now time.Time) bool {
	return s.Status == StatusActive && s.EndDate != nil && s.EndDate.After(now)
}

// DaysRemaining количество целых дней до окончания для активной подписки.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if !s.IsCurrentlyActive(now) {
		return 0
	}
	return int(s.EndDate.Sub(now).Hours() / 24)
}

// ScopeIDs возвращает идентификаторы выбранных областей.
func (s *Subscription) ScopeIDs() []int64 {
	ids := make([]int64, 0, len(s.SelectedScopes))
	for _, sc := range s.SelectedScopes {
		ids = append(ids, sc.ID)
	}
	return ids
}

// Activate переводит подписку в active на срок пакета и повышает владельца
// normal -> subscriber. Возвращает true, если роль была повышена.
// Повышение роли одностороннее: истечение или отмена подписки его не откатывают.
func (s *Subscription) Activate(now time.Time, owner *User) (bool, error) {
	if s.IsCurrentlyActive(now) {
		return false, &TransitionError{From: s.Status, Action: "activate"}
	}
	if s.Package == nil || s.Package.DurationDays <= 0 {
		return false, NewValidationError("package", "package duration must be positive")
	}
	start := now
	end := now.AddDate(0, 0, s.Package.DurationDays)
	s.Status = StatusActive
	s.StartDate = &start
	s.EndDate = &end
	s.CancelledAt = nil

	if owner != nil && owner.Role == RoleNormal {
		owner.Role = RoleSubscriber
		return true, nil
	}
	return false, nil
}

// Cancel отменяет подписку. Допустимо только из pending или действующей active.
func (s *Subscription) Cancel(now time.Time) error {
	switch {
	case s.Status == StatusPending, s.IsCurrentlyActive(now):
	default:
		return &TransitionError{From: s.Status, Action: "cancel"}
	}
	cancelled := now
	s.Status = StatusCancelled
	s.CancelledAt = &cancelled
	s.AutoRenew = false
	return nil
}

// MarkFailed фиксирует неуспешную оплату. Допустимо только из pending.
func (s *Subscription) MarkFailed() error {
	if s.Status != StatusPending {
		return &TransitionError{From: s.Status, Action: "fail"}
	}
	s.Status = StatusFailed
	return nil
}

// ValidateScopeCount проверяет количество выбранных областей против лимита пакета.
func ValidateScopeCount(pkg *Package, count int) error {
	if pkg == nil {
		return NewValidationError("package", "package is required")
	}
	if count > pkg.MaxScopes {
		return NewValidationError("scope_ids", "you can select at most %d scopes for this package, got %d", pkg.MaxScopes, count)
	}
	return nil
}

// SubscriptionNotice уведомление об активации или скором окончании подписки.
type SubscriptionNotice struct {
	SubscriptionID int64           `json:"subscription_id"`
	Email          string          `json:"email"`
	Username       string          `json:"username"`
	PackageName    string          `json:"package_name"`
	EndDate        time.Time       `json:"end_date"`
	Price          decimal.Decimal `json:"price"`
}

// TrialNotice строка для планировщика уведомлений об окончании пробного периода.
type TrialNotice struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}
