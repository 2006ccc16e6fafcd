// Package models содержит доменные структуры сервиса: пользователей, каталог,
// подписки, платежи, цели и AI-сообщения, а также переходы их состояний.
package models

import (
	"math"
	"strings"
	"time"
)

// Role роль пользователя.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSubscriber Role = "subscriber"
	RoleNormal     Role = "normal"
)

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	Role           Role       `json:"role"`
	TrialStartedAt *time.Time `json:"trial_started_at,omitempty"`
	TrialExpiresAt *time.Time `json:"trial_expires_at,omitempty"`
	HasUsedTrial   bool       `json:"has_used_trial"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// FullName возвращает имя и фамилию, если они заданы.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasActiveTrial возвращает true, если пробный период еще не истек.
func (u *User) HasActiveTrial(now time.Time) bool {
	return u.TrialExpiresAt != nil && now.Before(*u.TrialExpiresAt)
}

// TrialRemainingDays возвращает количество оставшихся дней пробного периода (с округлением вверх).
func (u *User) TrialRemainingDays(now time.Time) int {
	if !u.HasActiveTrial(now) {
		return 0
	}
	return int(math.Ceil(u.TrialExpiresAt.Sub(now).Hours() / 24))
}

// StartTrial запускает пробный период. Пробный период выдается ровно один раз.
func (u *User) StartTrial(now time.Time, days int) error {
	if u.HasUsedTrial {
		return ErrTrialAlreadyUsed
	}
	if days <= 0 {
		return NewValidationError("days", "must be positive")
	}
	started := now
	expires := now.AddDate(0, 0, days)
	u.TrialStartedAt = &started
	u.TrialExpiresAt = &expires
	u.HasUsedTrial = true
	return nil
}

// ExtendTrial продлевает пробный период на days дней от текущего окончания
// (или от now, если период уже истек).
func (u *User) ExtendTrial(now time.Time, days int) error {
	if !u.HasUsedTrial || u.TrialExpiresAt == nil {
		return NewValidationError("user_id", "user has no trial to extend")
	}
	if days <= 0 {
		return NewValidationError("days", "must be positive")
	}
	base := *u.TrialExpiresAt
	if base.Before(now) {
		base = now
	}
	expires := base.AddDate(0, 0, days)
	u.TrialExpiresAt = &expires
	return nil
}

// CancelTrial завершает пробный период немедленно. Флаг HasUsedTrial не сбрасывается.
func (u *User) CancelTrial(now time.Time) error {
	if !u.HasActiveTrial(now) {
		return NewValidationError("user_id", "user has no active trial")
	}
	expires := now
	u.TrialExpiresAt = &expires
	return nil
}

// Downgrade переводит подписчика обратно в обычного пользователя (только администратором).
func (u *User) Downgrade() error {
	if u.Role != RoleSubscriber {
		return NewValidationError("role", "only subscribers can be downgraded, current role is %q", u.Role)
	}
	u.Role = RoleNormal
	return nil
}
