package models

import "time"

// GoalStatus статус пользовательской цели.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalArchived  GoalStatus = "archived"
)

// Valid сообщает, известен ли статус.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalPaused, GoalArchived:
		return true
	}
	return false
}

// UserGoal персональная цель пользователя в рамках подписки.
type UserGoal struct {
	ID             int64      `json:"id"`
	UserID         string     `json:"user_id"`
	SubscriptionID int64      `json:"subscription_id"`
	ScopeID        *int64     `json:"scope_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	TargetDate     *time.Time `json:"target_date,omitempty"`
	Status         GoalStatus `json:"status"`
	Progress       int        `json:"progress"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// SetProgress обновляет прогресс. Значение 100 завершает цель.
func (g *UserGoal) SetProgress(progress int, now time.Time) error {
	if progress < 0 || progress > 100 {
		return NewValidationError("progress", "must be between 0 and 100, got %d", progress)
	}
	g.Progress = progress
	if progress == 100 {
		g.Complete(now)
	}
	return nil
}

// Complete завершает цель.
func (g *UserGoal) Complete(now time.Time) {
	done := now
	g.Status = GoalCompleted
	g.Progress = 100
	g.CompletedAt = &done
}

// GoalFilter параметры выборки целей.
type GoalFilter struct {
	UserID string
	Status GoalStatus
}
