package models

import "time"

// MessageType тип сгенерированного сообщения.
type MessageType string

const (
	MessageDaily        MessageType = "daily"
	MessageGoalSpecific MessageType = "goal_specific"
	MessageScopeBased   MessageType = "scope_based"
	MessageCustom       MessageType = "custom"
)

// Valid сообщает, известен ли тип.
func (t MessageType) Valid() bool {
	switch t {
	case MessageDaily, MessageGoalSpecific, MessageScopeBased, MessageCustom:
		return true
	}
	return false
}

// AIMessage мотивационное сообщение, сгенерированное для пользователя.
// Каждая запись расходует одну единицу дневной квоты.
type AIMessage struct {
	ID                int64       `json:"id"`
	UserID            string      `json:"user_id"`
	SubscriptionID    int64       `json:"subscription_id"`
	ScopeID           *int64      `json:"scope_id,omitempty"`
	GoalID            *int64      `json:"goal_id,omitempty"`
	MessageType       MessageType `json:"message_type"`
	Prompt            string      `json:"-"`
	Content           string      `json:"content"`
	IsRead            bool        `json:"is_read"`
	IsFavorited       bool        `json:"is_favorited"`
	Rating            *int        `json:"rating,omitempty"`
	AIModel           string      `json:"ai_model"`
	TokensUsed        int         `json:"tokens_used"`
	GenerationSeconds float64     `json:"generation_seconds"`
	CreatedAt         time.Time   `json:"created_at"`
}

// MessageFilter параметры выборки сообщений.
type MessageFilter struct {
	UserID    string
	Type      MessageType
	ScopeID   *int64
	Unread    bool
	Favorites bool
	Limit     int
	Offset    int
}

// MessageFlags частичное обновление флагов сообщения. nil означает "не менять".
type MessageFlags struct {
	IsRead      *bool
	IsFavorited *bool
	Rating      *int
}

// Validate проверяет диапазон оценки.
func (f MessageFlags) Validate() error {
	if f.Rating != nil && (*f.Rating < 1 || *f.Rating > 5) {
		return NewValidationError("rating", "must be between 1 and 5, got %d", *f.Rating)
	}
	return nil
}

// DashboardStats агрегированная статистика для личного кабинета.
type DashboardStats struct {
	Goals        GoalStats         `json:"goals"`
	Messages     MessageStats      `json:"messages"`
	Subscription *SubscriptionInfo `json:"subscription,omitempty"`
}

// GoalStats статистика целей.
type GoalStats struct {
	Total          int     `json:"total"`
	Active         int     `json:"active"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// MessageStats статистика сообщений.
type MessageStats struct {
	Total     int `json:"total"`
	Unread    int `json:"unread"`
	Favorited int `json:"favorited"`
	ThisWeek  int `json:"this_week"`
}

// SubscriptionInfo краткая информация о действующей подписке.
type SubscriptionInfo struct {
	PackageName   string    `json:"package_name"`
	DaysRemaining int       `json:"days_remaining"`
	EndDate       time.Time `json:"end_date"`
	MessagesToday int       `json:"messages_today"`
	MessagesLimit int       `json:"messages_limit"`
}
