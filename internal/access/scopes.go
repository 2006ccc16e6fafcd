// Package access вычисляет эффективные access-скоупы, разрешения и доступ к функциям
// пользователя по его роли, пробному периоду и действующим подпискам.
//
// Вычисление чистое: результат зависит только от пользователя, набора подписок и момента now.
// Сервер пересчитывает его на каждый привилегированный запрос, токену он не доверяет.
package access

import "fmt"

// Access-скоупы.
const (
	ScopeAdmin           = "admin"
	ScopeUserManagement  = "user_management"
	ScopeTrialManagement = "trial_management"
	ScopeAllContent      = "all_content"
	ScopeTrial           = "trial"
	ScopeSubscriber      = "subscriber"
	ScopeCustomGoals     = "custom_goals"
	ScopePrioritySupport = "priority_support"
	ScopeProfile         = "profile"
	ScopeBasicAccess     = "basic_access"
)

// MessagesPerDayScope синтетический скоуп с дневным лимитом пакета.
func MessagesPerDayScope(n int) string {
	return fmt.Sprintf("messages_%d_per_day", n)
}

// Разрешения.
const (
	PermCreateUsers          = "create_users"
	PermDeleteUsers          = "delete_users"
	PermManageTrials         = "manage_trials"
	PermViewAllUsers         = "view_all_users"
	PermManageSubscriptions  = "manage_subscriptions"
	PermViewProfile          = "view_profile"
	PermUpdateProfile        = "update_profile"
	PermCreateGoals          = "create_goals"
	PermViewOwnSubscriptions = "view_own_subscriptions"
	PermManageOwnGoals       = "manage_own_goals"
	PermTrialAccess          = "trial_access"
	PermLimitedFeatures      = "limited_features"
	PermCreateCustomGoals    = "create_custom_goals"
	PermPrioritySupport      = "priority_support"
	PermMultipleMessages     = "multiple_messages"
)

// Функции, доступ к которым проверяет CanAccessFeature.
const (
	FeatureBasicProfile       = "basic_profile"
	FeatureViewContent        = "view_content"
	FeatureTrialFeatures      = "trial_features"
	FeatureSubscriberFeatures = "subscriber_features"
	FeatureCustomGoals        = "custom_goals"
)
