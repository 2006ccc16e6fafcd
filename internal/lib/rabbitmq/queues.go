// Package rabbitmq содержит общие функции подключения к RabbitMQ,
// объявления очередей, публикации и потребления уведомлений.
package rabbitmq

// Exchange direct-exchange для всех уведомлений сервиса.
const Exchange = "notifications"

// Ключи маршрутизации уведомлений.
const (
	RoutingTrialEnding           = "trial.ending"
	RoutingSubscriptionEnding    = "subscription.ending"
	RoutingSubscriptionActivated = "subscription.activated"
)

// QueueConfig описывает очередь и ключ, которым она привязана к Exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues очереди, которые обслуживает отправитель писем.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.trial_ending", RoutingKey: RoutingTrialEnding},
		{QueueName: "notifications.subscription_ending", RoutingKey: RoutingSubscriptionEnding},
		{QueueName: "notifications.subscription_activated", RoutingKey: RoutingSubscriptionActivated},
	}
}
