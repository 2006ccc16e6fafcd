// Package sender собирает процесс, который читает очереди уведомлений и отправляет письма.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/motivation-hub/internal/config"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/motivation-hub/internal/services/sender"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.Delay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.New(transport, cfg.Payment.SiteURL, logger),
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	handlers := a.senderService.Handlers()
	for _, q := range rabbitmq.NotificationQueues() {
		handler, ok := handlers[q.RoutingKey]
		if !ok {
			continue
		}
		if err := rabbitmq.ConsumeMessages(ctx, a.logger, a.ch, q.QueueName, handler); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			a.close()
			return err
		}
		a.logger.Info("consumer started", slog.String("queue", q.QueueName))
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
