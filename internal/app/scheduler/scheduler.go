// Package scheduler собирает процесс планировщика уведомлений об окончании
// пробного периода и подписок.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/motivation-hub/internal/config"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	schedulerservice "github.com/magabrotheeeer/motivation-hub/internal/services/scheduler"
	"github.com/magabrotheeeer/motivation-hub/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	service  *schedulerservice.Service
	interval time.Duration
	db       *repository.Storage
	conn     *amqp.Connection
	pub      *rabbitmq.Publisher
	logger   *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range 10 {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	loc, err := cfg.Quota.Location()
	if err != nil {
		return nil, fmt.Errorf("quota timezone: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.Delay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		_ = db.Close()
		closeResources(ch, conn, logger)
		return nil, err
	}

	pub := rabbitmq.NewPublisher(ch)
	return &App{
		service:  schedulerservice.New(db, pub, loc, logger),
		interval: cfg.Scheduler.Interval,
		db:       db,
		conn:     conn,
		pub:      pub,
		logger:   logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.service.Run(ctx, a.interval)

	a.logger.Info("shutting down scheduler service")

	if err := a.pub.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	closeResources(nil, a.conn, a.logger)
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return nil
}
