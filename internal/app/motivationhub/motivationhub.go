package motivationhub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/cache"
	"github.com/magabrotheeeer/motivation-hub/internal/config"
	authhandler "github.com/magabrotheeeer/motivation-hub/internal/http/handlers/auth"
	cataloghandler "github.com/magabrotheeeer/motivation-hub/internal/http/handlers/catalog"
	dashboardhandler "github.com/magabrotheeeer/motivation-hub/internal/http/handlers/dashboard"
	goalhandler "github.com/magabrotheeeer/motivation-hub/internal/http/handlers/goal"
	"github.com/magabrotheeeer/motivation-hub/internal/http/handlers/health"
	messagehandler "github.com/magabrotheeeer/motivation-hub/internal/http/handlers/message"
	paymenthandler "github.com/magabrotheeeer/motivation-hub/internal/http/handlers/payment"
	subscriptionhandler "github.com/magabrotheeeer/motivation-hub/internal/http/handlers/subscription"
	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/jwt"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/migrations"
	"github.com/magabrotheeeer/motivation-hub/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/motivation-hub/internal/services/auth"
	catalogservice "github.com/magabrotheeeer/motivation-hub/internal/services/catalog"
	dashboardservice "github.com/magabrotheeeer/motivation-hub/internal/services/dashboard"
	goalservice "github.com/magabrotheeeer/motivation-hub/internal/services/goal"
	messageservice "github.com/magabrotheeeer/motivation-hub/internal/services/message"
	paymentservice "github.com/magabrotheeeer/motivation-hub/internal/services/payment"
	"github.com/magabrotheeeer/motivation-hub/internal/services/quota"
	subscriptionservice "github.com/magabrotheeeer/motivation-hub/internal/services/subscription"
	"github.com/magabrotheeeer/motivation-hub/internal/storage/repository"
	"github.com/magabrotheeeer/motivation-hub/internal/textgen"
)

const limiterIdle = 10 * time.Minute

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	pub    *rabbitmq.Publisher
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	loc, err := cfg.Quota.Location()
	if err != nil {
		return nil, fmt.Errorf("quota timezone: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}

	// Уведомления об активации отправляются по возможности: без брокера API продолжает работать.
	var publisher paymentservice.Publisher
	if conn, ch, err := connectBroker(cfg.RabbitMQ); err != nil {
		logger.Warn("RabbitMQ is unavailable, activation notices are disabled", sl.Err(err))
	} else {
		app.conn = conn
		app.pub = rabbitmq.NewPublisher(ch)
		publisher = app.pub
	}

	var (
		chargeGateway subscriptionservice.Gateway
		verifyGateway paymentservice.Gateway
	)
	if cfg.Payment.Enabled() {
		client := paymentprovider.NewClient(cfg.Payment)
		chargeGateway = client
		verifyGateway = client
	} else {
		logger.Warn("payment gateway is not configured, checkout is disabled")
	}

	var generator messageservice.Generator
	if cfg.AI.Enabled() {
		generator = textgen.NewClient(cfg.AI)
	} else {
		logger.Warn("text generation is not configured, message generation is disabled")
	}

	tokens := jwt.NewMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	resolver := access.NewResolver(db)
	quotaService := quota.New(db, loc, logger)

	authService := authservice.New(db, tokens, resolver, cfg.Trial.DefaultDays, logger)
	if cfg.Admin.Enabled() {
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			app.close()
			return nil, err
		}
	}
	catalogService := catalogservice.New(db, cacheRedis, cfg.CacheTTL, logger)
	subscriptionService := subscriptionservice.New(db, chargeGateway, subscriptionservice.PaymentSettings{
		Currency:    cfg.Payment.Currency,
		PostURL:     cfg.Payment.PostURL(),
		RedirectURL: cfg.Payment.ReturnURL(),
	}, logger)
	paymentService := paymentservice.New(db, verifyGateway, publisher, logger)
	goalService := goalservice.New(db, logger)
	messageService := messageservice.New(db, quotaService, generator, logger)
	dashboardService := dashboardservice.New(db, resolver, quotaService, loc, logger)

	handlers := Handlers{
		Auth:         authhandler.New(logger, authService),
		Catalog:      cataloghandler.New(logger, catalogService),
		Subscription: subscriptionhandler.New(logger, subscriptionService),
		Payment:      paymenthandler.New(logger, paymentService, cfg.Payment.WebhookSecret),
		Goal:         goalhandler.New(logger, goalService),
		Message:      messagehandler.New(logger, messageService),
		Dashboard:    dashboardhandler.New(logger, dashboardService),
		Health: health.New(logger, cfg.Version, map[string]health.Pinger{
			"postgres": db,
			"redis":    cacheRedis,
		}),
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, handlers,
		Features{Checkout: cfg.Payment.Enabled(), Generation: cfg.AI.Enabled()},
		tokens, resolver,
		middlewarectx.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, limiterIdle),
	)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: max(cfg.TimeoutHTTP, cfg.AI.Timeout+5*time.Second),
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

func connectBroker(cfg config.RabbitMQ) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := rabbitmq.Connect(cfg.URL, cfg.Retries, cfg.Delay)
	if err != nil {
		return nil, nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
