package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"booking-payments/internal/app/payments"
	"booking-payments/internal/client/userclient"
	"booking-payments/internal/config"
	"booking-payments/internal/database"
	"booking-payments/internal/events"
	"booking-payments/internal/gateway"
	"booking-payments/internal/handler/http/middleware"
	payments_http "booking-payments/internal/handler/http/payments"
	kafka_handler "booking-payments/internal/handler/kafka"
	kafka_infra "booking-payments/internal/infrastructure/kafka"
	"booking-payments/internal/infrastructure/rabbitmq"
	"booking-payments/internal/logger"
	"booking-payments/internal/outbox"
	"booking-payments/internal/repository/inbox_repo"
	"booking-payments/internal/repository/outbox_repo"
	"booking-payments/internal/repository/payment_order_repo"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox relay and the confirmation consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appLogger, err := logger.New(cfg.App.LogPath, cfg.App.Debug)
			if err != nil {
				return err
			}
			defer appLogger.Sync()

			return runServe(cfg, appLogger)
		},
	}
}

func runServe(cfg *config.Config, appLogger *zap.Logger) error {
	appLogger.Info("Booking payments service starting...", zap.String("app", cfg.App.Name))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenWithRetry(ctx, cfg, 10, 5*time.Second, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()
	appLogger.Info("Connected to PostgreSQL")

	if err := database.MigrateUp(cfg.DB.MigrationsPath, cfg.GetDBMigrationConnectionString(), appLogger); err != nil {
		return err
	}

	kafkaBrokers := cfg.GetKafkaBrokers()
	requiredTopics := []string{cfg.Events.KafkaConfirmationsTopic}
	if cfg.Events.Broker == config.BrokerKafka {
		requiredTopics = append(requiredTopics, cfg.Events.KafkaNotificationTopic, cfg.Events.KafkaBookingTopic)
	}
	topicsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = kafka_infra.EnsureTopics(topicsCtx, kafkaBrokers[0], requiredTopics, appLogger)
	cancel()
	if err != nil {
		return fmt.Errorf("ensure kafka topics: %w", err)
	}

	orderRepository := payment_order_repo.NewPaymentOrderRepository()
	outboxRepository := outbox_repo.NewOutboxRepository()
	inboxRepository := inbox_repo.NewInboxRepository()

	gateways, err := gateway.NewRegistry(gateway.RegistryConfig{
		Mode:              cfg.Gateway.Mode,
		MockBaseURL:       cfg.Gateway.MockBaseURL,
		MockLinkTag:       cfg.Gateway.MockLinkTag,
		MockProviders:     cfg.Gateway.MockProviders,
		MockFixedProvider: cfg.Gateway.MockFixedProvider,
		CallbackURL:       cfg.Gateway.CallbackURL,
		Currency:          cfg.Gateway.Currency,
		StripeAPIKey:      cfg.Gateway.StripeAPIKey,
		RazorpayKeyID:     cfg.Gateway.RazorpayKeyID,
		RazorpayKeySecret: cfg.Gateway.RazorpayKeySecret,
	}, appLogger.With(zap.String("component", "GatewayRegistry")))
	if err != nil {
		return fmt.Errorf("build gateway registry: %w", err)
	}

	producer := events.NewOutboxProducer(outboxRepository, events.Topics{
		Notification: cfg.Events.KafkaNotificationTopic,
		Booking:      cfg.Events.KafkaBookingTopic,
	}, appLogger.With(zap.String("component", "OutboxProducer")))

	resolver, err := payments.NewOrderResolver(db, orderRepository, cfg.Resolver.AliasPrefixes, cfg.Resolver.CacheSize,
		appLogger.With(zap.String("component", "OrderResolver")))
	if err != nil {
		return fmt.Errorf("build order resolver: %w", err)
	}

	paymentService := payments.NewPaymentService(
		db,
		database.NewTxManager(db, appLogger.With(zap.String("component", "TxManager"))),
		orderRepository,
		gateways,
		producer,
		producer,
		resolver,
		cfg.Gateway.Timeout,
		appLogger.With(zap.String("component", "PaymentService")),
	)
	appLogger.Info("Payment service initialized.")

	users := userclient.New(cfg.Users.BaseURL, cfg.Users.Timeout, appLogger.With(zap.String("component", "UserClient")))

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logger(appLogger.With(zap.String("component", "HTTP"))))
	router.Use(middleware.Recover(appLogger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.App.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(chimw.Timeout(45 * time.Second))
	payments_http.RegisterRoutes(router, paymentService, users, db, appLogger.With(zap.String("component", "HTTPHandler")))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	publisher, closePublisher, err := newPublisher(cfg, kafkaBrokers, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closePublisher.Close(); err != nil {
			appLogger.Error("Error closing event publisher", zap.Error(err))
		}
	}()

	outboxProcessor := outbox.NewProcessor(db, outboxRepository, publisher, outbox.Config{
		PollInterval: cfg.Outbox.PollInterval,
		PollTimeout:  cfg.Outbox.PollTimeout,
		BatchSize:    cfg.Outbox.BatchSize,
	}, appLogger.With(zap.String("component", "OutboxProcessor")))

	confirmationConsumer := kafka_infra.NewConsumer(
		kafkaBrokers,
		cfg.Events.KafkaConfirmationsTopic,
		cfg.Events.KafkaConsumerGroup,
		kafka_handler.PaymentConfirmationHandler(
			paymentService,
			inboxRepository,
			db,
			cfg.Events.KafkaConsumerGroup,
			appLogger.With(zap.String("component", "ConfirmationHandler")),
		),
		appLogger.With(zap.String("component", "ConfirmationConsumer")),
	)

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		outboxProcessor.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := confirmationConsumer.Consume(ctx); err != nil {
			appLogger.Error("Confirmation consumer failed", zap.Error(err))
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down application...")
	case runErr = <-serverErr:
		appLogger.Error("HTTP server failed", zap.Error(runErr))
		stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}
	if err := confirmationConsumer.Close(); err != nil {
		appLogger.Error("Error closing confirmation consumer", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		appLogger.Info("Application gracefully shut down.")
	case <-shutdownCtx.Done():
		appLogger.Warn("Workers did not stop before the shutdown deadline")
	}
	return runErr
}

// newPublisher picks the outbox relay target from EVENTS_BROKER.
func newPublisher(cfg *config.Config, kafkaBrokers []string, appLogger *zap.Logger) (outbox.Publisher, io.Closer, error) {
	switch cfg.Events.Broker {
	case config.BrokerRabbitMQ:
		p, err := rabbitmq.NewPublisher(cfg.Events.RabbitMQURL, cfg.Events.RabbitMQExchange,
			appLogger.With(zap.String("component", "RabbitMQPublisher")))
		if err != nil {
			return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return p, p, nil
	default:
		p := kafka_infra.NewProducer(kafkaBrokers, appLogger.With(zap.String("component", "KafkaProducer")))
		return p, p, nil
	}
}
