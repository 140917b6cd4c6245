package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"getmyguide/internal/app/handlers/notifications"
	"getmyguide/internal/app/middleware"
	appoutbox "getmyguide/internal/app/outbox"
	"getmyguide/internal/app/policies"
	"getmyguide/internal/app/schedule"
	"getmyguide/internal/app/uow"
	"getmyguide/internal/infra/broker/kafka"
	"getmyguide/internal/infra/broker/rabbitmq"
	"getmyguide/internal/infra/config"
	mongostore "getmyguide/internal/infra/db/mongo"
	"getmyguide/internal/infra/inbox"
	redislock "getmyguide/internal/infra/lock/redis"
	"getmyguide/internal/infra/obs"
	"getmyguide/internal/infra/outbox"
	"getmyguide/internal/infra/payments/razorpay"
	"getmyguide/internal/infra/storage/memory"
)

const (
	bookingEventsTopic = "booking.events.v1"
	kafkaClientID      = "getmyguide"
)

// infrastructure is the adapter set for one storage mode.
type infrastructure struct {
	uow         uow.UoWFactory
	payments    policies.PaymentsPort
	outbox      appoutbox.Outbox
	idempotency middleware.IdempotencyStore
	alerts      policies.AlertSink
	notifier    policies.Notifier
	locker      schedule.Locker
	checks      map[string]obs.Check

	// bindNotifications hands the built notification consumer to adapters
	// created before it.
	bindNotifications func(*notifications.Handler)
	background        []func(ctx context.Context) error
	closers           []func(ctx context.Context) error
}

func (i *infrastructure) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
}

// buildMemoryInfra keeps everything in process. Outbox records are handed
// straight to the notification consumer on flush.
func buildMemoryInfra(cfg config.Config, logger *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{checks: map[string]obs.Check{}}
	guides := memory.NewGuideRepository()
	bookings := memory.NewBookingRepository()
	infra.uow = memory.Factory{GuidesRepo: guides, BookingsRepo: bookings}
	infra.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	infra.locker = memory.NewLocker()
	infra.alerts = obs.LogAlertSink{Logger: logger}

	var consumer *notifications.Handler
	infra.outbox = memory.NewOutbox(func(ctx context.Context, rec appoutbox.EventRecord) error {
		if consumer == nil {
			return nil
		}
		return consumer.HandleRecord(ctx, rec)
	})
	infra.bindNotifications = func(h *notifications.Handler) { consumer = h }

	payments, err := newPayments(cfg, logger)
	if err != nil {
		return nil, err
	}
	infra.payments = payments

	if err := infra.attachNotifier(cfg, logger); err != nil {
		return nil, err
	}
	if err := infra.attachRedis(cfg); err != nil {
		return nil, err
	}
	return infra, nil
}

// buildMongoInfra persists aggregates and outbox records in one Mongo
// transaction and relays events through Kafka.
func buildMongoInfra(ctx context.Context, cfg config.Config, logger *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{checks: map[string]obs.Check{}}
	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	infra.closers = append(infra.closers, client.Close)
	infra.checks["mongo"] = client.Ping

	store, err := mongostore.NewStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		infra.close(logger)
		return nil, fmt.Errorf("prepare mongo store: %w", err)
	}
	infra.uow = store.Factory(client.DB)
	infra.idempotency = store.Idempotency

	events := outbox.NewStore(client.DB)
	if err := events.EnsureIndexes(ctx); err != nil {
		infra.close(logger)
		return nil, fmt.Errorf("prepare outbox: %w", err)
	}
	infra.outbox = events

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafkaClientID)
	if err != nil {
		infra.close(logger)
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	infra.closers = append(infra.closers, func(context.Context) error { return producer.Close() })
	infra.alerts = obs.MultiAlertSink{
		obs.LogAlertSink{Logger: logger},
		kafka.AlertSink{Publisher: producer, Topic: cfg.KafkaTopicPrefix + cfg.AlertsTopic},
	}

	worker := &outbox.Worker{
		Store:       events,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	infra.background = append(infra.background, worker.Run)

	seen := inbox.NewStore(client.DB, cfg.KafkaConsumerGroup)
	if err := seen.EnsureIndexes(ctx); err != nil {
		infra.close(logger)
		return nil, fmt.Errorf("prepare inbox: %w", err)
	}
	eventHandler := &kafka.BookingEventHandler{Inbox: seen, Logger: logger}
	infra.bindNotifications = func(h *notifications.Handler) { eventHandler.Sink = h }
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, eventHandler, logger)
	if err != nil {
		infra.close(logger)
		return nil, fmt.Errorf("connect kafka consumer: %w", err)
	}
	infra.closers = append(infra.closers, func(context.Context) error { return consumer.Close() })
	topic := cfg.KafkaTopicPrefix + bookingEventsTopic
	infra.background = append(infra.background, func(ctx context.Context) error {
		return consumer.Run(ctx, []string{topic})
	})

	payments, err := newPayments(cfg, logger)
	if err != nil {
		infra.close(logger)
		return nil, err
	}
	infra.payments = payments

	if err := infra.attachNotifier(cfg, logger); err != nil {
		infra.close(logger)
		return nil, err
	}
	if err := infra.attachRedis(cfg); err != nil {
		infra.close(logger)
		return nil, err
	}
	return infra, nil
}

// newPayments talks to the live gateway when a key id is configured and
// falls back to the in-process sandbox otherwise.
func newPayments(cfg config.Config, logger *slog.Logger) (policies.PaymentsPort, error) {
	if cfg.Payment.KeyID == "" {
		logger.Warn("PAYMENT_KEY_ID not set, using sandbox payment gateway")
		return memory.NewSandboxGateway(cfg.Payment.KeySecret), nil
	}
	client, err := razorpay.New(razorpay.Config{
		BaseURL:   cfg.Payment.BaseURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Timeout:   cfg.Payment.Timeout,
	}, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w", err)
	}
	return client, nil
}

func (i *infrastructure) attachNotifier(cfg config.Config, logger *slog.Logger) error {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set, mail is kept in memory")
		i.notifier = memory.NewMailbox()
		return nil
	}
	publisher, err := rabbitmq.Dial(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.MailQueue}, logger)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	i.notifier = publisher
	i.closers = append(i.closers, func(context.Context) error { return publisher.Close() })
	return nil
}

// attachRedis swaps the scheduler lock for a shared one so only one
// instance sends reminders per tick.
func (i *infrastructure) attachRedis(cfg config.Config) error {
	if cfg.RedisAddr == "" {
		if i.locker == nil {
			i.locker = memory.NewLocker()
		}
		return nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	i.locker = redislock.NewLocker(client)
	i.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	i.closers = append(i.closers, func(context.Context) error {
		if err := client.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
		return nil
	})
	return nil
}
