package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"stayhub/internal/app/commands"
	availabilityapp "stayhub/internal/app/handlers/availability"
	bookingapp "stayhub/internal/app/handlers/booking"
	"stayhub/internal/app/middleware"
	appoutbox "stayhub/internal/app/outbox"
	"stayhub/internal/app/policies"
	"stayhub/internal/app/queries"
	bookingsvc "stayhub/internal/app/services/booking"
	"stayhub/internal/app/services/payments"
	"stayhub/internal/app/uow"
	"stayhub/internal/domain/payment"
	"stayhub/internal/infra/broker/kafka"
	"stayhub/internal/infra/config"
	mongodb "stayhub/internal/infra/db/mongo"
	ginserver "stayhub/internal/infra/http/gin"
	"stayhub/internal/infra/inbox"
	lockredis "stayhub/internal/infra/lock/redis"
	"stayhub/internal/infra/notify"
	"stayhub/internal/infra/obs"
	infraoutbox "stayhub/internal/infra/outbox"
	"stayhub/internal/infra/payments/sandbox"
	"stayhub/internal/infra/payments/stripe"
	"stayhub/internal/infra/payments/yookassa"
	"stayhub/internal/infra/storage/memory"
	"stayhub/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: app.checks}, app.handlers)

	var wg sync.WaitGroup
	for name, run := range app.workers {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", "worker", name, "error", err)
			}
		}(name, run)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode, "payment_provider", cfg.PaymentProvider)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	wg.Wait()
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	checks   map[string]obs.Check
	workers  map[string]func(context.Context) error
	closers  []func(context.Context) error
}

// stores groups the persistence pieces that differ between memory and mongo mode.
type stores struct {
	units       uow.Factory
	outbox      infraoutbox.Store
	payments    payment.Repository
	idempotency middleware.IdempotencyStore
	inbox       kafka.Inbox
	properties  policies.PropertyLookup
	users       policies.UserLookup
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		checks:  map[string]obs.Check{},
		workers: map[string]func(context.Context) error{},
	}

	st, err := app.openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var locker policies.PropertyLocker = memory.NewKeyedLocker()
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		app.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
		locker = lockredis.New(rdb, cfg.LockTTL, logger)
	}

	provider, err := paymentProvider(cfg)
	if err != nil {
		return nil, err
	}
	paySvc := &payments.Service{
		Repo:     st.payments,
		Provider: provider,
		Logger:   logger,
		Timeout:  cfg.PaymentTimeout,
	}
	if cfg.S3Endpoint != "" {
		archive, err := s3.NewArchive(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, "receipts", logger)
		if err != nil {
			return nil, err
		}
		paySvc.Receipts = archive
		app.checks["s3"] = archive.Ping
	}

	var producer infraoutbox.Producer = infraoutbox.LogProducer{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return p.Close() })
		producer = p
	}

	var sender notify.Sender = notify.LogSender{Logger: logger}
	if cfg.NotifyKafka {
		sender = notify.BrokerSender{Publisher: producer, TopicPrefix: cfg.KafkaTopicPrefix}
	}
	dispatcher := &notify.Dispatcher{
		Sender:      sender,
		Logger:      logger,
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		MaxAttempts: cfg.NotifyMaxAttempts,
	}
	app.workers["notifications"] = dispatcher.Run

	svc := &bookingsvc.Service{
		Units:          st.units,
		Properties:     st.properties,
		Users:          st.users,
		Payments:       paySvc,
		Notifier:       dispatcher,
		Locker:         locker,
		Encoder:        appoutbox.JSONEventEncoder{},
		Logger:         logger,
		PersistTimeout: cfg.PersistTimeout,
	}

	cmdReg := commands.NewRegistry()
	bookingapp.RegisterCommands(cmdReg, bookingapp.CommandHandlers{Service: svc, ReturnURL: cfg.PaymentReturnURL})
	qryReg := queries.NewRegistry()
	bookingapp.RegisterQueries(qryReg, bookingapp.QueryHandlers{Service: svc})
	availabilityapp.Register(qryReg, &availabilityapp.GetCalendarHandler{Bookings: svc})

	validator := middleware.NewStructValidator()
	authz := middleware.ActorAuthorizer{Users: st.users}
	commandBus := middleware.ChainCommands(cmdReg,
		middleware.Tracing(),
		middleware.Validation(validator),
		middleware.Authorization(authz),
		middleware.Idempotency(st.idempotency, nil, logger),
	)
	queryBus := middleware.ChainQueries(qryReg,
		middleware.QueryTracing(),
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(authz),
	)

	app.handlers = ginserver.Handlers{
		Booking:      ginserver.BookingHandler{Commands: commandBus, Queries: queryBus},
		Availability: ginserver.AvailabilityHandler{Queries: queryBus},
		Webhooks: ginserver.WebhookHandler{
			Payments: paySvc,
			Commands: commandBus,
			Limiter:  rate.NewLimiter(rate.Limit(cfg.WebhookRateLimit), cfg.WebhookBurst),
			Logger:   logger,
		},
	}

	relay := &infraoutbox.Worker{
		Store:       st.outbox,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
	}
	app.workers["outbox"] = relay.Run

	completion := &bookingsvc.CompletionWorker{Service: svc, Logger: logger, Interval: cfg.CompletionInterval}
	app.workers["completion"] = completion.Run

	if len(cfg.KafkaBrokers) > 0 {
		handler := kafka.PaymentResultHandler{Bus: commandBus, Inbox: st.inbox, Logger: logger}
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, handler, logger)
		if err != nil {
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
		topic := cfg.KafkaTopicPrefix + kafka.PaymentResultsTopic
		app.workers["payment-results"] = func(ctx context.Context) error {
			return consumer.Run(ctx, []string{topic})
		}
	}
	return app, nil
}

func (a *application) openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	if cfg.StorageMode != config.StorageMongo {
		dir := memory.NewDirectory()
		if n, err := dir.LoadFixtures(cfg.FixturesPath, cfg.PaymentCurrency); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return stores{}, err
			}
			logger.Info("fixtures file not found, starting empty", "path", cfg.FixturesPath)
		} else {
			logger.Info("fixtures loaded", "path", cfg.FixturesPath, "records", n)
		}
		box := memory.NewOutbox()
		return stores{
			units:       memory.Factory{Bookings: memory.NewBookingRepository(), Outbox: box},
			outbox:      box,
			payments:    memory.NewPaymentRepository(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			inbox:       memory.NewInbox(),
			properties:  dir,
			users:       dir,
		}, nil
	}

	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return stores{}, fmt.Errorf("mongo connect: %w", err)
	}
	a.checks["mongo"] = client.Ping
	a.closers = append(a.closers, client.Close)

	bookingsRepo, err := mongodb.NewBookingRepository(ctx, client.DB)
	if err != nil {
		return stores{}, err
	}
	paymentsRepo, err := mongodb.NewPaymentRepository(ctx, client.DB)
	if err != nil {
		return stores{}, err
	}
	idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		return stores{}, err
	}
	box, err := infraoutbox.NewMongoStore(ctx, client.DB)
	if err != nil {
		return stores{}, err
	}
	in, err := inbox.NewStore(ctx, client.DB, "payment-results")
	if err != nil {
		return stores{}, err
	}
	dir := mongodb.NewDirectory(client.DB)
	if err := seedDirectory(ctx, dir, cfg.FixturesPath, cfg.PaymentCurrency, logger); err != nil {
		return stores{}, err
	}
	return stores{
		units:       mongodb.Factory{DB: client.DB, BookingRepo: bookingsRepo, Outbox: box},
		outbox:      box,
		payments:    paymentsRepo,
		idempotency: idem,
		inbox:       in,
		properties:  dir,
		users:       dir,
	}, nil
}

// seedDirectory upserts fixture records so that a fresh database is usable locally.
func seedDirectory(ctx context.Context, dir *mongodb.Directory, path, currency string, logger *slog.Logger) error {
	fx, err := memory.ReadFixtures(path, currency)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read fixtures: %w", err)
	}
	for _, u := range fx.Users {
		if err := dir.UpsertUser(ctx, u.ID, u.Role, u.Name); err != nil {
			return err
		}
	}
	for _, p := range fx.Properties {
		if err := dir.UpsertProperty(ctx, p.ID, p.OwnerID, p.Capacity, p.PricePerNight, p.Title); err != nil {
			return err
		}
	}
	logger.Info("fixtures upserted", "path", path, "users", len(fx.Users), "properties", len(fx.Properties))
	return nil
}

func paymentProvider(cfg config.Config) (payments.Provider, error) {
	switch cfg.PaymentProvider {
	case "stripe":
		return stripe.New(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.PaymentReturnURL), nil
	case "yookassa":
		return yookassa.New(cfg.YookassaAPIURL, cfg.YookassaShopID, cfg.YookassaSecretKey), nil
	case "sandbox", "":
		return sandbox.New(""), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.PaymentProvider)
	}
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
}
