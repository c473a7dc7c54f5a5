package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/apptdesk/libs/auth"
	"github.com/md-rashed-zaman/apptdesk/libs/db"
	"github.com/md-rashed-zaman/apptdesk/libs/grpcx"
	"github.com/md-rashed-zaman/apptdesk/libs/httpx"
	"github.com/md-rashed-zaman/apptdesk/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptdesk/libs/otel"
	"github.com/md-rashed-zaman/apptdesk/libs/runtime"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/access"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/directory"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/notify/email"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/notify/sms"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/reminders"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/storage/memstore"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// store is everything the service needs from a storage driver.
type store interface {
	lifecycle.Store
	availability.Ledger
	directory.Source
	notify.Recorder
	reminders.Claimer
	UpsertProvider(ctx context.Context, p model.Provider) (model.Provider, error)
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, cfg.OTel)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		st        store
		readiness []runtime.ReadyCheck
	)
	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		st = memstore.New(storage.Policy{CancelledOccupies: cfg.CancelledOccupies})
	default:
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.AutoMigrate {
			migrations, err := storage.Migrations()
			if err == nil {
				err = db.Migrate(ctx, pool, migrations)
			}
			if err != nil {
				logger.Error("db migration failed", "err", err)
				os.Exit(1)
			}
		}

		outboxRepo := outbox.NewRepository()
		st = storage.New(pool, outboxRepo, inbox.NewRepository(), storage.Policy{CancelledOccupies: cfg.CancelledOccupies})
		readiness = append(readiness, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		if len(cfg.KafkaBrokers) > 0 {
			writer := kafkax.NewWriter(cfg.KafkaBrokers)
			defer writer.Close()
			publisher := outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{
				PollEvery: 2 * time.Second,
				BatchSize: 50,
			})
			go publisher.Run(ctx)
		}
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		readiness = append(readiness, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	if len(cfg.KafkaBrokers) > 0 {
		readiness = append(readiness, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}
	providers := directory.New(st, rdb, cfg.ProviderCacheTTL, logger)

	for _, p := range cfg.BootstrapProviders {
		saved, err := st.UpsertProvider(ctx, p)
		if err != nil {
			logger.Error("bootstrap provider failed", "provider_id", p.Slug, "err", err)
			os.Exit(1)
		}
		if err := providers.Invalidate(ctx, saved.Slug); err != nil {
			logger.Warn("provider cache invalidation failed", "provider_id", saved.Slug, "err", err)
		}
		logger.Info("provider registered", "provider_id", saved.Slug, "id", saved.ID)
	}

	var smsSender sms.Sender = sms.NewNoopSender()
	if cfg.SMSProvider == "webhook" {
		smsSender = sms.NewWebhookSender(cfg.SMSWebhookURL, cfg.SMSWebhookToken)
	}
	var emailSender email.Sender
	if cfg.SMTPHost != "" {
		emailSender = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	}
	dispatcher := notify.NewDispatcher(smsSender, emailSender, st, cfg.NotifyTimeout, logger)

	var gateway payments.Gateway
	if cfg.StripeSecretKey != "" {
		gateway = payments.NewStripeGateway(cfg.StripeSecretKey)
	}

	svc := lifecycle.NewService(st, providers, dispatcher, gateway, lifecycle.Config{
		Hours: cfg.Hours,
		Fees:  payments.FeePolicy{Percent: cfg.PlatformFeePercent},
	}, logger, time.Now)
	engine := availability.NewEngine(providers, st, availability.Config{
		Hours:       cfg.Hours,
		DefaultDays: cfg.DefaultDays,
		MaxDays:     cfg.MaxDays,
	}, time.Now)

	go reminders.NewWorker(st, svc, logger, reminders.WorkerConfig{
		Interval: cfg.ReminderInterval,
		LeadDays: cfg.ReminderLeadDays,
	}, time.Now).Run(ctx)

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaPaymentTopic != "" {
		reader := kafkax.NewReader(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaPaymentTopic)
		go consumer.New(reader, svc, logger).Run(ctx)
	}

	verifier := auth.Verifier{Secret: cfg.JWTSecret}
	if cfg.JWKSURL != "" {
		verifier.JWKS = auth.NewJWKSClient(cfg.JWKSURL, 10*time.Minute)
	}
	requireCaller := access.RequireCaller(verifier, func(r *http.Request, claim string) (string, error) {
		return providers.ResolveProviderID(r.Context(), claim)
	}, logger, cfg.DebugErrors)

	var webhook http.Handler
	if cfg.StripeWebhookSecret != "" {
		webhook = handlers.NewStripeWebhook(cfg.StripeWebhookSecret, cfg.StripeWebhookTolerance, svc, logger)
	}

	mux := runtime.NewBaseMuxWithReady(readiness...)
	handlers.Register(mux,
		handlers.NewPublicHandler(engine, svc, logger, cfg.DebugErrors),
		handlers.NewAppointmentHandler(svc, logger, cfg.DebugErrors),
		webhook,
		requireCaller,
	)

	var limiter httpx.Middleware
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "apptdesk:rl:booking", httpx.ClientIPKey).Middleware(logger, true)
	} else {
		limiter = httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, httpx.ClientIPKey).Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", handlers.IdempotencyKeyHeader, httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		limiter,
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	grpcServer := grpcx.NewServer()
	go grpcx.RegisterHealth(grpcServer, logger, 10*time.Second, readiness...).Run(ctx)
	go func() {
		if err := grpcx.Serve(ctx, logger, grpcServer, ":"+cfg.GRPCPort); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	runtime.ServeHTTP(ctx, logger, &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	})
}
