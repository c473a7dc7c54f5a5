package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptdesk/libs/config"
	otelx "github.com/md-rashed-zaman/apptdesk/libs/otel"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
)

type Config struct {
	Service  string
	Port     string
	GRPCPort string

	StorageDriver string
	DatabaseURL   string
	AutoMigrate   bool

	Hours             availability.Hours
	DefaultDays       int
	MaxDays           int
	CancelledOccupies bool

	SMSProvider     string
	SMSWebhookURL   string
	SMSWebhookToken string
	SMTPHost        string
	SMTPPort        string
	SMTPFrom        string
	NotifyTimeout   time.Duration

	ReminderLeadDays int
	ReminderInterval time.Duration

	KafkaBrokers      []string
	KafkaGroupID      string
	KafkaPaymentTopic string

	RedisAddr        string
	ProviderCacheTTL time.Duration

	StripeSecretKey        string
	StripeWebhookSecret    string
	StripeWebhookTolerance time.Duration
	PlatformFeePercent     float64

	JWTSecret string
	JWKSURL   string

	DebugErrors        bool
	RateLimitPerMinute int
	CORSOrigins        []string
	BootstrapProviders []model.Provider

	OTel otelx.Config
}

func loadConfig() (Config, error) {
	cfg := Config{
		Service:             config.String("SERVICE_NAME", "booking-service"),
		StorageDriver:       strings.ToLower(config.String("STORAGE_DRIVER", "postgres")),
		DatabaseURL:         config.String("DATABASE_URL", ""),
		AutoMigrate:         config.Bool("DB_AUTO_MIGRATE", true),
		CancelledOccupies:   config.Bool("LEDGER_CANCELLED_OCCUPIES", false),
		SMSProvider:         strings.ToLower(config.String("SMS_PROVIDER", "noop")),
		SMSWebhookURL:       config.String("SMS_WEBHOOK_URL", ""),
		SMSWebhookToken:     config.String("SMS_WEBHOOK_TOKEN", ""),
		SMTPHost:            config.String("SMTP_HOST", ""),
		SMTPPort:            config.String("SMTP_PORT", "25"),
		SMTPFrom:            config.String("SMTP_FROM", "no-reply@apptdesk.local"),
		KafkaBrokers:        config.List("KAFKA_BROKERS", ""),
		KafkaGroupID:        config.String("KAFKA_GROUP_ID", "booking-service"),
		KafkaPaymentTopic:   config.String("KAFKA_PAYMENT_TOPIC", consumer.PaymentIntentTopic),
		RedisAddr:           config.String("REDIS_ADDR", ""),
		StripeSecretKey:     config.String("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: config.String("STRIPE_WEBHOOK_SECRET", ""),
		JWTSecret:           config.String("JWT_SECRET", ""),
		JWKSURL:             config.String("JWKS_URL", ""),
		DebugErrors:         config.Bool("DEBUG_ERRORS", false),
		CORSOrigins:         config.List("CORS_ALLOWED_ORIGINS", ""),
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8083"); err != nil {
		return Config{}, err
	}
	if cfg.GRPCPort, err = config.Port("GRPC_PORT", "9093"); err != nil {
		return Config{}, err
	}
	switch cfg.StorageDriver {
	case "postgres":
		if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			return Config{}, err
		}
	case "memory":
	default:
		return Config{}, fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", cfg.StorageDriver)
	}

	step, err := config.Int("SLOT_STEP_MINUTES", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.Hours, err = availability.NewHours(
		config.String("WORKDAY_START", "08:00"),
		config.String("WORKDAY_END", "17:00"),
		time.Duration(step)*time.Minute,
	)
	if err != nil {
		return Config{}, fmt.Errorf("business hours: %w", err)
	}
	if cfg.DefaultDays, err = config.Int("AVAILABILITY_DEFAULT_DAYS", 7); err != nil {
		return Config{}, err
	}
	if cfg.MaxDays, err = config.Int("AVAILABILITY_MAX_DAYS", 31); err != nil {
		return Config{}, err
	}
	if cfg.NotifyTimeout, err = config.Duration("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ReminderLeadDays, err = config.Int("REMINDER_LEAD_DAYS", 1); err != nil {
		return Config{}, err
	}
	if cfg.ReminderInterval, err = config.Duration("REMINDER_INTERVAL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ProviderCacheTTL, err = config.Duration("PROVIDER_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.StripeWebhookTolerance, err = config.Duration("STRIPE_WEBHOOK_TOLERANCE", 300*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PlatformFeePercent, err = config.Float("PLATFORM_FEE_PERCENT", 0); err != nil {
		return Config{}, err
	}
	if cfg.PlatformFeePercent < 0 || cfg.PlatformFeePercent > 100 {
		return Config{}, errors.New("PLATFORM_FEE_PERCENT must be between 0 and 100")
	}
	if cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return Config{}, err
	}
	if cfg.SMSProvider == "webhook" && cfg.SMSWebhookURL == "" {
		return Config{}, errors.New("SMS_WEBHOOK_URL is required when SMS_PROVIDER=webhook")
	}
	if cfg.BootstrapProviders, err = parseProviders(config.List("BOOTSTRAP_PROVIDERS", "")); err != nil {
		return Config{}, err
	}
	if cfg.OTel, err = otelx.ConfigFromEnv(cfg.Service); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseProviders reads "slug=Business Name" entries.
func parseProviders(entries []string) ([]model.Provider, error) {
	var out []model.Provider
	for _, e := range entries {
		slug, name, ok := strings.Cut(e, "=")
		slug, name = strings.TrimSpace(slug), strings.TrimSpace(name)
		if !ok || slug == "" || name == "" {
			return nil, fmt.Errorf("BOOTSTRAP_PROVIDERS: invalid entry %q, want slug=Business Name", e)
		}
		out = append(out, model.Provider{ID: uuid.NewString(), Slug: slug, BusinessName: name, IsActive: true})
	}
	return out, nil
}
