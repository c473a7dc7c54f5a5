package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptdesk/libs/config"
	"github.com/md-rashed-zaman/apptdesk/libs/httpx"
	otelx "github.com/md-rashed-zaman/apptdesk/libs/otel"
)

type Config struct {
	Service         string
	Port            string
	BookingURL      *url.URL
	BookingGRPCAddr string

	JWTSecret string
	JWKSURL   string
	JWKSTTL   time.Duration

	BodyLimit      int64
	RequestTimeout time.Duration

	RateLimitPerMinute int
	RateLimitPrefix    string
	RateLimitFailOpen  bool
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	CORS httpx.CORSPolicy
	OTel otelx.Config
}

func loadConfig() (Config, error) {
	cfg := Config{
		Service:           config.String("SERVICE_NAME", "gateway-service"),
		BookingGRPCAddr:   strings.TrimSpace(config.String("BOOKING_GRPC_ADDR", "booking-service:9093")),
		JWTSecret:         config.String("JWT_SECRET", "dev-secret"),
		JWKSURL:           strings.TrimSpace(config.String("JWKS_URL", "")),
		RateLimitPrefix:   config.String("RATE_LIMIT_PREFIX", "apptdesk:rl:gateway"),
		RateLimitFailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		RedisAddr:         strings.TrimSpace(config.String("REDIS_ADDR", "")),
		RedisPassword:     config.String("REDIS_PASSWORD", ""),
		CORS: httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
		},
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8080"); err != nil {
		return Config{}, err
	}
	if cfg.BookingURL, err = parseUpstream(config.String("BOOKING_URL", "http://booking-service:8083")); err != nil {
		return Config{}, fmt.Errorf("BOOKING_URL: %w", err)
	}
	if cfg.JWKSTTL, err = config.Duration("JWKS_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return Config{}, err
	}
	if bodyLimit <= 0 {
		return Config{}, fmt.Errorf("REQUEST_BODY_LIMIT_BYTES must be positive (got %d)", bodyLimit)
	}
	cfg.BodyLimit = int64(bodyLimit)
	if cfg.RequestTimeout, err = config.Duration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive (got %d)", cfg.RateLimitPerMinute)
	}
	if cfg.RedisDB, err = config.Int("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.CORS.MaxAge, err = config.Duration("CORS_MAX_AGE", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.OTel, err = otelx.ConfigFromEnv(cfg.Service); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
