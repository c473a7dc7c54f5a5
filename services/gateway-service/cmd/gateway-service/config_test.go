package main

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8080" || cfg.BookingURL.Host != "booking-service:8083" {
		t.Fatalf("unexpected upstream %s %v", cfg.Port, cfg.BookingURL)
	}
	if cfg.RateLimitPerMinute != 60 || cfg.BodyLimit != 1<<20 || cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("unexpected limits %+v", cfg)
	}
	if cfg.OTel.Enabled || cfg.OTel.ServiceName != "gateway-service" {
		t.Fatalf("unexpected otel config %+v", cfg.OTel)
	}
	if cfg.CORS.MaxAge != 10*time.Minute {
		t.Fatalf("unexpected cors max age %v", cfg.CORS.MaxAge)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"otel ratio out of range": {"OTEL_SAMPLING_RATIO", "2"},
		"upstream without host":   {"BOOKING_URL", "booking-service"},
		"zero rate limit":         {"RATE_LIMIT_PER_MINUTE", "0"},
		"bad timeout":             {"REQUEST_TIMEOUT", "soon"},
		"negative body limit":     {"REQUEST_BODY_LIMIT_BYTES", "-1"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := loadConfig(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
