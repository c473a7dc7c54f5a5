package main

import (
	"testing"
)

func TestLoadConfigMemoryDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("BOOTSTRAP_PROVIDERS", "acme=Acme Dental, bob=Bob's Barbers")
	t.Setenv("PLATFORM_FEE_PERCENT", "2.5")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8083" || cfg.GRPCPort != "9093" {
		t.Fatalf("unexpected ports %s %s", cfg.Port, cfg.GRPCPort)
	}
	if len(cfg.Hours) != 10 || cfg.Hours[0] != "08:00" {
		t.Fatalf("unexpected hours %v", cfg.Hours)
	}
	if len(cfg.BootstrapProviders) != 2 || cfg.BootstrapProviders[1].BusinessName != "Bob's Barbers" {
		t.Fatalf("unexpected providers %+v", cfg.BootstrapProviders)
	}
	if cfg.PlatformFeePercent != 2.5 {
		t.Fatalf("unexpected fee %v", cfg.PlatformFeePercent)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"postgres without url": {"STORAGE_DRIVER", "postgres"},
		"unknown driver":       {"STORAGE_DRIVER", "sqlite"},
		"fee out of range":     {"PLATFORM_FEE_PERCENT", "120"},
		"bad provider entry":   {"BOOTSTRAP_PROVIDERS", "acme"},
		"webhook without url":  {"SMS_PROVIDER", "webhook"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("STORAGE_DRIVER", "memory")
			t.Setenv("DATABASE_URL", "")
			t.Setenv(kv[0], kv[1])
			if _, err := loadConfig(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
