package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NOTIFICATION_RETENTION_HOURS", "")
	t.Setenv("SETTINGS_REFRESH_SCHEDULE", "")
	t.Setenv("TECHNICIAN_POOL_COMPANY_ID", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Notification.Retention(); got != 7*24*time.Hour {
		t.Fatalf("retention = %s, want 168h", got)
	}
	if cfg.Settings.RefreshSchedule != "@every 5m" {
		t.Fatalf("refresh schedule = %q", cfg.Settings.RefreshSchedule)
	}
	if cfg.Tenancy.TechnicianPoolCompanyID != "" {
		t.Fatalf("pool company must default to empty, got %q", cfg.Tenancy.TechnicianPoolCompanyID)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NOTIFICATION_RETENTION_HOURS", "24")
	t.Setenv("SETTINGS_CACHE_TTL_SECONDS", "60")
	t.Setenv("TECHNICIAN_POOL_COMPANY_ID", "digitalization")
	t.Setenv("NOTIFY_WEBHOOK_URL", "https://hooks.slack.test/x")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notification.Retention() != 24*time.Hour {
		t.Fatalf("retention = %s", cfg.Notification.Retention())
	}
	if cfg.Settings.CacheTTL() != time.Minute {
		t.Fatalf("cache ttl = %s", cfg.Settings.CacheTTL())
	}
	if cfg.Tenancy.TechnicianPoolCompanyID != "digitalization" {
		t.Fatalf("pool company = %q", cfg.Tenancy.TechnicianPoolCompanyID)
	}
	if cfg.Notification.WebhookURL == "" {
		t.Fatal("webhook url not loaded")
	}
	if cfg.App.Addr() != "0.0.0.0:9090" {
		t.Fatalf("addr = %q", cfg.App.Addr())
	}
}

func TestLoadRejectsNonPositiveRetention(t *testing.T) {
	t.Setenv("NOTIFICATION_RETENTION_HOURS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero retention")
	}
}
