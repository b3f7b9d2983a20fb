package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.GRPCAddr() != "0.0.0.0:50051" {
		t.Fatalf("grpc addr = %q", cfg.GRPCAddr())
	}
	if cfg.ReminderLead != 24*time.Hour {
		t.Fatalf("reminder lead = %v", cfg.ReminderLead)
	}
	if cfg.BusinessOpenHour != 9 || cfg.BusinessCloseHour != 22 {
		t.Fatalf("hours = %d-%d", cfg.BusinessOpenHour, cfg.BusinessCloseHour)
	}
	if cfg.ReleaseCancelledSlots {
		t.Fatalf("cancelled slots released by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SLOTBOOK_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("SLOTBOOK_BUSINESS_TIMEZONE", "Europe/Berlin")
	t.Setenv("SLOTBOOK_BOOKING_RELEASE_CANCELLED_SLOTS", "true")
	t.Setenv("SLOTBOOK_BUSY_CACHE_TTL", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.GRPCAddr() != "127.0.0.1:6000" {
		t.Fatalf("grpc addr = %q", cfg.GRPCAddr())
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Fatalf("location = %v, %v", loc, err)
	}
	if !cfg.ReleaseCancelledSlots {
		t.Fatalf("release flag not read")
	}
	if cfg.BusyCacheTTL != 5*time.Second {
		t.Fatalf("ttl = %v", cfg.BusyCacheTTL)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "duration", key: "SLOTBOOK_SHUTDOWN_TIMEOUT", val: "soon"},
		{name: "timezone", key: "SLOTBOOK_BUSINESS_TIMEZONE", val: "Mars/Olympus"},
		{name: "reminder lead", key: "SLOTBOOK_BOOKING_REMINDER_LEAD", val: "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
