package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("SERVICE_URI", "user:pass@tcp(localhost:3306)/atrium")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.MaxMessageLength != 4000 || cfg.OutboundQueueCap != 256 {
		t.Errorf("limits = %d, %d", cfg.MaxMessageLength, cfg.OutboundQueueCap)
	}
	if cfg.TypingTTL != 5*time.Second || cfg.IdleToAway != 5*time.Minute {
		t.Errorf("timers = %v, %v", cfg.TypingTTL, cfg.IdleToAway)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("SERVICE_URI", "")
	t.Setenv("JWT_SECRET", "x")
	if _, err := Load(); err == nil {
		t.Error("missing SERVICE_URI should fail")
	}

	t.Setenv("SERVICE_URI", "dsn")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Error("missing JWT_SECRET should fail")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	setRequired(t)

	t.Setenv("MAX_MESSAGE_LENGTH", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("bad integer should fail")
	}
	t.Setenv("MAX_MESSAGE_LENGTH", "-5")
	if _, err := Load(); err == nil {
		t.Error("negative limit should fail")
	}
}

func TestHeartbeatGraceCoversTwoPings(t *testing.T) {
	setRequired(t)
	t.Setenv("HEARTBEAT_INTERVAL", "30s")
	t.Setenv("HEARTBEAT_GRACE", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HeartbeatGrace < 2*cfg.HeartbeatInterval {
		t.Errorf("grace %v must cover two %v intervals", cfg.HeartbeatGrace, cfg.HeartbeatInterval)
	}
}
