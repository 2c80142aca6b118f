package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	os.Setenv("HTTP_ADDRESS", "")
	os.Setenv("WAKE_PHRASES", "")
	os.Setenv("WAKE_RESTART_DELAY_MS", "")
	os.Setenv("OWNER_ID", "")
	cfg := Load()
	if cfg.HTTPAddress == "" {
		t.Fatalf("expected default http address")
	}
	if len(cfg.WakePhrases) == 0 {
		t.Fatalf("expected default wake phrases")
	}
	if cfg.WakeRestartDelay != 300*time.Millisecond {
		t.Fatalf("expected default restart delay, got %v", cfg.WakeRestartDelay)
	}
	if cfg.OwnerID == "" {
		t.Fatalf("expected default owner id")
	}
}

func TestLoad_WakePhraseList(t *testing.T) {
	os.Setenv("WAKE_PHRASES", " hey friday , friday ,")
	defer os.Unsetenv("WAKE_PHRASES")
	cfg := Load()
	if len(cfg.WakePhrases) != 2 || cfg.WakePhrases[0] != "hey friday" || cfg.WakePhrases[1] != "friday" {
		t.Fatalf("unexpected phrases: %v", cfg.WakePhrases)
	}
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	os.Setenv("MIC_HANDOFF_GRACE_MS", "soon")
	defer os.Unsetenv("MIC_HANDOFF_GRACE_MS")
	cfg := Load()
	if cfg.MicHandoffGrace != 300*time.Millisecond {
		t.Fatalf("expected fallback grace, got %v", cfg.MicHandoffGrace)
	}
}
