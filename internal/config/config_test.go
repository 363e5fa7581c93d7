package config

import (
	"log/slog"
	"testing"
	"time"

	"studentportal/internal/student"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ERROR_TIMEOUT", "")
	t.Setenv("ALLOW_PHOTO_REUSE", "")
	t.Setenv("STUDENT_IDENTIFIER", "")
	cfg := Load()
	if cfg.ErrorTimeout != 5*time.Second {
		t.Fatalf("ErrorTimeout = %v", cfg.ErrorTimeout)
	}
	if !cfg.AllowPhotoReuse {
		t.Fatal("AllowPhotoReuse should default to true")
	}
	if cfg.Identifier != student.ByNationalID {
		t.Fatalf("Identifier = %q", cfg.Identifier)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ERROR_TIMEOUT", "2s")
	t.Setenv("ALLOW_PHOTO_REUSE", "false")
	t.Setenv("STUDENT_IDENTIFIER", "SEAT_NUMBER")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOGIN_LOCKOUT_TTL", "nonsense")

	cfg := Load()
	if cfg.ErrorTimeout != 2*time.Second || cfg.AllowPhotoReuse {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Identifier != student.BySeatNumber {
		t.Fatalf("Identifier = %q", cfg.Identifier)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins = %q", cfg.CORSOrigins)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("SlogLevel = %v", cfg.SlogLevel())
	}
	if cfg.LoginLockoutTTL != 15*time.Minute {
		t.Fatalf("LoginLockoutTTL = %v", cfg.LoginLockoutTTL)
	}
}
