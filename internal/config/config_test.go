package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 8080
database:
  host: localhost
  port: 5432
  user: pins
  password: secret
  dbname: pins
  sslmode: disable
redis:
  addr: localhost:6379
s3:
  region: us-east-1
  bucket: pin-photos
jwt:
  secret: changeme
  access_ttl: 15m
auth:
  check_timeout: 20s
  max_attempts: 2
  retry_delay: 1500ms
upload:
  timeout: 30s
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Errorf("jwt.access_ttl = %v, want 15m", cfg.JWT.AccessTTL)
	}
	if cfg.Auth.CheckTimeout != 20*time.Second {
		t.Errorf("auth.check_timeout = %v, want 20s", cfg.Auth.CheckTimeout)
	}
	if cfg.Auth.MaxAttempts != 2 {
		t.Errorf("auth.max_attempts = %d, want 2", cfg.Auth.MaxAttempts)
	}
	if cfg.Auth.RetryDelay != 1500*time.Millisecond {
		t.Errorf("auth.retry_delay = %v, want 1.5s", cfg.Auth.RetryDelay)
	}
	if cfg.Upload.Timeout != 30*time.Second {
		t.Errorf("upload.timeout = %v, want 30s", cfg.Upload.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
jwt:
  secret: changeme
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.JWT.AccessTTL != time.Hour {
		t.Errorf("default access_ttl = %v, want 1h", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 30*24*time.Hour {
		t.Errorf("default refresh_ttl = %v, want 720h", cfg.JWT.RefreshTTL)
	}
	if cfg.Auth.CheckTimeout != 20*time.Second {
		t.Errorf("default check_timeout = %v, want 20s", cfg.Auth.CheckTimeout)
	}
	if cfg.Auth.MaxAttempts != 2 {
		t.Errorf("default max_attempts = %d, want 2", cfg.Auth.MaxAttempts)
	}
	if cfg.Auth.RetryDelay != 1500*time.Millisecond {
		t.Errorf("default retry_delay = %v, want 1.5s", cfg.Auth.RetryDelay)
	}
	if cfg.Upload.Timeout != 30*time.Second {
		t.Errorf("default upload.timeout = %v, want 30s", cfg.Upload.Timeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "pins",
		Password: "secret",
		DBName:   "pins",
		SSLMode:  "disable",
	}

	want := "host=localhost port=5432 user=pins password=secret dbname=pins sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}
