package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, expected %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.SideEffects.TimeoutSeconds != 10 {
		t.Errorf("SideEffects.TimeoutSeconds = %d, expected 10", cfg.SideEffects.TimeoutSeconds)
	}
	if cfg.SystemLog.CleanupCron != "@daily" {
		t.Errorf("SystemLog.CleanupCron = %q, expected %q", cfg.SystemLog.CleanupCron, "@daily")
	}
}

func TestLoad_FileKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: \"9090\"\nregistrar:\n  url: https://registrar.example.com/projects\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, expected %q", cfg.Server.Port, "9090")
	}
	if cfg.Registrar.URL != "https://registrar.example.com/projects" {
		t.Errorf("Registrar.URL = %q", cfg.Registrar.URL)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, expected default", cfg.Server.Host)
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("EXTERNAL_API_URL", "https://ext.example.com")
	t.Setenv("EXTERNAL_API_KEY", "key-123")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("FRONTEND_URL", "https://hub.example.com")

	cfg := DefaultConfig()
	cfg.overrideFromEnv()

	if cfg.Registrar.URL != "https://ext.example.com" || cfg.Registrar.APIKey != "key-123" {
		t.Errorf("registrar not overridden: %+v", cfg.Registrar)
	}
	if !cfg.Email.Enabled || cfg.Email.Host != "smtp.example.com" || cfg.Email.Port != 2525 {
		t.Errorf("email not overridden: %+v", cfg.Email)
	}
	if cfg.App.FrontendURL != "https://hub.example.com" {
		t.Errorf("App.FrontendURL = %q", cfg.App.FrontendURL)
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		db       int
	}{
		{"host only", "redis://localhost:6379", "localhost:6379", "", 0},
		{"with password and db", "redis://:secret@cache:6380/2", "cache:6380", "secret", 2},
		{"user and password", "redis://user:pw@cache:6379/1", "cache:6379", "pw", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.parseRedisURL(tt.url)
			if cfg.Redis.Addr != tt.addr {
				t.Errorf("Addr = %q, expected %q", cfg.Redis.Addr, tt.addr)
			}
			if cfg.Redis.Password != tt.password {
				t.Errorf("Password = %q, expected %q", cfg.Redis.Password, tt.password)
			}
			if cfg.Redis.DB != tt.db {
				t.Errorf("DB = %d, expected %d", cfg.Redis.DB, tt.db)
			}
		})
	}
}

func TestSideEffectTimeout(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.SideEffectTimeout(); got != 10*time.Second {
		t.Errorf("SideEffectTimeout() = %v, expected 10s", got)
	}

	cfg.SideEffects.TimeoutSeconds = 0
	if got := cfg.SideEffectTimeout(); got != 10*time.Second {
		t.Errorf("SideEffectTimeout() with zero = %v, expected 10s", got)
	}

	cfg.SideEffects.TimeoutSeconds = 3
	if got := cfg.SideEffectTimeout(); got != 3*time.Second {
		t.Errorf("SideEffectTimeout() = %v, expected 3s", got)
	}
}
