package gatelog_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/gatelog"
)

func TestConfig_Validate_ValidLocalOnly(t *testing.T) {
	cfg := gatelog.Config{LocalPath: "/tmp/test.db"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned error for valid local-only config: %v", err)
	}
}

func TestConfig_Validate_ValidWithRemote(t *testing.T) {
	cfg := gatelog.Config{
		LocalPath: "/tmp/test.db",
		RemoteURL: "https://project.supabase.co",
		APIKey:    "anon-key",
		OwnerID:   "owner-1",
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned error for valid remote config: %v", err)
	}
}

func TestConfig_Validate_Errors(t *testing.T) {
	base := func() gatelog.Config {
		return gatelog.Config{LocalPath: "/tmp/test.db"}
	}
	tests := []struct {
		name  string
		edit  func(*gatelog.Config)
		field string
	}{
		{"missing local path", func(c *gatelog.Config) { c.LocalPath = "" }, "LocalPath"},
		{"invalid profile", func(c *gatelog.Config) { c.Profile = "Not Valid" }, "Profile"},
		{"unknown backend", func(c *gatelog.Config) { c.Backend = "redis" }, "Backend"},
		{"negative quota", func(c *gatelog.Config) { c.QuotaBytes = -1 }, "QuotaBytes"},
		{"remote without key", func(c *gatelog.Config) {
			c.RemoteURL = "https://project.supabase.co"
			c.OwnerID = "owner-1"
		}, "APIKey"},
		{"remote without owner", func(c *gatelog.Config) {
			c.DatabaseURL = "postgres://localhost/gatelog"
		}, "OwnerID"},
		{"negative interval", func(c *gatelog.Config) { c.SyncInterval = -time.Second }, "SyncInterval"},
		{"negative window", func(c *gatelog.Config) { c.PullWindow = -time.Hour }, "PullWindow"},
		{"bad log level", func(c *gatelog.Config) { c.LogLevel = "verbose" }, "LogLevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.edit(&cfg)
			err := cfg.Validate()

			var ve *gatelog.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() returned %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestConfigFromEnv_ReadsVars(t *testing.T) {
	t.Setenv("GATELOG_DB_PATH", "/tmp/env-test.db")
	t.Setenv("GATELOG_REMOTE_URL", "https://project.supabase.co")
	t.Setenv("GATELOG_API_KEY", "env-key")
	t.Setenv("GATELOG_OWNER_ID", "owner-env")
	t.Setenv("GATELOG_BACKEND", "bolt")
	t.Setenv("GATELOG_QUOTA_BYTES", "5242880")
	t.Setenv("GATELOG_PULL_WINDOW", "72h")
	t.Setenv("GATELOG_DEBUG", "1")

	cfg := gatelog.ConfigFromEnv()

	if cfg.LocalPath != "/tmp/env-test.db" {
		t.Errorf("LocalPath = %q", cfg.LocalPath)
	}
	if cfg.RemoteURL != "https://project.supabase.co" || cfg.APIKey != "env-key" || cfg.OwnerID != "owner-env" {
		t.Errorf("remote fields = %q %q %q", cfg.RemoteURL, cfg.APIKey, cfg.OwnerID)
	}
	if cfg.Backend != "bolt" {
		t.Errorf("Backend = %q, want bolt", cfg.Backend)
	}
	if cfg.QuotaBytes != 5242880 {
		t.Errorf("QuotaBytes = %d", cfg.QuotaBytes)
	}
	if cfg.PullWindow != 72*time.Hour {
		t.Errorf("PullWindow = %v, want 72h", cfg.PullWindow)
	}
	if !cfg.Debug {
		t.Error("Debug should be enabled")
	}
}

func TestConfigFromEnv_BadDurationLeftForDefaults(t *testing.T) {
	t.Setenv("GATELOG_SYNC_INTERVAL", "soon")

	cfg := gatelog.ConfigFromEnv().WithDefaults()
	if cfg.SyncInterval != 15*time.Minute {
		t.Errorf("SyncInterval = %v, want default 15m", cfg.SyncInterval)
	}
}

func TestWithDefaults_ResolvesProfilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("GATELOG_HOME", home)
	t.Setenv("GATELOG_PROFILE", "gate-2")

	cfg := gatelog.Config{}.WithDefaults()

	if cfg.Profile != "gate-2" {
		t.Errorf("Profile = %q, want gate-2", cfg.Profile)
	}
	if want := filepath.Join(home, "profiles", "gate-2", "gatelog.db"); cfg.LocalPath != want {
		t.Errorf("LocalPath = %q, want %q", cfg.LocalPath, want)
	}
	if cfg.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Backend)
	}
}

func TestWithDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := gatelog.Config{
		LocalPath:    "/custom/path.db",
		APIKey:       "anon",
		AccessToken:  "user-jwt",
		SyncInterval: time.Minute,
	}.WithDefaults()

	if cfg.LocalPath != "/custom/path.db" {
		t.Errorf("LocalPath = %q", cfg.LocalPath)
	}
	if cfg.AccessToken != "user-jwt" {
		t.Errorf("AccessToken = %q, want user-jwt", cfg.AccessToken)
	}
	if cfg.SyncInterval != time.Minute {
		t.Errorf("SyncInterval = %v, want 1m", cfg.SyncInterval)
	}
}

func TestWithDefaults_AccessTokenFallsBackToAPIKey(t *testing.T) {
	cfg := gatelog.Config{LocalPath: "/tmp/x.db", APIKey: "anon"}.WithDefaults()
	if cfg.AccessToken != "anon" {
		t.Errorf("AccessToken = %q, want anon", cfg.AccessToken)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := gatelog.DefaultConfig()
	if !strings.HasSuffix(cfg.LocalPath, filepath.Join("default", "gatelog.db")) {
		t.Errorf("LocalPath = %q", cfg.LocalPath)
	}
	if cfg.PullWindow != 7*24*time.Hour {
		t.Errorf("PullWindow = %v", cfg.PullWindow)
	}
	if cfg.HasRemote() {
		t.Error("default config should be offline only")
	}
}
