package gatelog

import (
	"os"
	"strconv"
	"time"

	"github.com/hyperengineering/gatelog/internal/kv"
	"github.com/hyperengineering/gatelog/internal/profile"
	engine "github.com/hyperengineering/gatelog/internal/sync"
	"github.com/hyperengineering/gatelog/internal/trigger"
)

// Config configures the gatelog client.
type Config struct {
	// LocalPath is the path to the local database.
	// If empty, LocalPath is derived from Profile.
	LocalPath string

	// Profile selects the local database under the profile root.
	// If empty, resolved as explicit > GATELOG_PROFILE env > "default".
	Profile string

	// Backend is the local storage engine: "sqlite" (default) or "bolt".
	Backend string

	// QuotaBytes limits local storage. Zero means no limit.
	QuotaBytes int64

	// RemoteURL is the base URL of the PostgREST-compatible remote store.
	// If empty and DatabaseURL is empty, operates offline only.
	RemoteURL string

	// APIKey is sent as the apikey header to RemoteURL.
	APIKey string

	// AccessToken is the bearer token of the signed-in account.
	// Defaults to APIKey.
	AccessToken string

	// DatabaseURL connects directly to the remote Postgres database instead
	// of RemoteURL.
	DatabaseURL string

	// OwnerID is the account that scopes every remote row (user_id).
	OwnerID string

	// Operator is recorded as the user of audit log entries.
	Operator string

	// PullWindow limits pulls to recently updated records.
	// Defaults to 7 days.
	PullWindow time.Duration

	// CycleTimeout bounds one sync cycle. Defaults to 2 minutes.
	CycleTimeout time.Duration

	// OperationTimeout bounds each remote call. Defaults to 30 seconds.
	OperationTimeout time.Duration

	// SyncInterval is how often the background runner syncs.
	// Defaults to 15 minutes.
	SyncInterval time.Duration

	// ProbeInterval is how often connectivity is polled for online
	// transitions. Defaults to 30 seconds.
	ProbeInterval time.Duration

	// IdleAfter is how long a finished status is shown before returning to
	// idle. Defaults to 5 seconds.
	IdleAfter time.Duration

	// AutoSync starts the background runner when the client opens.
	AutoSync bool

	// Debug enables verbose logging of all remote API communications.
	Debug bool

	// DebugLogPath is the path to write debug logs.
	// Defaults to stderr if empty.
	DebugLogPath string

	// LogLevel is debug, info, warn or error. Defaults to info.
	LogLevel string

	// LogFile, when set, receives the structured log with rotation.
	// Defaults to stderr.
	LogFile string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Profile:          profile.Default,
		LocalPath:        profile.DBPath(profile.Default),
		Backend:          kv.BackendSQLite,
		PullWindow:       engine.DefaultPullWindow,
		CycleTimeout:     engine.DefaultCycleTimeout,
		OperationTimeout: engine.DefaultOperationTimeout,
		SyncInterval:     trigger.DefaultInterval,
		ProbeInterval:    trigger.DefaultProbeInterval,
		IdleAfter:        trigger.DefaultIdleAfter,
		LogLevel:         "info",
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	GATELOG_DB_PATH          → LocalPath
//	GATELOG_PROFILE          → Profile
//	GATELOG_BACKEND          → Backend
//	GATELOG_QUOTA_BYTES      → QuotaBytes
//	GATELOG_REMOTE_URL       → RemoteURL
//	GATELOG_API_KEY          → APIKey
//	GATELOG_ACCESS_TOKEN     → AccessToken
//	GATELOG_DATABASE_URL     → DatabaseURL
//	GATELOG_OWNER_ID         → OwnerID
//	GATELOG_OPERATOR         → Operator
//	GATELOG_PULL_WINDOW      → PullWindow (Go duration)
//	GATELOG_SYNC_INTERVAL    → SyncInterval (Go duration)
//	GATELOG_AUTO_SYNC        → AutoSync (any non-empty value enables)
//	GATELOG_DEBUG            → Debug (any non-empty value enables)
//	GATELOG_DEBUG_LOG        → DebugLogPath
//	GATELOG_LOG_LEVEL        → LogLevel
//	GATELOG_LOG_FILE         → LogFile
//
// Unparseable numbers and durations are left zero so WithDefaults fills them.
func ConfigFromEnv() Config {
	return Config{
		LocalPath:    os.Getenv("GATELOG_DB_PATH"),
		Profile:      os.Getenv("GATELOG_PROFILE"),
		Backend:      os.Getenv("GATELOG_BACKEND"),
		QuotaBytes:   envInt("GATELOG_QUOTA_BYTES"),
		RemoteURL:    os.Getenv("GATELOG_REMOTE_URL"),
		APIKey:       os.Getenv("GATELOG_API_KEY"),
		AccessToken:  os.Getenv("GATELOG_ACCESS_TOKEN"),
		DatabaseURL:  os.Getenv("GATELOG_DATABASE_URL"),
		OwnerID:      os.Getenv("GATELOG_OWNER_ID"),
		Operator:     os.Getenv("GATELOG_OPERATOR"),
		PullWindow:   envDuration("GATELOG_PULL_WINDOW"),
		SyncInterval: envDuration("GATELOG_SYNC_INTERVAL"),
		AutoSync:     os.Getenv("GATELOG_AUTO_SYNC") != "",
		Debug:        os.Getenv("GATELOG_DEBUG") != "",
		DebugLogPath: os.Getenv("GATELOG_DEBUG_LOG"),
		LogLevel:     os.Getenv("GATELOG_LOG_LEVEL"),
		LogFile:      os.Getenv("GATELOG_LOG_FILE"),
	}
}

func envInt(key string) int64 {
	n, _ := strconv.ParseInt(os.Getenv(key), 10, 64)
	return n
}

func envDuration(key string) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	return d
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "required: path to local database"}
	}

	if c.Profile != "" {
		if err := profile.ValidateID(c.Profile); err != nil {
			return &ValidationError{Field: "Profile", Message: err.Error()}
		}
	}

	switch c.Backend {
	case "", kv.BackendSQLite, kv.BackendBolt:
	default:
		return &ValidationError{Field: "Backend", Message: "must be sqlite or bolt"}
	}

	if c.QuotaBytes < 0 {
		return &ValidationError{Field: "QuotaBytes", Message: "must be non-negative"}
	}

	if c.RemoteURL != "" && c.APIKey == "" {
		return &ValidationError{Field: "APIKey", Message: "required when RemoteURL is set"}
	}

	if c.HasRemote() && c.OwnerID == "" {
		return &ValidationError{Field: "OwnerID", Message: "required when a remote store is set"}
	}

	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"PullWindow", c.PullWindow},
		{"CycleTimeout", c.CycleTimeout},
		{"OperationTimeout", c.OperationTimeout},
		{"SyncInterval", c.SyncInterval},
		{"ProbeInterval", c.ProbeInterval},
		{"IdleAfter", c.IdleAfter},
	} {
		if d.value < 0 {
			return &ValidationError{Field: d.field, Message: "must be non-negative"}
		}
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "LogLevel", Message: "must be debug, info, warn or error"}
	}

	return nil
}

// HasRemote reports whether a remote store is configured.
func (c *Config) HasRemote() bool {
	return c.RemoteURL != "" || c.DatabaseURL != ""
}

// WithDefaults fills in default values for unset fields.
// Profile resolution: explicit Profile field > GATELOG_PROFILE env > "default"
// LocalPath is derived from the resolved profile if not explicitly set.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.Profile == "" {
		resolved, err := profile.Resolve("")
		if err == nil {
			c.Profile = resolved
		} else {
			c.Profile = profile.Default
		}
	}
	if c.LocalPath == "" {
		c.LocalPath = profile.DBPath(c.Profile)
	}
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.AccessToken == "" {
		c.AccessToken = c.APIKey
	}
	if c.PullWindow == 0 {
		c.PullWindow = defaults.PullWindow
	}
	if c.CycleTimeout == 0 {
		c.CycleTimeout = defaults.CycleTimeout
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = defaults.OperationTimeout
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = defaults.SyncInterval
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = defaults.ProbeInterval
	}
	if c.IdleAfter == 0 {
		c.IdleAfter = defaults.IdleAfter
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}

	return c
}
