package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/gatelog"
	"github.com/hyperengineering/gatelog/internal/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "gatelog",
	Short: "Gatelog - offline-first gatehouse log",
	Long: `Gatelog keeps the gatehouse log (vehicle entries, deliveries, breakfast
lists, meters, patrols, shifts) in a local database and reconciles it with
the shared remote store whenever the network allows.

Configuration is read from flags, GATELOG_* environment variables and an
optional config file (YAML, TOML or JSON), in that order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// configKeys maps config keys to the flags that can set them. Every key is
// also read from GATELOG_<KEY> and from the config file.
var configKeys = []struct {
	key  string
	flag string
}{
	{"profile", "profile"},
	{"db_path", "db-path"},
	{"backend", "backend"},
	{"quota_bytes", ""},
	{"remote_url", "remote-url"},
	{"api_key", "api-key"},
	{"access_token", ""},
	{"database_url", "database-url"},
	{"owner_id", "owner"},
	{"operator", "operator"},
	{"pull_window", ""},
	{"cycle_timeout", ""},
	{"operation_timeout", ""},
	{"sync_interval", "interval"},
	{"probe_interval", ""},
	{"idle_after", ""},
	{"debug", "debug"},
	{"debug_log", ""},
	{"log_level", "log-level"},
	{"log_file", "log-file"},
}

// fileConfig is the shape of the config file.
type fileConfig struct {
	Profile          string        `mapstructure:"profile"`
	DBPath           string        `mapstructure:"db_path"`
	Backend          string        `mapstructure:"backend"`
	QuotaBytes       int64         `mapstructure:"quota_bytes"`
	RemoteURL        string        `mapstructure:"remote_url"`
	APIKey           string        `mapstructure:"api_key"`
	AccessToken      string        `mapstructure:"access_token"`
	DatabaseURL      string        `mapstructure:"database_url"`
	OwnerID          string        `mapstructure:"owner_id"`
	Operator         string        `mapstructure:"operator"`
	PullWindow       time.Duration `mapstructure:"pull_window"`
	CycleTimeout     time.Duration `mapstructure:"cycle_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	SyncInterval     time.Duration `mapstructure:"sync_interval"`
	ProbeInterval    time.Duration `mapstructure:"probe_interval"`
	IdleAfter        time.Duration `mapstructure:"idle_after"`
	Debug            bool          `mapstructure:"debug"`
	DebugLog         string        `mapstructure:"debug_log"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFile          string        `mapstructure:"log_file"`
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: config.yaml next to the profiles directory)")
	pf.String("profile", "", "Local profile (default: $GATELOG_PROFILE or 'default')")
	pf.String("db-path", "", "Path to the local database (overrides --profile)")
	pf.String("backend", "", "Local storage engine: sqlite, bolt")
	pf.String("remote-url", "", "Base URL of the remote store REST API")
	pf.String("api-key", "", "API key for the remote store")
	pf.String("database-url", "", "Postgres URL of the remote store (instead of --remote-url)")
	pf.String("owner", "", "Account id that owns the remote rows")
	pf.String("operator", "", "Operator name recorded in the audit log")
	pf.Bool("debug", false, "Trace remote requests and responses")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-file", "", "Write logs to a rotating file instead of stderr")
	pf.BoolVar(&outputJSON, "json", false, "Output as JSON")
}

// newViper layers flags over GATELOG_* env over the config file.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("GATELOG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	for _, k := range configKeys {
		if err := v.BindEnv(k.key); err != nil {
			return nil, err
		}
		if k.flag == "" {
			continue
		}
		if f := cmd.Flags().Lookup(k.flag); f != nil {
			if err := v.BindPFlag(k.key, f); err != nil {
				return nil, err
			}
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Dir(profile.Root()))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// loadConfig resolves the client configuration for cmd. logLevel applies
// when no level is configured.
func loadConfig(cmd *cobra.Command, logLevel string) (gatelog.Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return gatelog.Config{}, err
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return gatelog.Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg := gatelog.Config{
		Profile:          fc.Profile,
		LocalPath:        fc.DBPath,
		Backend:          fc.Backend,
		QuotaBytes:       fc.QuotaBytes,
		RemoteURL:        fc.RemoteURL,
		APIKey:           fc.APIKey,
		AccessToken:      fc.AccessToken,
		DatabaseURL:      fc.DatabaseURL,
		OwnerID:          fc.OwnerID,
		Operator:         fc.Operator,
		PullWindow:       fc.PullWindow,
		CycleTimeout:     fc.CycleTimeout,
		OperationTimeout: fc.OperationTimeout,
		SyncInterval:     fc.SyncInterval,
		ProbeInterval:    fc.ProbeInterval,
		IdleAfter:        fc.IdleAfter,
		Debug:            fc.Debug,
		DebugLogPath:     fc.DebugLog,
		LogLevel:         fc.LogLevel,
		LogFile:          fc.LogFile,
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	return cfg.WithDefaults(), nil
}

// openClient builds a client for one-shot commands.
func openClient(cmd *cobra.Command, opts ...gatelog.Option) (*gatelog.Client, gatelog.Config, error) {
	cfg, err := loadConfig(cmd, "warn")
	if err != nil {
		return nil, cfg, err
	}
	client, err := gatelog.New(cfg, opts...)
	if err != nil {
		return nil, cfg, fmt.Errorf("initialize client: %w", err)
	}
	return client, cfg, nil
}
