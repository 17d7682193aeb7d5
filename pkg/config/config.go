// Package config loads pricewatch settings from flags, environment
// variables, an optional .env file and an optional config.yaml.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. PRICEWATCH_STORE_PATH.
const EnvPrefix = "PRICEWATCH"

// Keys understood by Load.
const (
	KeyStoreBackend      = "store.backend"
	KeyStorePath         = "store.path"
	KeyStoreSQLitePath   = "store.sqlite_path"
	KeyStoreLockTimeout  = "store.lock_timeout"
	KeyFetchTimeout      = "fetch.timeout"
	KeyFetchMaxBytes     = "fetch.max_bytes"
	KeyFetchUserAgent    = "fetch.user_agent"
	KeyFetchRetries      = "fetch.retry_attempts"
	KeyFetchRetryDelay   = "fetch.retry_delay"
	KeyDiscoveryEndpoint = "discovery.endpoint"
	KeyDiscoveryTrusted  = "discovery.trusted_domains"
	KeyLogLevel          = "log_level"
	KeyLogFormat         = "log_format"
	KeyTracingEnabled    = "tracing.enabled"
	KeyTracingSampler    = "tracing.sampler"
	KeyTracingRatio      = "tracing.ratio"
)

// StoreSettings selects the persistence backend.
type StoreSettings struct {
	Backend     string
	Path        string
	SQLitePath  string
	LockTimeout time.Duration
}

// FetchSettings bounds every HTTP request.
type FetchSettings struct {
	Timeout       time.Duration
	MaxBytes      int64
	UserAgent     string
	RetryAttempts int
	RetryDelay    time.Duration
}

// DiscoverySettings configures search-based URL discovery.
type DiscoverySettings struct {
	Endpoint string
	// TrustedDomains replaces the built-in allow-list when non-empty.
	TrustedDomains []string
}

// TracingSettings configures OpenTelemetry export.
type TracingSettings struct {
	Enabled bool
	Sampler string
	Ratio   float64
}

// Settings is the resolved configuration of one invocation.
type Settings struct {
	Store     StoreSettings
	Fetch     FetchSettings
	Discovery DiscoverySettings
	LogLevel  string
	LogFormat string
	Tracing   TracingSettings
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStoreBackend, "json")
	v.SetDefault(KeyStorePath, "~/.pricewatch/watchers.json")
	v.SetDefault(KeyStoreSQLitePath, "~/.pricewatch/watchers.db")
	v.SetDefault(KeyStoreLockTimeout, 30*time.Second)
	v.SetDefault(KeyFetchTimeout, 12*time.Second)
	v.SetDefault(KeyFetchMaxBytes, 2_000_000)
	v.SetDefault(KeyFetchUserAgent, "Mozilla/5.0 (compatible; PriceWatcher/1.1)")
	v.SetDefault(KeyFetchRetries, 1)
	v.SetDefault(KeyFetchRetryDelay, 500*time.Millisecond)
	v.SetDefault(KeyDiscoveryEndpoint, "https://html.duckduckgo.com/html/")
	v.SetDefault(KeyDiscoveryTrusted, []string{})
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "fmt")
	v.SetDefault(KeyTracingEnabled, false)
	v.SetDefault(KeyTracingSampler, "ratio")
	v.SetDefault(KeyTracingRatio, 1.0)
}

// Init prepares v: defaults, environment binding and the config file.
// configFile overrides the search of $HOME/.pricewatch and the working
// directory for config.yaml. A missing search-path config is not an error;
// a missing explicit one is.
func Init(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", configFile)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.pricewatch")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
	}
	return nil
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

// Load resolves Settings from v and validates them.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Store: StoreSettings{
			Backend:     strings.ToLower(strings.TrimSpace(v.GetString(KeyStoreBackend))),
			Path:        v.GetString(KeyStorePath),
			SQLitePath:  v.GetString(KeyStoreSQLitePath),
			LockTimeout: v.GetDuration(KeyStoreLockTimeout),
		},
		Fetch: FetchSettings{
			Timeout:       v.GetDuration(KeyFetchTimeout),
			MaxBytes:      v.GetInt64(KeyFetchMaxBytes),
			UserAgent:     v.GetString(KeyFetchUserAgent),
			RetryAttempts: v.GetInt(KeyFetchRetries),
			RetryDelay:    v.GetDuration(KeyFetchRetryDelay),
		},
		Discovery: DiscoverySettings{
			Endpoint:       v.GetString(KeyDiscoveryEndpoint),
			TrustedDomains: splitList(v.GetStringSlice(KeyDiscoveryTrusted)),
		},
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
		Tracing: TracingSettings{
			Enabled: v.GetBool(KeyTracingEnabled),
			Sampler: v.GetString(KeyTracingSampler),
			Ratio:   v.GetFloat64(KeyTracingRatio),
		},
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// splitList flattens comma separated entries, as environment variables
// carry lists as a single string.
func splitList(in []string) []string {
	out := []string{}
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
