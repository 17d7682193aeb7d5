package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "json", s.Store.Backend)
	assert.Equal(t, "~/.pricewatch/watchers.json", s.Store.Path)
	assert.Equal(t, "~/.pricewatch/watchers.db", s.Store.SQLitePath)
	assert.Equal(t, 30*time.Second, s.Store.LockTimeout)
	assert.Equal(t, 12*time.Second, s.Fetch.Timeout)
	assert.Equal(t, int64(2_000_000), s.Fetch.MaxBytes)
	assert.Equal(t, 1, s.Fetch.RetryAttempts)
	assert.Equal(t, "https://html.duckduckgo.com/html/", s.Discovery.Endpoint)
	assert.Empty(t, s.Discovery.TrustedDomains)
	assert.Equal(t, "warn", s.LogLevel)
	assert.False(t, s.Tracing.Enabled)
}

func TestInit_Environment(t *testing.T) {
	t.Setenv("PRICEWATCH_STORE_BACKEND", "SQLite")
	t.Setenv("PRICEWATCH_STORE_SQLITE_PATH", "/tmp/w.db")
	t.Setenv("PRICEWATCH_FETCH_TIMEOUT", "3s")
	t.Setenv("PRICEWATCH_FETCH_RETRY_ATTEMPTS", "4")
	t.Setenv("PRICEWATCH_DISCOVERY_TRUSTED_DOMAINS", "shop.cl, *.tienda.cl")
	t.Chdir(t.TempDir())

	v := viper.New()
	require.NoError(t, Init(v, ""))

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Store.Backend)
	assert.Equal(t, "/tmp/w.db", s.Store.SQLitePath)
	assert.Equal(t, 3*time.Second, s.Fetch.Timeout)
	assert.Equal(t, 4, s.Fetch.RetryAttempts)
	assert.Equal(t, []string{"shop.cl", "*.tienda.cl"}, s.Discovery.TrustedDomains)
}

func TestInit_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricewatch.yaml")
	content := `
store:
  path: /data/watchers.json
fetch:
  max_bytes: 1000
discovery:
  trusted_domains:
    - paris.cl
    - ripley.cl
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	require.NoError(t, Init(v, path))

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/data/watchers.json", s.Store.Path)
	assert.Equal(t, int64(1000), s.Fetch.MaxBytes)
	assert.Equal(t, []string{"paris.cl", "ripley.cl"}, s.Discovery.TrustedDomains)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestInit_MissingExplicitConfigFile(t *testing.T) {
	err := Init(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestInit_SearchPathConfigOptional(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	assert.NoError(t, Init(viper.New(), ""))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PRICEWATCH_LOG_LEVEL=info\nPRICEWATCH_LOG_FORMAT=json\n"), 0o644))

	t.Setenv("PRICEWATCH_LOG_FORMAT", "fmt")
	os.Unsetenv("PRICEWATCH_LOG_LEVEL")
	t.Cleanup(func() { os.Unsetenv("PRICEWATCH_LOG_LEVEL") })

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "info", os.Getenv("PRICEWATCH_LOG_LEVEL"))
	assert.Equal(t, "fmt", os.Getenv("PRICEWATCH_LOG_FORMAT"), "existing variables win")
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		v := viper.New()
		SetDefaults(v)
		s, err := Load(v)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name   string
		mutate func(s *Settings)
		want   []string
	}{
		{"unknown backend", func(s *Settings) { s.Store.Backend = "redis" }, []string{`store.backend must be json or sqlite, got "redis"`}},
		{"empty json path", func(s *Settings) { s.Store.Path = "" }, []string{"store.path must not be empty"}},
		{"sqlite ignores json path", func(s *Settings) { s.Store.Backend = "sqlite"; s.Store.Path = "" }, nil},
		{"bad endpoint", func(s *Settings) { s.Discovery.Endpoint = "ftp://search" }, []string{"discovery.endpoint"}},
		{"bad log level", func(s *Settings) { s.LogLevel = "loud" }, []string{`log_level "loud"`}},
		{
			"several problems at once",
			func(s *Settings) {
				s.Fetch.Timeout = 0
				s.Fetch.MaxBytes = -1
				s.Fetch.RetryAttempts = 0
				s.Tracing.Sampler = "sometimes"
				s.Tracing.Ratio = 2
				s.LogFormat = "xml"
			},
			[]string{"fetch.timeout", "fetch.max_bytes", "fetch.retry_attempts", "tracing.sampler", "tracing.ratio", "log_format"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Len(t, ve.Problems(), len(tt.want))
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
			assert.NotContains(t, err.Error(), "\n")
		})
	}
}
