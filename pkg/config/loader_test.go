package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/config"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

type defaultsConfig struct {
	Name    string        `env:"CFGTEST_DEFAULT_NAME" envDefault:"mailqueue"`
	Retries int           `env:"CFGTEST_DEFAULT_RETRIES" envDefault:"3"`
	Enabled bool          `env:"CFGTEST_DEFAULT_ENABLED" envDefault:"true"`
	Every   time.Duration `env:"CFGTEST_DEFAULT_EVERY" envDefault:"1m"`
}

type overrideConfig struct {
	Name string `env:"CFGTEST_OVERRIDE_NAME" envDefault:"default"`
}

type cachedConfig struct {
	Value string `env:"CFGTEST_CACHED_VALUE"`
}

type requiredConfig struct {
	Value string `env:"CFGTEST_REQUIRED_VALUE,required"`
}

type concurrentConfig struct {
	Value string `env:"CFGTEST_CONCURRENT_VALUE" envDefault:"same"`
}

type fileConfig struct {
	Driver string   `env:"CFGTEST_FILE_DRIVER"`
	Port   int      `env:"CFGTEST_FILE_PORT"`
	Kinds  []string `env:"CFGTEST_FILE_KINDS" envSeparator:","`
	Quoted string   `env:"CFGTEST_FILE_QUOTED"`
}

type rangeConfig struct {
	Batch int `env:"CFGTEST_RANGE_BATCH" envDefault:"10"`
}

func (c rangeConfig) Validate() error {
	if c.Batch < 0 {
		return errors.New("batch must not be negative")
	}
	return nil
}

func TestLoad_Defaults(t *testing.T) {
	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "mailqueue", cfg.Name)
	assert.Equal(t, 3, cfg.Retries)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, time.Minute, cfg.Every)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CFGTEST_OVERRIDE_NAME", "from-env")

	var cfg overrideConfig
	require.NoError(t, config.ForceReloadConfig(&cfg))
	assert.Equal(t, "from-env", cfg.Name)
}

func TestLoad_Cached(t *testing.T) {
	t.Setenv("CFGTEST_CACHED_VALUE", "first")

	var first cachedConfig
	require.NoError(t, config.ForceReloadConfig(&first))

	t.Setenv("CFGTEST_CACHED_VALUE", "second")

	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)

	require.NoError(t, config.ForceReloadConfig(&second))
	assert.Equal(t, "second", second.Value)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("CFGTEST_REQUIRED_VALUE")

	var cfg requiredConfig
	err := config.ForceReloadConfig(&cfg)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	t.Setenv("CFGTEST_REQUIRED_VALUE", "set")
	require.NoError(t, config.Load(&cfg), "failed parses are not cached")
	assert.Equal(t, "set", cfg.Value)
}

func TestLoad_Validator(t *testing.T) {
	t.Setenv("CFGTEST_RANGE_BATCH", "-1")

	var cfg rangeConfig
	err := config.ForceReloadConfig(&cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	t.Setenv("CFGTEST_RANGE_BATCH", "25")
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 25, cfg.Batch)
}

func TestLoad_QueueConfig(t *testing.T) {
	t.Setenv("QUEUE_MAX_RETRIES", "5")
	t.Setenv("QUEUE_POLLING_INTERVAL", "30s")

	var cfg mailqueue.Config
	require.NoError(t, config.ForceReloadConfig(&cfg))
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.PollingInterval)

	t.Setenv("QUEUE_MAX_RETRIES", "0")
	err := config.ForceReloadConfig(&cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.ErrorIs(t, err, mailqueue.ErrInvalidConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *defaultsConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	assert.ErrorIs(t, config.ForceReloadConfig(cfg), config.ErrNilPointer)
}

func TestLoad_Concurrent(t *testing.T) {
	config.ResetCache()

	var wg sync.WaitGroup
	results := make([]concurrentConfig, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, config.Load(&results[i]))
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "same", r.Value)
	}
}

func TestMustLoad(t *testing.T) {
	os.Unsetenv("CFGTEST_REQUIRED_VALUE")
	config.ResetCache()

	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
	assert.NotPanics(t, func() {
		var cfg defaultsConfig
		config.MustLoad(&cfg)
	})
}

func writeEnvFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEnv(t *testing.T) {
	for _, key := range []string{"CFGTEST_FILE_DRIVER", "CFGTEST_FILE_PORT", "CFGTEST_FILE_KINDS", "CFGTEST_FILE_QUOTED"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	base := writeEnvFile(t, ".env.base", "CFGTEST_FILE_DRIVER=memory\n"+
		"CFGTEST_FILE_PORT=8080\n"+
		"CFGTEST_FILE_KINDS=welcome,confirmation,password_reset\n"+
		"CFGTEST_FILE_QUOTED=\"quoted value\"\n")
	override := writeEnvFile(t, ".env.override", "CFGTEST_FILE_DRIVER=postgres\n")

	require.NoError(t, config.LoadEnv(base, override))

	var cfg fileConfig
	require.NoError(t, config.ForceReloadConfig(&cfg))
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"welcome", "confirmation", "password_reset"}, cfg.Kinds)
	assert.Equal(t, "quoted value", cfg.Quoted)
}

func TestLoadEnv_MissingFile(t *testing.T) {
	err := config.LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)

	assert.Panics(t, func() {
		config.MustLoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	})
}
