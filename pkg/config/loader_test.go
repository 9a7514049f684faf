package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/config"
)

type queueDefaults struct {
	PrimaryLane string        `env:"CFGTEST_PRIMARY_LANE" envDefault:"notifications"`
	MaxAttempts int           `env:"CFGTEST_MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay  time.Duration `env:"CFGTEST_RETRY_DELAY" envDefault:"5s"`
	DeadLetters bool          `env:"CFGTEST_DEAD_LETTERS" envDefault:"true"`
}

type queueOverrides struct {
	PrimaryLane string `env:"CFGTEST_OVERRIDE_LANE" envDefault:"notifications"`
	MaxAttempts int    `env:"CFGTEST_OVERRIDE_ATTEMPTS" envDefault:"3"`
}

type cachedConfig struct {
	Value string `env:"CFGTEST_CACHED" envDefault:"default"`
}

type brokerConfig struct {
	Driver string `env:"CFGTEST_BROKER_DRIVER" envDefault:"amqp"`
}

type storeConfig struct {
	Driver string `env:"CFGTEST_STORE_DRIVER" envDefault:"memory"`
}

type requiredConfig struct {
	URL string `env:"CFGTEST_REQUIRED_URL,required"`
}

type validatedConfig struct {
	MaxAttempts int `env:"CFGTEST_VALIDATED_ATTEMPTS" envDefault:"3"`
}

func (c validatedConfig) Validate() error {
	if c.MaxAttempts < 0 {
		return errors.New("max attempts must not be negative")
	}
	return nil
}

type envFileConfig struct {
	Lane     string `env:"CFGTEST_FILE_LANE"`
	Attempts int    `env:"CFGTEST_FILE_ATTEMPTS"`
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	var cfg queueDefaults
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "notifications", cfg.PrimaryLane)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.True(t, cfg.DeadLetters)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CFGTEST_OVERRIDE_LANE", "jobs")
	t.Setenv("CFGTEST_OVERRIDE_ATTEMPTS", "5")

	var cfg queueOverrides
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "jobs", cfg.PrimaryLane)
	assert.Equal(t, 5, cfg.MaxAttempts)
}

func TestLoad_Cached(t *testing.T) {
	t.Setenv("CFGTEST_CACHED", "first")

	var first cachedConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("CFGTEST_CACHED", "second")

	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)

	require.NoError(t, config.ForceReloadConfig(&second))
	assert.Equal(t, "second", second.Value)

	var third cachedConfig
	require.NoError(t, config.Load(&third))
	assert.Equal(t, "second", third.Value)
}

func TestLoad_DifferentTypes(t *testing.T) {
	t.Setenv("CFGTEST_BROKER_DRIVER", "redis")
	t.Setenv("CFGTEST_STORE_DRIVER", "mongo")

	var b brokerConfig
	require.NoError(t, config.Load(&b))
	var s storeConfig
	require.NoError(t, config.Load(&s))

	assert.Equal(t, "redis", b.Driver)
	assert.Equal(t, "mongo", s.Driver)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("CFGTEST_REQUIRED_URL")

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	t.Setenv("CFGTEST_REQUIRED_URL", "amqp://localhost")
	require.NoError(t, config.Load(&cfg), "failed parse must not poison the cache")
	assert.Equal(t, "amqp://localhost", cfg.URL)
}

func TestLoad_Validate(t *testing.T) {
	t.Setenv("CFGTEST_VALIDATED_ATTEMPTS", "-1")

	var cfg validatedConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *queueDefaults
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	assert.ErrorIs(t, config.ForceReloadConfig(cfg), config.ErrNilPointer)
}

func TestMustLoad(t *testing.T) {
	os.Unsetenv("CFGTEST_REQUIRED_URL")
	config.ResetCache()

	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}

func TestLoadEnv(t *testing.T) {
	t.Run("single file", func(t *testing.T) {
		os.Unsetenv("CFGTEST_FILE_LANE")
		os.Unsetenv("CFGTEST_FILE_ATTEMPTS")
		t.Cleanup(func() {
			os.Unsetenv("CFGTEST_FILE_LANE")
			os.Unsetenv("CFGTEST_FILE_ATTEMPTS")
		})
		config.ResetCache()

		path := writeEnvFile(t, "CFGTEST_FILE_LANE=notifications\nCFGTEST_FILE_ATTEMPTS=3\n")
		require.NoError(t, config.LoadEnv(path))

		var cfg envFileConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "notifications", cfg.Lane)
		assert.Equal(t, 3, cfg.Attempts)
	})

	t.Run("later files override earlier ones", func(t *testing.T) {
		os.Unsetenv("CFGTEST_FILE_LANE")
		os.Unsetenv("CFGTEST_FILE_ATTEMPTS")
		t.Cleanup(func() {
			os.Unsetenv("CFGTEST_FILE_LANE")
			os.Unsetenv("CFGTEST_FILE_ATTEMPTS")
		})
		config.ResetCache()

		base := writeEnvFile(t, "CFGTEST_FILE_LANE=notifications\nCFGTEST_FILE_ATTEMPTS=3\n")
		override := writeEnvFile(t, "CFGTEST_FILE_ATTEMPTS=7\n")
		require.NoError(t, config.LoadEnv(base, override))

		var cfg envFileConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "notifications", cfg.Lane)
		assert.Equal(t, 7, cfg.Attempts)
	})

	t.Run("missing file", func(t *testing.T) {
		err := config.LoadEnv(filepath.Join(t.TempDir(), "absent.env"))
		assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
		assert.Panics(t, func() {
			config.MustLoadEnv(filepath.Join(t.TempDir(), "absent.env"))
		})
	})
}
