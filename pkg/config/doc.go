// Package config loads typed configuration from the process environment.
//
// Structs describe their variables with caarlos0/env tags. Load parses a
// struct once per process and serves later calls from a cache, so every
// package can ask for its own Config without re-parsing. A .env file in the
// working directory is read on first use when present (joho/godotenv);
// LoadEnv reads explicit files instead.
//
//	type Config struct {
//		MaxAttempts int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
//		RetryDelay  time.Duration `env:"QUEUE_RETRY_DELAY" envDefault:"5s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Structs implementing Validator are checked after parsing and rejected with
// ErrInvalidConfig. Parse failures wrap ErrParsingConfig. Tests can call
// ResetCache or ForceReloadConfig after changing the environment.
package config
