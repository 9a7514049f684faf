package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by config structs that check their own values
// after parsing. Load rejects configs whose Validate returns an error.
type Validator interface {
	Validate() error
}

type configCache struct {
	mu     sync.RWMutex
	values map[string]any
	onces  map[string]*sync.Once
}

var (
	globalCache = &configCache{
		values: make(map[string]any),
		onces:  make(map[string]*sync.Once),
	}

	defaultEnvMu     sync.Mutex
	defaultEnvLoaded bool
)

// LoadEnv loads variables from the given .env files into the process
// environment. Without arguments the .env file in the working directory is
// used. Later files override earlier ones; variables already present in the
// process environment are left alone by the first file.
func LoadEnv(paths ...string) error {
	defaultEnvMu.Lock()
	defer defaultEnvMu.Unlock()

	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
		defaultEnvLoaded = true
		return nil
	}

	if err := godotenv.Load(paths[0]); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	if len(paths) > 1 {
		if err := godotenv.Overload(paths[1:]...); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
	}
	defaultEnvLoaded = true
	return nil
}

// MustLoadEnv is like LoadEnv but panics on failure.
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(fmt.Sprintf("failed to load env files: %v", err))
	}
}

func loadDefaultEnv() {
	defaultEnvMu.Lock()
	defer defaultEnvMu.Unlock()
	if defaultEnvLoaded {
		return
	}
	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load()
	defaultEnvLoaded = true
}

// Load parses environment variables into v. Each config type is parsed once
// per process and served from the cache afterwards.
//
// Example:
//
//	type QueueConfig struct {
//		MaxAttempts int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
//		RetryDelay  time.Duration `env:"QUEUE_RETRY_DELAY" envDefault:"5s"`
//	}
//
//	var cfg QueueConfig
//	if err := config.Load(&cfg); err != nil {
//		// Handle error
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	loadDefaultEnv()

	typeName := getTypeName[T]()

	globalCache.mu.RLock()
	if cached, ok := globalCache.values[typeName]; ok {
		*v = cached.(T)
		globalCache.mu.RUnlock()
		return nil
	}
	globalCache.mu.RUnlock()

	globalCache.mu.Lock()
	once, exists := globalCache.onces[typeName]
	if !exists {
		once = new(sync.Once)
		globalCache.onces[typeName] = once
	}
	globalCache.mu.Unlock()

	var err error
	once.Do(func() {
		err = parse(v)
		if err != nil {
			// Let a later call retry after the environment is fixed.
			globalCache.mu.Lock()
			delete(globalCache.onces, typeName)
			globalCache.mu.Unlock()
			return
		}

		globalCache.mu.Lock()
		globalCache.values[typeName] = *v
		globalCache.mu.Unlock()
	})
	if err != nil {
		return err
	}

	globalCache.mu.RLock()
	defer globalCache.mu.RUnlock()
	if cached, ok := globalCache.values[typeName]; ok {
		*v = cached.(T)
		return nil
	}
	return ErrConfigNotLoaded
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// ForceReloadConfig parses v again, bypassing and then refreshing the cache.
func ForceReloadConfig[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	loadDefaultEnv()

	if err := parse(v); err != nil {
		return err
	}

	typeName := getTypeName[T]()
	globalCache.mu.Lock()
	globalCache.values[typeName] = *v
	once := new(sync.Once)
	once.Do(func() {})
	globalCache.onces[typeName] = once
	globalCache.mu.Unlock()
	return nil
}

// ResetCache drops every cached config so the next Load parses again.
func ResetCache() {
	globalCache.mu.Lock()
	globalCache.values = make(map[string]any)
	globalCache.onces = make(map[string]*sync.Once)
	globalCache.mu.Unlock()
}

func parse[T any](v *T) error {
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	if val, ok := any(v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}
	return nil
}

func getTypeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", new(T))
	}
	return t.PkgPath() + "." + t.String()
}
