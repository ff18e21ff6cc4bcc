// Package config loads typed configuration from the process environment.
//
// Values come from environment variables described with caarlos0/env struct
// tags; a .env file in the working directory is read once with godotenv and
// never overrides variables that are already set. Each config type is parsed
// once and cached, so packages can call Load for their own struct without
// coordinating.
//
//	type Config struct {
//		URL  string `env:"DB_URL,required"`
//		Name string `env:"DB_NAME" envDefault:"qrmenu"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by config structs that check cross-field rules
// after parsing.
type Validator interface {
	Validate() error
}

var (
	cache         sync.Map // reflect.Type -> cached value
	dotenvLoaded  sync.Once
	loadTypeMutex sync.Mutex
)

// Load fills v from the environment. Subsequent calls for the same type
// return the cached copy.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvLoaded.Do(func() {
		// a missing .env file is fine
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()
	if cached, ok := cache.Load(key); ok {
		*v = cached.(T)
		return nil
	}

	loadTypeMutex.Lock()
	defer loadTypeMutex.Unlock()

	if cached, ok := cache.Load(key); ok {
		*v = cached.(T)
		return nil
	}

	parsed, err := Parse[T]()
	if err != nil {
		return err
	}
	cache.Store(key, parsed)
	*v = parsed
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Parse reads T from the current environment without touching the cache.
func Parse[T any]() (T, error) {
	var v T
	if err := env.Parse(&v); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return v, errors.Join(ErrInvalidConfig, err)
		}
	}
	return v, nil
}
