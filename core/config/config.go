package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"entity-persister/core/database"
	"entity-persister/core/logger"
	"entity-persister/core/server"
	"entity-persister/feature/persistence"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete application configuration, one section per concern.
type Config struct {
	Server      server.Config      `mapstructure:"server"`
	Log         logger.Config      `mapstructure:"log"`
	Database    database.Config    `mapstructure:"database"`
	Persistence persistence.Config `mapstructure:"persistence"`
}

// LoadConfig reads the optional .env file in dir, then the environment, and
// validates the result. Keys map to environment variables by section, e.g.
// persistence.load_concurrency is PERSISTENCE_LOAD_CONCURRENCY.
func LoadConfig(dir string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Overload(filepath.Join(dir, ".env"))

	v := viper.New()
	registerDefaults(v, reflect.TypeOf(Config{}), "")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case database.DriverMySQL, database.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	if c.Persistence.LoadConcurrency < 0 {
		errs = append(errs, fmt.Errorf("persistence.load_concurrency: must not be negative, got %d", c.Persistence.LoadConcurrency))
	}
	if _, err := c.Persistence.Location(); err != nil {
		errs = append(errs, fmt.Errorf("persistence.local_timezone: %w", err))
	}
	if c.Persistence.MetadataPath == "" {
		errs = append(errs, errors.New("persistence.metadata_path: required"))
	}
	return errors.Join(errs...)
}

// registerDefaults walks the struct type and registers every mapstructure key
// with its default tag. Keys must be registered for AutomaticEnv to see them
// during Unmarshal, so empty defaults are registered too.
func registerDefaults(v *viper.Viper, t reflect.Type, prefix string) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			registerDefaults(v, field.Type, key)
			continue
		}
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
