package persistence

import (
	"fmt"
	"time"

	"entity-persister/core/metadata"
	"entity-persister/core/reconcile"
)

// Config holds configuration for the persistence feature.
type Config struct {
	// LocalTimezone is the IANA zone used for zone-less date and time values
	// and for local_timezone datetime columns.
	LocalTimezone string `mapstructure:"local_timezone" default:"Local"`
	// LoadConcurrency bounds concurrent snapshot loads per unit of work.
	LoadConcurrency int `mapstructure:"load_concurrency" default:"8"`
	// MetadataPath is the YAML file holding the entity definitions.
	MetadataPath string `mapstructure:"metadata_path" default:"entities.yaml"`
}

// Location resolves LocalTimezone.
func (c Config) Location() (*time.Location, error) {
	if c.LocalTimezone == "" || c.LocalTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.LocalTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid local_timezone %q: %w", c.LocalTimezone, err)
	}
	return loc, nil
}

// Concurrency returns LoadConcurrency, defaulting to
// reconcile.DefaultLoadConcurrency.
func (c Config) Concurrency() int {
	if c.LoadConcurrency <= 0 {
		return reconcile.DefaultLoadConcurrency
	}
	return c.LoadConcurrency
}

// LoadRegistry reads the entity definitions at MetadataPath.
func (c Config) LoadRegistry() (*metadata.Registry, error) {
	entities, err := metadata.LoadFile(c.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity definitions: %w", err)
	}
	reg := metadata.NewRegistry()
	if err := reg.Load(entities); err != nil {
		return nil, fmt.Errorf("failed to load entity definitions: %w", err)
	}
	return reg, nil
}
