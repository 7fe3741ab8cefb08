// Package config provides configuration management for the entity persister.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key)
//   - Database: MySQL or SQLite connection details
//   - Log: Logging level and format
//   - Persistence: entity definition file, local timezone and snapshot load concurrency
//
// LoadConfig validates the result: unsupported drivers, unknown time zones and a
// negative load concurrency are reported together.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Persistence.MetadataPath)
package config
