package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Connect establishes a connection to the configured database.
// It returns a *gorm.DB connection or an error if the connection fails.
// This is an optional connection, so callers should handle the error gracefully.
func Connect(cfg Config) (*gorm.DB, error) {
	if cfg.Driver == DriverSQLite {
		return connectSQLite(cfg)
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	dsn := mysqlDSN(cfg, timeout)

	// Suppress GORM logging for cleaner optional warnings in main logger
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Set connection pool settings to avoid typical issues
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Verify connection with context timeout
	// We use the same timeout duration for the initial ping.
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// mysqlDSN builds the MySQL DSN for cfg.
//
// Temporal values travel in UTC (loc=UTC); the persistence layer re-reads the
// stored wall clock in each column's own zone. clientFoundRows makes UPDATE
// report matched rather than changed rows.
func mysqlDSN(cfg Config, timeout int) string {
	// Special characters in the password must be URL encoded in the DSN.
	userInfo := url.UserPassword(cfg.User, cfg.Password).String()

	params := url.Values{}
	params.Set("charset", "utf8mb4")
	params.Set("parseTime", "True")
	params.Set("loc", "UTC")
	params.Set("clientFoundRows", "true")
	params.Set("timeout", fmt.Sprintf("%ds", timeout))
	params.Set("readTimeout", fmt.Sprintf("%ds", timeout))
	params.Set("writeTimeout", fmt.Sprintf("%ds", timeout))

	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s", userInfo, cfg.Host, cfg.Port, cfg.Name, params.Encode())
}

// connectSQLite opens a sqlite database file. ":memory:" databases are bound
// to a single connection so every statement sees the same database.
func connectSQLite(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Name), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Name == ":memory:" || strings.Contains(cfg.Name, "mode=memory") {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
