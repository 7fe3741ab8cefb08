package database

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	t.Run("Invalid Connection", func(t *testing.T) {
		cfg := Config{
			Host:           "localhost",
			Port:           9999, // Unused port
			User:           "root",
			Password:       "wrongpassword",
			Name:           "entities",
			TimeoutSeconds: 1,
		}

		// Connect should fail (timeout or refused)
		// We expect an error.
		db, err := Connect(cfg)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("SQLite Memory", func(t *testing.T) {
		db, err := Connect(Config{Driver: DriverSQLite, Name: ":memory:"})
		assert.NoError(t, err)
		assert.NotNil(t, db)

		sqlDB, err := db.DB()
		assert.NoError(t, err)
		assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

		// A second statement must see the table created by the first.
		assert.NoError(t, db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)").Error)
		assert.NoError(t, db.Exec("INSERT INTO t (id) VALUES (1)").Error)
	})
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(Config{Host: "db", Port: 3306, User: "app", Password: "p@ss", Name: "entities"}, 5)

	base, query, found := strings.Cut(dsn, "?")
	require.True(t, found)
	assert.Equal(t, "app:p%40ss@tcp(db:3306)/entities", base)

	params, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.Equal(t, "UTC", params.Get("loc"))
	assert.Equal(t, "True", params.Get("parseTime"))
	assert.Equal(t, "true", params.Get("clientFoundRows"))
	assert.Equal(t, "5s", params.Get("readTimeout"))
}
