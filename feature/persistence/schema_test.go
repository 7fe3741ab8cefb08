package persistence

import (
	"testing"

	"entity-persister/core/metadata/metadatatest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSchema_Matched(t *testing.T) {
	db := setupSQLite(t)

	report, err := CheckSchema(db, metadatatest.BlogRegistry(t))
	require.NoError(t, err)
	assert.True(t, report.Matched)
	assert.Empty(t, report.Errors)
	assert.Equal(t, "ok", report.Tables["posts"].Status)
	assert.Equal(t, "post", report.Tables["posts"].Entity)
	assert.Contains(t, report.Tables, "post_categories")
}

func TestCheckSchema_MissingColumnsAndTables(t *testing.T) {
	db := setupSQLite(t)
	require.NoError(t, db.Exec(`DROP TABLE comments`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE comments (id INTEGER PRIMARY KEY, body TEXT)`).Error)
	require.NoError(t, db.Exec(`DROP TABLE post_details`).Error)

	report, err := CheckSchema(db, metadatatest.BlogRegistry(t))
	require.NoError(t, err)
	assert.False(t, report.Matched)

	assert.Equal(t, "error", report.Tables["comments"].Status)
	assert.Equal(t, []string{"post_id"}, report.Tables["comments"].MissingColumns)
	assert.Equal(t, "missing", report.Tables["post_details"].Status)
	assert.ElementsMatch(t, []string{"id", "summary"}, report.Tables["post_details"].MissingColumns)
}

func TestCheckSchema_NilDB(t *testing.T) {
	_, err := CheckSchema(nil, metadatatest.BlogRegistry(t))
	assert.Error(t, err)
}
