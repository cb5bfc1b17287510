package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationVersionsAreOrdered(t *testing.T) {
	versions, err := migrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "001_init.sql", versions[0])
	assert.IsNonDecreasing(t, versions)
}

func TestInitMigrationDeclaresConstraints(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	sql := string(body)
	assert.Contains(t, sql, "stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0)")
	assert.Contains(t, sql, "transaction_id TEXT NOT NULL UNIQUE REFERENCES transactions(id)")
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS transaction_sequences")
}
