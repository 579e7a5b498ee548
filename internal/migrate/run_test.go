package migrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions_SortedAndEmbedded(t *testing.T) {
	versions, err := Versions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_init", versions[0])
	assert.IsIncreasing(t, versions)
}

func TestInitMigration_DefinesCoreTables(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	sql := string(body)
	for _, table := range []string{"users", "provider_accounts", "provider_tokens", "sessions"} {
		assert.True(t, strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" ("), table)
	}
	assert.Contains(t, sql, "token       TEXT NOT NULL UNIQUE")
	assert.Contains(t, sql, "account_id     UUID NOT NULL UNIQUE")
}
