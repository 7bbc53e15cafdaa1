package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN("vinyl", "p@ss", "db", "3306", "vinylverse")
	assert.Contains(t, dsn, "vinyl:p@ss@tcp(db:3306)/vinylverse?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestStatementsSplitsSchema(t *testing.T) {
	stmts := statements(schemaSQL)
	require.Len(t, stmts, 6)
	for _, s := range stmts {
		assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS")
		assert.NotContains(t, s, ";")
	}
}

func TestStatementsIgnoresComments(t *testing.T) {
	got := statements("-- header\nSELECT 1;\n\n-- trailing\nSELECT 2")
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, got)
}
