package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/caseindex/internal/config"
)

func TestBuildDSN(t *testing.T) {
	require.Equal(t, "postgres://u:p@h/db", buildDSN(config.DatabaseConfig{DSN: "postgres://u:p@h/db", Host: "ignored"}))
	require.Equal(t,
		"host=localhost port=5432 user=app password=secret dbname=cases sslmode=disable",
		buildDSN(config.DatabaseConfig{Host: "localhost", User: "app", Password: "secret", DBName: "cases"}),
	)
	require.Equal(t,
		"host=db port=6543 user=app password= dbname=cases sslmode=require",
		buildDSN(config.DatabaseConfig{Host: "db", Port: 6543, User: "app", DBName: "cases", SSLMode: "require"}),
	)
}

func TestMigrationFiles(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.Equal(t, []string{"001_embedding_cache.sql"}, files)
}

func TestSplitStatements(t *testing.T) {
	require.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"},
		splitStatements("CREATE TABLE a (x INT);\n\n CREATE INDEX i ON a (x);\n"))
}
