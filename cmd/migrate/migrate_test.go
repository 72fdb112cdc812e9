package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMigrationID(t *testing.T) {
	assert.Equal(t, "20250101000001_create_clients", extractMigrationID("20250101000001_create_clients.sql"))
	assert.Equal(t, "no_extension", extractMigrationID("no_extension"))
}

func TestMigrationFilesApplyInTimestampOrder(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", migrationsDir, "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)
	assert.Equal(t, sorted, files, "glob order must match lexicographic timestamp order")

	seen := make(map[string]bool)
	for _, file := range files {
		base := filepath.Base(file)
		id := extractMigrationID(base)

		// timestamp prefix, then a descriptive name
		parts := strings.SplitN(id, "_", 2)
		require.Len(t, parts, 2, "migration %s must be <timestamp>_<name>.sql", base)
		assert.Len(t, parts[0], 14, "migration %s must carry a 14-digit timestamp", base)
		assert.False(t, seen[id], "duplicate migration id %s", id)
		seen[id] = true
	}
}

// The repository scans these columns into non-pointer Go fields, so the
// schema must never let them be NULL.
func TestMetricTableColumnsMatchScanTargets(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("..", "..", migrationsDir, "20250101000002_create_metric_tables.sql"))
	require.NoError(t, err)

	nonNullable := []string{"unit", "module", "url", "source", "device", "users", "pageviews"}

	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		for _, col := range nonNullable {
			if strings.HasPrefix(trimmed, col+" ") {
				assert.Contains(t, trimmed, "NOT NULL", "column %s must not be nullable", col)
			}
		}
	}

	// the int64 traffic count fields need an integer column type
	assert.Regexp(t, `users BIGINT`, string(content))
	assert.Regexp(t, `pageviews BIGINT`, string(content))
}

func TestMigrationFilesAreNonEmptySQL(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", migrationsDir, "*.sql"))
	require.NoError(t, err)

	for _, file := range files {
		content, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(string(content)), "migration %s is empty", file)
	}
}
