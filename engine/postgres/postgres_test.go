//go:build unit

package postgres

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSensitiveError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "nil", err: nil, expected: "",
		},
		{
			name:     "dsn credentials masked",
			err:      errors.New(`connect postgres://engine:hunter2@db:5432/engine failed`),
			expected: `connect postgres://***@db:5432/engine failed`,
		},
		{
			name:     "password keyword masked",
			err:      errors.New(`auth failed: password=hunter2 host=db`),
			expected: `auth failed: password=*** host=db`,
		},
		{
			name:     "plain error untouched",
			err:      errors.New("connection refused"),
			expected: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, sanitizeSensitiveError(tt.err))
		})
	}
}

func TestMigrationsPathRejectsTraversal(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"..", "../outside", "migrations/../../etc"} {
		c := &Connection{MigrationsPath: path}

		_, err := c.migrationsPath()
		assert.Error(t, err, "path %q", path)
	}
}

func TestMigrationsPathDefaultsAndResolves(t *testing.T) {
	t.Parallel()

	c := &Connection{}

	resolved, err := c.migrationsPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
	assert.Equal(t, "migrations", filepath.Base(resolved))
}

func TestDatabaseNamePattern(t *testing.T) {
	t.Parallel()

	valid := []string{"engine", "_engine", "engine_2025", "a"}
	for _, name := range valid {
		assert.True(t, dbNamePattern.MatchString(name), name)
	}

	invalid := []string{"", "2engine", "engine;drop table task", "engine-db", "name with spaces"}
	for _, name := range invalid {
		assert.False(t, dbNamePattern.MatchString(name), name)
	}
}

func TestInitDefaults(t *testing.T) {
	t.Parallel()

	c := &Connection{}
	c.initDefaults()

	assert.Equal(t, defaultMaxOpenConns, c.MaxOpenConnections)
	assert.Equal(t, defaultMaxIdleConns, c.MaxIdleConnections)
	assert.NotNil(t, c.Logger)
}
