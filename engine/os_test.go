//go:build unit

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetenvOrDefault(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		assert.Equal(t, "fallback", GetenvOrDefault("ENGINE_TEST_ABSENT", "fallback"))
	})

	t.Run("whitespace only", func(t *testing.T) {
		t.Setenv("ENGINE_TEST_STRING", "   ")

		assert.Equal(t, "fallback", GetenvOrDefault("ENGINE_TEST_STRING", "fallback"))
	})

	t.Run("set", func(t *testing.T) {
		t.Setenv("ENGINE_TEST_STRING", " value ")

		assert.Equal(t, "value", GetenvOrDefault("ENGINE_TEST_STRING", "fallback"))
	})
}

func TestGetenvIntOrDefault(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		assert.Equal(t, 7, GetenvIntOrDefault("ENGINE_TEST_ABSENT", 7))
	})

	t.Run("not a number", func(t *testing.T) {
		t.Setenv("ENGINE_TEST_INT", "seven")

		assert.Equal(t, 7, GetenvIntOrDefault("ENGINE_TEST_INT", 7))
	})

	t.Run("valid", func(t *testing.T) {
		t.Setenv("ENGINE_TEST_INT", "42")

		assert.Equal(t, 42, GetenvIntOrDefault("ENGINE_TEST_INT", 7))
	})
}

func TestGetenvBoolOrDefault(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		assert.True(t, GetenvBoolOrDefault("ENGINE_TEST_ABSENT", true))
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("ENGINE_TEST_BOOL", "yep")

		assert.True(t, GetenvBoolOrDefault("ENGINE_TEST_BOOL", true))
	})

	t.Run("valid", func(t *testing.T) {
		t.Setenv("ENGINE_TEST_BOOL", "false")

		assert.False(t, GetenvBoolOrDefault("ENGINE_TEST_BOOL", true))
	})
}

func TestGetenvDurationOrDefault(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		assert.Equal(t, time.Minute, GetenvDurationOrDefault("ENGINE_TEST_ABSENT", time.Minute))
	})

	t.Run("malformed", func(t *testing.T) {
		t.Setenv("ENGINE_TEST_DURATION", "90")

		assert.Equal(t, time.Minute, GetenvDurationOrDefault("ENGINE_TEST_DURATION", time.Minute))
	})

	t.Run("valid", func(t *testing.T) {
		t.Setenv("ENGINE_TEST_DURATION", "90s")

		assert.Equal(t, 90*time.Second, GetenvDurationOrDefault("ENGINE_TEST_DURATION", time.Minute))
	})
}
