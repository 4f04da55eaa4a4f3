package engine

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetenvOrDefault returns the value of the environment variable named by key,
// or defaultValue when the variable is unset, empty, or whitespace-only.
func GetenvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	return value
}

// GetenvIntOrDefault returns the environment variable parsed as an int, or
// defaultValue when the variable is unset or not a valid integer.
func GetenvIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

// GetenvBoolOrDefault returns the environment variable parsed as a bool, or
// defaultValue when the variable is unset or not a valid boolean literal.
func GetenvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

// GetenvDurationOrDefault returns the environment variable parsed as a
// time.Duration, or defaultValue when the variable is unset or malformed.
func GetenvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}
