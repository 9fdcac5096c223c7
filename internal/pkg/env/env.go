// Package env reads typed settings from environment variables.
package env

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Get returns the value of the environment variable or the default if not set.
func Get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Int64 returns the variable parsed as a base-10 integer. ok is false when
// the variable is unset.
func Int64(key string) (value int64, ok bool, err error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false, nil
	}
	value, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("parsing %s: %w", key, err)
	}
	return value, true, nil
}

// Float64 returns the variable parsed as a float. ok is false when unset.
func Float64(key string) (value float64, ok bool, err error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false, nil
	}
	value, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, fmt.Errorf("parsing %s: %w", key, err)
	}
	return value, true, nil
}

// Duration returns the variable parsed with time.ParseDuration. ok is false
// when unset.
func Duration(key string) (value time.Duration, ok bool, err error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false, nil
	}
	value, err = time.ParseDuration(raw)
	if err != nil {
		return 0, true, fmt.Errorf("parsing %s: %w", key, err)
	}
	return value, true, nil
}
