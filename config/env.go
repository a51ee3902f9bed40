package config

import (
	"fmt"
	"os"
	"strconv"
)

// EnvString returns the environment variable value and whether it was set
// to a non-empty value.
func EnvString(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// EnvInt returns the environment variable parsed as an int. The bool
// reports whether the variable was set; a set but unparseable value is an
// error.
func EnvInt(key string) (int, bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return n, true, nil
}

// EnvBool returns the environment variable parsed as a bool. The bool
// reports whether the variable was set; a set but unparseable value is an
// error.
func EnvBool(key string) (bool, bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, true, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return b, true, nil
}
