// Package parse provides parsing, validation, and normalization utilities for gravedigger CLI.
package parse

import (
	"fmt"
	"strings"
)

// ValidateFormat validates the --format flag value.
// Returns the normalized (lowercased) format or an error for unknown formats.
func ValidateFormat(format string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "csv", "json":
		return normalized, nil
	default:
		return "", fmt.Errorf("invalid --format: must be csv or json")
	}
}

// ValidateAgeKey validates the --encrypt-age flag value.
// Returns whether the value is set and any validation error.
// Set is true only if non-empty and starts with "age1".
func ValidateAgeKey(s string) (set bool, err error) {
	if s == "" {
		return false, nil
	}

	if !strings.HasPrefix(s, "age1") {
		return false, fmt.Errorf("invalid --encrypt-age: must start with age1")
	}

	return true, nil
}
