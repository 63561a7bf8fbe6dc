// Package utils holds small helpers shared by handlers and services.
package utils

import "strings"

// ParseCSV splits a comma-separated query value (symbols, coin ids) and
// returns trimmed non-empty values. Returns nil for empty input.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}
