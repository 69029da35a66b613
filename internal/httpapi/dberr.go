package httpapi

import "strings"

// isRetryableDBErr identifies transient SQLite lock errors.
func isRetryableDBErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	// modernc/sqlite surfaces these as plain error strings.
	return strings.Contains(s, "database is locked") ||
		strings.Contains(s, "sqlite_busy")
}
