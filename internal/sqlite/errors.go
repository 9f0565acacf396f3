package sqlite

import "strings"

// isUniqueViolation also covers INTEGER PRIMARY KEY collisions, which SQLite
// reports as UNIQUE constraint failures.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
