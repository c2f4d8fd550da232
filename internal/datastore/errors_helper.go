// Package datastore error handling helpers for database operations
package datastore

import (
	"strings"

	"github.com/oliveyard/harvest-go/internal/errors"
)

// isUniqueViolation reports whether err is a unique-constraint violation from
// either supported backend. SQLite reports "UNIQUE constraint failed", MySQL
// reports error 1062 / "Duplicate entry".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "Error 1062")
}

// IsConflict reports whether err represents a duplicate-record conflict.
func IsConflict(err error) bool {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.Category == errors.CategoryConflict
	}
	return isUniqueViolation(err)
}

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.Category == errors.CategoryNotFound
	}
	return false
}
