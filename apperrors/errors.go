// Package apperrors holds the sentinels every store error wraps, so callers
// can classify failures without importing a specific repository package.
package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
