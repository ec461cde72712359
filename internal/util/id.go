package util

import "github.com/google/uuid"

// NewID returns a fresh UUID string. Every persisted record, across all
// tables, is keyed by one of these.
func NewID() string {
	return uuid.NewString()
}

// IsID reports whether value parses as a UUID.
func IsID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
