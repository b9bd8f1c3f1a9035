package utils

import (
	"github.com/google/uuid"
)

// NewRandomID returns a new unique id for a job or etag.
func NewRandomID() string {
	return uuid.New().String()
}

// IsValidID reports whether the given string looks like an id we issued.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
