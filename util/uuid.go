// Package util provides utility functions for the allocation system.
package util

import "github.com/google/uuid"

// GenerateUUID returns a random (v4) UUID string.
func GenerateUUID() string {
	return uuid.NewString()
}

// NewReference returns prefix joined to a fresh UUID, e.g. "order-<uuid>".
func NewReference(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return prefix + "-" + GenerateUUID()
}
