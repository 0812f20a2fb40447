package datastore

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a new opaque 128-bit identifier rendered as 32 lowercase
// hex characters. Generated server-side at row creation.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidID reports whether id looks like an identifier produced by NewID.
func ValidID(id string) bool {
	if len(id) != 32 {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
