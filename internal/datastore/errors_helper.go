package datastore

import (
	"database/sql"
	"strings"

	"gorm.io/gorm"

	"github.com/casetrail/casetrail/internal/errors"
)

// dbError wraps a raw database error with category and context. Missing
// rows become not-found; connection-level failures become
// store-unavailable so callers know to retry with backoff; everything else
// is a database error.
func dbError(err error, operation, entity, id string) error {
	category := errors.CategoryDatabase
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		category = errors.CategoryNotFound
	case isUnavailable(err):
		category = errors.CategoryStoreUnavailable
	}
	eb := errors.New(err).
		Component("datastore").
		Category(category).
		Context("operation", operation).
		Context("entity", entity)
	if id != "" {
		eb.Context("id", id)
	}
	return eb.Build()
}

// recordNotFound returns the sentinel used when an affected-rows check
// finds the target row missing.
func recordNotFound() error {
	return gorm.ErrRecordNotFound
}

// isUnavailable reports whether err looks like a transient infrastructure
// failure rather than a data-level one.
func isUnavailable(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, gorm.ErrInvalidDB) {
		return true
	}
	msg := err.Error()
	for _, needle := range []string{"connection refused", "database is locked", "bad connection", "broken pipe"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
