// internal/api/v2/requests.go
package api

import (
	"time"

	"github.com/casetrail/casetrail/internal/errors"
)

// badRequest wraps a request parsing failure as a validation error.
func badRequest(message string) error {
	return errors.Newf("%s", message).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}

// parseVersionToken parses the updated_at version token sent with guarded
// updates. The token is required; optimistic concurrency cannot work
// without the caller's last-read timestamp.
func parseVersionToken(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.Newf("updated_at version token is required").
			Component("api").
			Category(errors.CategoryValidation).
			Context("field", "updated_at").
			Build()
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("field", "updated_at").
			Build()
	}
	return t, nil
}
