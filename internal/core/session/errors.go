package session

import (
	"fmt"
	"regexp"

	"github.com/penwyp/go-claude-wrap/internal/core/constants"
)

// ValidationError reports malformed input rejected before any store
// access. It always surfaces to the caller; store-layer failures never do
// on read paths.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

func validateSessionID(id string) error {
	if id == "" {
		return &ValidationError{Field: "session id", Reason: "empty"}
	}
	if len(id) > constants.MaxSessionIDLength {
		return &ValidationError{Field: "session id", Reason: fmt.Sprintf("longer than %d characters", constants.MaxSessionIDLength)}
	}
	if !sessionIDPattern.MatchString(id) {
		return &ValidationError{Field: "session id", Reason: "must match [A-Za-z0-9-]+"}
	}
	return nil
}

func validateRenewalDay(day int) error {
	if day < 1 || day > 31 {
		return &ValidationError{Field: "renewal day", Reason: "must be between 1 and 31"}
	}
	return nil
}
