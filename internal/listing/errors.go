package listing

import (
	"errors"
	"fmt"
)

// Skip reasons. Each one discards the current candidate and lets the loop
// move on; none of them aborts a scrape.
var (
	ErrFieldMissing = errors.New("listing field missing")
	ErrDuplicate    = errors.New("duplicate listing")
	ErrTransient    = errors.New("transient UI failure")
)

// SetupError reports that the list view could not be reached at all. It is
// the only failure surfaced to callers of a scrape.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed at %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// IsSetupFailure reports whether err is, or wraps, a *SetupError.
func IsSetupFailure(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}
