package metadata

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrSidecarNotFound is returned when the sidecar vanished before it could be
// read. It's benign during a scan: the candidate is just skipped.
var ErrSidecarNotFound = errors.New("sidecar file not found")

// ParseError describes a sidecar that exists but can't be turned into a
// valid Record.
type ParseError struct {
	Path   string
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid sidecar %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid sidecar %s: field %s %s", e.Path, e.Field, e.Reason)
}

// IsNotFound reports whether err means the sidecar file is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSidecarNotFound)
}

// AsParseError returns the ParseError wrapped in err, if any.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
