package pbs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidArrayRange = errors.New("invalid array range")
	ErrMissingDirective  = errors.New("required directive not found")
)

// ValidationError is returned when a script parameter is outside the set of values the target system accepts.
type ValidationError struct {
	Field   string
	Value   string
	Options []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Options) > 0 {
		return fmt.Sprintf("invalid %s %q: must be one of [%s]", e.Field, e.Value, strings.Join(e.Options, ", "))
	}
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
