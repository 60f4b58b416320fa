package suggest

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine. Every error returned by this package
// matches exactly one of them under errors.Is.
var (
	// ErrInvalidArgument is returned for malformed call parameters, e.g. a negative limit.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidTerm is returned for a malformed vocabulary entry.
	ErrInvalidTerm = errors.New("invalid term")

	// ErrNotFound is returned when an operation references an unknown term or id.
	ErrNotFound = errors.New("term not found")
)

// InvalidArgumentError carries the offending parameter.
type InvalidArgumentError struct {
	Param  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument '%s': %s", e.Param, e.Reason)
}

func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// InvalidTermError carries the rejected term text.
type InvalidTermError struct {
	Term   string
	Reason string
}

func (e *InvalidTermError) Error() string {
	return fmt.Sprintf("invalid term '%s': %s", e.Term, e.Reason)
}

func (e *InvalidTermError) Is(target error) bool {
	return target == ErrInvalidTerm
}

// NotFoundError identifies the missing term by text, by id, or both.
type NotFoundError struct {
	Term string
	ID   TermID
}

func (e *NotFoundError) Error() string {
	if e.Term != "" {
		return fmt.Sprintf("term '%s' not found", e.Term)
	}
	return fmt.Sprintf("term with ID %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
