package drugsearch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSearchFailed is returned when the last search stage fails. It is the only
// catalog failure Search surfaces; every earlier failure falls through to the next stage.
var ErrSearchFailed = errors.New("drug search failed")

// StageError records one failed search stage.
type StageError struct {
	Stage string
	Err   error
}

// SearchError carries the error of every stage that failed during one search.
type SearchError struct {
	Op     string
	Stages []StageError
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	parts := make([]string, 0, len(e.Stages))
	for _, s := range e.Stages {
		parts = append(parts, fmt.Sprintf("%s: %v", s.Stage, s.Err))
	}
	return fmt.Sprintf("drugsearch: %s failed: %s", e.Op, strings.Join(parts, "; "))
}

// Unwrap exposes the stage errors to errors.Is and errors.As.
func (e *SearchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Stages))
	for _, s := range e.Stages {
		errs = append(errs, s.Err)
	}
	return errs
}

// Is reports ErrSearchFailed for every SearchError.
func (e *SearchError) Is(target error) bool {
	return target == ErrSearchFailed
}
