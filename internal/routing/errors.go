package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

var (
	// ErrEvaluation matches every EvaluationError
	ErrEvaluation = errors.New("route evaluation failed")

	// ErrUnresolvableDestination matches every UnresolvableDestinationError
	ErrUnresolvableDestination = errors.New("unresolvable destination")

	// ErrDispatch matches every DispatchError
	ErrDispatch = errors.New("dispatch failed")

	// ErrDestinationNotFound is returned by the resolver for names outside the allow-list
	ErrDestinationNotFound = errors.New("destination not found")

	// ErrEndpointCreation wraps failures of the endpoint factory
	ErrEndpointCreation = errors.New("endpoint creation failed")
)

// EvaluationError reports an expression or script that failed or produced a
// value that is not a route key.
type EvaluationError struct {
	Evaluator string
	Cause     error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s evaluation failed: %v", e.Evaluator, e.Cause)
}

func (e *EvaluationError) Unwrap() []error {
	return unwrapWith(ErrEvaluation, e.Cause)
}

// UnresolvableDestinationError is returned in strict mode, and in any mode when
// the default destination cannot be resolved. Key is empty when no route key
// was involved.
type UnresolvableDestinationError struct {
	Key         string
	Destination string
	Cause       error
}

func (e *UnresolvableDestinationError) Error() string {
	var msg string
	switch {
	case e.Key == "" && e.Destination == "":
		return "no route resolved for message and no default destination configured"
	case e.Key == "":
		msg = fmt.Sprintf("default destination %q is unresolvable", e.Destination)
	default:
		msg = fmt.Sprintf("route key %q resolved to unresolvable destination %q", e.Key, e.Destination)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UnresolvableDestinationError) Unwrap() []error {
	return unwrapWith(ErrUnresolvableDestination, e.Cause)
}

// DispatchError aggregates every failed send of one message, keyed by destination name
type DispatchError struct {
	Failures map[string]error
	err      error
}

func newDispatchError(failures map[string]error, combined error) *DispatchError {
	return &DispatchError{Failures: failures, err: combined}
}

func (e *DispatchError) Destinations() []string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *DispatchError) Error() string {
	names := e.Destinations()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failures[name]))
	}
	return fmt.Sprintf("dispatch failed for %d destination(s): %s", len(names), strings.Join(parts, "; "))
}

// Unwrap exposes every underlying send error so errors.Is reaches them
func (e *DispatchError) Unwrap() []error {
	return append([]error{ErrDispatch}, multierr.Errors(e.err)...)
}

func unwrapWith(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}
