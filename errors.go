// (c) Copyright IBM Corp. 2024

package dbwrap

import "errors"

var (
	// ErrNotFound is returned by As when no wrapper layer holds a resource of the
	// requested type, and by collections when an item is missing
	ErrNotFound = errors.New("dbwrap: not found")
	// ErrInvalidResource is returned when a resource of an incompatible type is
	// bound to another one, e.g. a foreign transaction assigned to a command
	ErrInvalidResource = errors.New("dbwrap: invalid resource")
	// ErrContinuationReused is returned when an interceptor calls its continuation
	// more than once during a single invocation without implementing Repeater
	ErrContinuationReused = errors.New("dbwrap: continuation invoked more than once")
)
