// (c) Copyright IBM Corp. 2024

package dbwrap

import (
	"fmt"
	"reflect"
)

// Wrapper is implemented by resources that decorate another resource
type Wrapper interface {
	// Unwrap returns the resource immediately beneath this layer
	Unwrap() any
}

// As walks down the wrapper layers of resource, starting with resource itself,
// and returns the first one of type T. It returns ErrNotFound if no layer
// matches. Use it to reach provider-specific capabilities:
//
//	pqConn, err := dbwrap.As[*sqlprovider.Connection](conn)
func As[T any](resource any) (T, error) {
	for r := resource; r != nil; {
		if v, ok := r.(T); ok {
			return v, nil
		}

		w, ok := r.(Wrapper)
		if !ok {
			break
		}

		r = w.Unwrap()
	}

	var zero T

	return zero, fmt.Errorf("%w: no %s beneath %T", ErrNotFound, reflect.TypeFor[T](), resource)
}

// Unwrapped returns the innermost resource beneath all wrapper layers
func Unwrapped(resource any) any {
	for {
		w, ok := resource.(Wrapper)
		if !ok {
			return resource
		}

		inner := w.Unwrap()
		if inner == nil {
			return resource
		}

		resource = inner
	}
}
