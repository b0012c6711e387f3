// (c) Copyright IBM Corp. 2024

package dbwrap

import "sync/atomic"

// Repeater is implemented by interceptors that legitimately call their
// continuation more than once per invocation, such as retry policies. The
// calls must still be sequential.
type Repeater interface {
	RepeatsContinuation() bool
}

// continuationGuard enforces that an interceptor calls its continuation at most
// once per invocation unless it is a Repeater
type continuationGuard struct {
	calls      atomic.Int32
	repeatable bool
}

func newContinuationGuard(ic any) *continuationGuard {
	g := &continuationGuard{}
	if r, ok := ic.(Repeater); ok {
		g.repeatable = r.RepeatsContinuation()
	}

	return g
}

func (g *continuationGuard) enter() error {
	if g.calls.Add(1) > 1 && !g.repeatable {
		return ErrContinuationReused
	}

	return nil
}
