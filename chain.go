// (c) Copyright IBM Corp. 2024

package dbwrap

import "context"

// Call shapes of interceptable operations. Sync shapes are used by in-memory
// operations, context shapes by operations that may block on the data source.
type (
	// Func is a sync operation returning a value
	Func[R any] func() (R, error)
	// ArgFunc is a sync operation taking one argument and returning a value
	ArgFunc[A, R any] func(arg A) (R, error)
	// Action is a sync operation without a result value
	Action func() error
	// ArgAction is a sync operation taking one argument without a result value
	ArgAction[A any] func(arg A) error
	// ContextFunc is a context-aware operation returning a value
	ContextFunc[R any] func(ctx context.Context) (R, error)
	// ContextArgFunc is a context-aware operation taking one argument and returning a value
	ContextArgFunc[A, R any] func(ctx context.Context, arg A) (R, error)
	// ContextAction is a context-aware operation without a result value
	ContextAction func(ctx context.Context) error
	// ContextArgAction is a context-aware operation taking one argument without a result value
	ContextArgAction[A any] func(ctx context.Context, arg A) error
)

// compose returns a callable equivalent to interceptors[0] wrapping
// interceptors[1] ... wrapping terminal. link binds one interceptor to its
// continuation. Chains of up to 8 interceptors are unrolled, longer ones are
// built outward from the last index.
func compose[I, F any](interceptors []I, terminal F, link func(ic I, next F) F) F {
	switch len(interceptors) {
	case 0:
		return terminal
	case 1:
		return link(interceptors[0], terminal)
	case 2:
		return link(interceptors[0],
			link(interceptors[1], terminal))
	case 3:
		return link(interceptors[0],
			link(interceptors[1],
				link(interceptors[2], terminal)))
	case 4:
		return link(interceptors[0],
			link(interceptors[1],
				link(interceptors[2],
					link(interceptors[3], terminal))))
	case 5:
		return link(interceptors[0],
			link(interceptors[1],
				link(interceptors[2],
					link(interceptors[3],
						link(interceptors[4], terminal)))))
	case 6:
		return link(interceptors[0],
			link(interceptors[1],
				link(interceptors[2],
					link(interceptors[3],
						link(interceptors[4],
							link(interceptors[5], terminal))))))
	case 7:
		return link(interceptors[0],
			link(interceptors[1],
				link(interceptors[2],
					link(interceptors[3],
						link(interceptors[4],
							link(interceptors[5],
								link(interceptors[6], terminal)))))))
	case 8:
		return link(interceptors[0],
			link(interceptors[1],
				link(interceptors[2],
					link(interceptors[3],
						link(interceptors[4],
							link(interceptors[5],
								link(interceptors[6],
									link(interceptors[7], terminal))))))))
	default:
		return composeFrom(interceptors, len(interceptors)-1, terminal, link)
	}
}

func composeFrom[I, F any](interceptors []I, i int, next F, link func(ic I, next F) F) F {
	if i < 0 {
		return next
	}

	return composeFrom(interceptors, i-1, link(interceptors[i], next), link)
}

// ChainFunc composes interceptors around a Func. invoke calls the interceptor
// method of the operation with the continuation it is given.
func ChainFunc[I, R any](interceptors []I, terminal Func[R], invoke func(ic I, next Func[R]) (R, error)) Func[R] {
	return compose(interceptors, terminal, func(ic I, next Func[R]) Func[R] {
		return func() (R, error) {
			g := newContinuationGuard(ic)

			return invoke(ic, func() (R, error) {
				if err := g.enter(); err != nil {
					var zero R
					return zero, err
				}

				return next()
			})
		}
	})
}

// ChainArgFunc composes interceptors around an ArgFunc
func ChainArgFunc[I, A, R any](interceptors []I, terminal ArgFunc[A, R], invoke func(ic I, arg A, next ArgFunc[A, R]) (R, error)) ArgFunc[A, R] {
	return compose(interceptors, terminal, func(ic I, next ArgFunc[A, R]) ArgFunc[A, R] {
		return func(arg A) (R, error) {
			g := newContinuationGuard(ic)

			return invoke(ic, arg, func(arg A) (R, error) {
				if err := g.enter(); err != nil {
					var zero R
					return zero, err
				}

				return next(arg)
			})
		}
	})
}

// ChainAction composes interceptors around an Action
func ChainAction[I any](interceptors []I, terminal Action, invoke func(ic I, next Action) error) Action {
	return compose(interceptors, terminal, func(ic I, next Action) Action {
		return func() error {
			g := newContinuationGuard(ic)

			return invoke(ic, func() error {
				if err := g.enter(); err != nil {
					return err
				}

				return next()
			})
		}
	})
}

// ChainArgAction composes interceptors around an ArgAction
func ChainArgAction[I, A any](interceptors []I, terminal ArgAction[A], invoke func(ic I, arg A, next ArgAction[A]) error) ArgAction[A] {
	return compose(interceptors, terminal, func(ic I, next ArgAction[A]) ArgAction[A] {
		return func(arg A) error {
			g := newContinuationGuard(ic)

			return invoke(ic, arg, func(arg A) error {
				if err := g.enter(); err != nil {
					return err
				}

				return next(arg)
			})
		}
	})
}

// ChainContextFunc composes interceptors around a ContextFunc
func ChainContextFunc[I, R any](interceptors []I, terminal ContextFunc[R], invoke func(ctx context.Context, ic I, next ContextFunc[R]) (R, error)) ContextFunc[R] {
	return compose(interceptors, terminal, func(ic I, next ContextFunc[R]) ContextFunc[R] {
		return func(ctx context.Context) (R, error) {
			g := newContinuationGuard(ic)

			return invoke(ctx, ic, func(ctx context.Context) (R, error) {
				if err := g.enter(); err != nil {
					var zero R
					return zero, err
				}

				return next(ctx)
			})
		}
	})
}

// ChainContextArgFunc composes interceptors around a ContextArgFunc
func ChainContextArgFunc[I, A, R any](interceptors []I, terminal ContextArgFunc[A, R], invoke func(ctx context.Context, ic I, arg A, next ContextArgFunc[A, R]) (R, error)) ContextArgFunc[A, R] {
	return compose(interceptors, terminal, func(ic I, next ContextArgFunc[A, R]) ContextArgFunc[A, R] {
		return func(ctx context.Context, arg A) (R, error) {
			g := newContinuationGuard(ic)

			return invoke(ctx, ic, arg, func(ctx context.Context, arg A) (R, error) {
				if err := g.enter(); err != nil {
					var zero R
					return zero, err
				}

				return next(ctx, arg)
			})
		}
	})
}

// ChainContextAction composes interceptors around a ContextAction
func ChainContextAction[I any](interceptors []I, terminal ContextAction, invoke func(ctx context.Context, ic I, next ContextAction) error) ContextAction {
	return compose(interceptors, terminal, func(ic I, next ContextAction) ContextAction {
		return func(ctx context.Context) error {
			g := newContinuationGuard(ic)

			return invoke(ctx, ic, func(ctx context.Context) error {
				if err := g.enter(); err != nil {
					return err
				}

				return next(ctx)
			})
		}
	})
}

// ChainContextArgAction composes interceptors around a ContextArgAction
func ChainContextArgAction[I, A any](interceptors []I, terminal ContextArgAction[A], invoke func(ctx context.Context, ic I, arg A, next ContextArgAction[A]) error) ContextArgAction[A] {
	return compose(interceptors, terminal, func(ic I, next ContextArgAction[A]) ContextArgAction[A] {
		return func(ctx context.Context, arg A) error {
			g := newContinuationGuard(ic)

			return invoke(ctx, ic, arg, func(ctx context.Context, arg A) error {
				if err := g.enter(); err != nil {
					return err
				}

				return next(ctx, arg)
			})
		}
	})
}
