// (c) Copyright IBM Corp. 2024

package dbwrap

import "context"

// CompleteSync runs call for providers that have no context-aware form of an
// operation. It returns early if ctx is already done. While call runs, a
// cancellation of ctx triggers cancel as an advisory attempt to abort it; the
// outcome of cancel is ignored and call is never forcibly interrupted.
func CompleteSync[R any](ctx context.Context, cancel func() error, call func() (R, error)) (R, error) {
	if err := ctx.Err(); err != nil {
		var zero R
		return zero, err
	}

	if cancel != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			tryCancel(cancel)
		})
		defer stop()
	}

	return call()
}

// CompleteSyncAction is CompleteSync for operations without a result value
func CompleteSyncAction(ctx context.Context, cancel func() error, call func() error) error {
	_, err := CompleteSync(ctx, cancel, func() (struct{}, error) {
		return struct{}{}, call()
	})

	return err
}

func tryCancel(cancel func() error) {
	defer func() {
		if r := recover(); r != nil {
			defaultLogger.Debug("cancellation attempt panicked: ", r)
		}
	}()

	if err := cancel(); err != nil {
		defaultLogger.Debug("cancellation attempt failed: ", err)
	}
}
