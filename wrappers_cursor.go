// (c) Copyright IBM Corp. 2024

package dbwrap

import "context"

// wCursor applies the cursor interceptor chains to a provider Cursor. Nested
// cursors are wrapped with the same filters, to any depth.
type wCursor struct {
	Cursor

	f *filters
}

var (
	_ Cursor  = (*wCursor)(nil)
	_ Wrapper = (*wCursor)(nil)
)

func wrapCursor(cur Cursor, f *filters) *wCursor {
	if w, ok := cur.(*wCursor); ok {
		return w
	}

	return &wCursor{Cursor: cur, f: f}
}

// Unwrap returns the provider cursor
func (c *wCursor) Unwrap() any {
	return c.Cursor
}

func (c *wCursor) Next() (bool, error) {
	ics := c.f.cursor.For(CursorNext)
	if len(ics) == 0 {
		return c.Cursor.Next()
	}

	return c.next(context.Background(), ics, func(context.Context) (bool, error) {
		return c.Cursor.Next()
	})
}

func (c *wCursor) NextContext(ctx context.Context) (bool, error) {
	ics := c.f.cursor.For(CursorNext)
	if len(ics) == 0 {
		return c.Cursor.NextContext(ctx)
	}

	return c.next(ctx, ics, c.Cursor.NextContext)
}

func (c *wCursor) next(ctx context.Context, ics []CursorInterceptor, terminal ContextFunc[bool]) (bool, error) {
	return ChainContextFunc(ics, terminal, func(ctx context.Context, ic CursorInterceptor, next ContextFunc[bool]) (bool, error) {
		return ic.Next(ctx, c.Cursor, next)
	})(ctx)
}

func (c *wCursor) NextResultSet() (bool, error) {
	ics := c.f.cursor.For(CursorNextResultSet)
	if len(ics) == 0 {
		return c.Cursor.NextResultSet()
	}

	return c.nextResultSet(context.Background(), ics, func(context.Context) (bool, error) {
		return c.Cursor.NextResultSet()
	})
}

func (c *wCursor) NextResultSetContext(ctx context.Context) (bool, error) {
	ics := c.f.cursor.For(CursorNextResultSet)
	if len(ics) == 0 {
		return c.Cursor.NextResultSetContext(ctx)
	}

	return c.nextResultSet(ctx, ics, c.Cursor.NextResultSetContext)
}

func (c *wCursor) nextResultSet(ctx context.Context, ics []CursorInterceptor, terminal ContextFunc[bool]) (bool, error) {
	return ChainContextFunc(ics, terminal, func(ctx context.Context, ic CursorInterceptor, next ContextFunc[bool]) (bool, error) {
		return ic.NextResultSet(ctx, c.Cursor, next)
	})(ctx)
}

func (c *wCursor) Value(ordinal int) (any, error) {
	ics := c.f.cursor.For(CursorValue)
	if len(ics) == 0 {
		return c.Cursor.Value(ordinal)
	}

	return ChainArgFunc(ics, ArgFunc[int, any](c.Cursor.Value), func(ic CursorInterceptor, ordinal int, next ArgFunc[int, any]) (any, error) {
		return ic.Value(c.Cursor, ordinal, next)
	})(ordinal)
}

func (c *wCursor) IsNull(ordinal int) (bool, error) {
	ics := c.f.cursor.For(CursorIsNull)
	if len(ics) == 0 {
		return c.Cursor.IsNull(ordinal)
	}

	return ChainArgFunc(ics, ArgFunc[int, bool](c.Cursor.IsNull), func(ic CursorInterceptor, ordinal int, next ArgFunc[int, bool]) (bool, error) {
		return ic.IsNull(c.Cursor, ordinal, next)
	})(ordinal)
}

// Nested returns the nested cursor of a column wrapped with the same filters
func (c *wCursor) Nested(ordinal int) (Cursor, error) {
	var (
		nested Cursor
		err    error
	)

	if ics := c.f.cursor.For(CursorNested); len(ics) == 0 {
		nested, err = c.Cursor.Nested(ordinal)
	} else {
		nested, err = ChainArgFunc(ics, ArgFunc[int, Cursor](c.Cursor.Nested), func(ic CursorInterceptor, ordinal int, next ArgFunc[int, Cursor]) (Cursor, error) {
			return ic.Nested(c.Cursor, ordinal, next)
		})(ordinal)
	}

	if err != nil {
		return nil, err
	}

	if nested == nil {
		return nil, nil
	}

	return wrapCursor(nested, c.f), nil
}

func (c *wCursor) Close() error {
	ics := c.f.cursor.For(CursorClose)
	if len(ics) == 0 {
		return c.Cursor.Close()
	}

	return c.close(context.Background(), ics, func(context.Context) error {
		return c.Cursor.Close()
	})
}

func (c *wCursor) CloseContext(ctx context.Context) error {
	ics := c.f.cursor.For(CursorClose)
	if len(ics) == 0 {
		return c.Cursor.CloseContext(ctx)
	}

	return c.close(ctx, ics, c.Cursor.CloseContext)
}

func (c *wCursor) close(ctx context.Context, ics []CursorInterceptor, terminal ContextAction) error {
	return ChainContextAction(ics, terminal, func(ctx context.Context, ic CursorInterceptor, next ContextAction) error {
		return ic.Close(ctx, c.Cursor, next)
	})(ctx)
}
