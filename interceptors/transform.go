// (c) Copyright IBM Corp. 2024

package interceptors

import (
	"time"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
)

// ParameterFunc rewrites a parameter before it is added to a collection
type ParameterFunc func(p *dbwrap.Parameter) error

// ValueFunc rewrites a value read from column of a cursor
type ValueFunc func(column string, v any) (any, error)

// Transform rewrites parameter values on their way into commands and column
// values on their way out of cursors
type Transform struct {
	params []ParameterFunc
	values []ValueFunc
}

// NewTransform returns an empty Transform
func NewTransform() *Transform {
	return &Transform{}
}

// Parameters appends fns to the functions applied to added and inserted parameters
func (t *Transform) Parameters(fns ...ParameterFunc) *Transform {
	t.params = append(t.params, fns...)
	return t
}

// Values appends fns to the functions applied to values read with Cursor.Value
func (t *Transform) Values(fns ...ValueFunc) *Transform {
	t.values = append(t.values, fns...)
	return t
}

func (t *Transform) applyParameter(p *dbwrap.Parameter) error {
	if p == nil {
		return nil
	}

	for _, fn := range t.params {
		if err := fn(p); err != nil {
			return err
		}
	}

	return nil
}

// Parameter returns the interceptor applying the parameter functions
func (t *Transform) Parameter() dbwrap.ParameterInterceptor {
	ops := dbwrap.ParameterNone
	if len(t.params) > 0 {
		ops = dbwrap.ParameterAdd | dbwrap.ParameterInsert
	}

	return transformParams{dbwrap.ParameterInterceptorBase{Ops: ops}, t}
}

// Cursor returns the interceptor applying the value functions
func (t *Transform) Cursor() dbwrap.CursorInterceptor {
	ops := dbwrap.CursorNone
	if len(t.values) > 0 {
		ops = dbwrap.CursorValue
	}

	return transformCursor{dbwrap.CursorInterceptorBase{Ops: ops}, t}
}

// Options returns the factory options registering the transform interceptors
func (t *Transform) Options() []dbwrap.Option {
	return []dbwrap.Option{
		dbwrap.WithParameterInterceptors(t.Parameter()),
		dbwrap.WithCursorInterceptors(t.Cursor()),
	}
}

type transformParams struct {
	dbwrap.ParameterInterceptorBase

	t *Transform
}

var _ dbwrap.ParameterInterceptor = transformParams{}

func (ic transformParams) Add(_ dbwrap.ParameterCollection, p *dbwrap.Parameter, next dbwrap.ArgFunc[*dbwrap.Parameter, int]) (int, error) {
	if err := ic.t.applyParameter(p); err != nil {
		return -1, err
	}

	return next(p)
}

func (ic transformParams) Insert(_ dbwrap.ParameterCollection, index int, p *dbwrap.Parameter, next dbwrap.InsertAction) error {
	if err := ic.t.applyParameter(p); err != nil {
		return err
	}

	return next(index, p)
}

type transformCursor struct {
	dbwrap.CursorInterceptorBase

	t *Transform
}

func (ic transformCursor) Value(cur dbwrap.Cursor, ordinal int, next dbwrap.ArgFunc[int, any]) (any, error) {
	v, err := next(ordinal)
	if err != nil {
		return v, err
	}

	var column string
	if cols := cur.Columns(); ordinal >= 0 && ordinal < len(cols) {
		column = cols[ordinal]
	}

	for _, fn := range ic.t.values {
		if v, err = fn(column, v); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// UTCParameters converts time.Time parameter values to UTC
func UTCParameters(p *dbwrap.Parameter) error {
	if t, ok := p.Value.(time.Time); ok {
		p.Value = t.UTC()
	}

	return nil
}

// LocalTimes returns a ValueFunc converting time.Time values to loc
func LocalTimes(loc *time.Location) ValueFunc {
	return func(_ string, v any) (any, error) {
		if t, ok := v.(time.Time); ok {
			return t.In(loc), nil
		}

		return v, nil
	}
}

// BytesAsStrings converts []byte values to strings, as returned by drivers
// that expose text columns as raw bytes
func BytesAsStrings(_ string, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}

	return v, nil
}
