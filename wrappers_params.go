// (c) Copyright IBM Corp. 2024

package dbwrap

// wParams applies the parameter interceptor chains to the mutating members of
// a provider ParameterCollection. Read-only members are promoted unchanged.
type wParams struct {
	ParameterCollection

	f *filters
}

var (
	_ ParameterCollection = (*wParams)(nil)
	_ Wrapper             = (*wParams)(nil)
)

func wrapParams(params ParameterCollection, f *filters) *wParams {
	if w, ok := params.(*wParams); ok {
		return w
	}

	return &wParams{ParameterCollection: params, f: f}
}

// Unwrap returns the provider parameter collection
func (p *wParams) Unwrap() any {
	return p.ParameterCollection
}

func (p *wParams) Add(param *Parameter) (int, error) {
	ics := p.f.params.For(ParameterAdd)
	if len(ics) == 0 {
		return p.ParameterCollection.Add(param)
	}

	return ChainArgFunc(ics, ArgFunc[*Parameter, int](p.ParameterCollection.Add), func(ic ParameterInterceptor, param *Parameter, next ArgFunc[*Parameter, int]) (int, error) {
		return ic.Add(p.ParameterCollection, param, next)
	})(param)
}

func (p *wParams) Insert(index int, param *Parameter) error {
	ics := p.f.params.For(ParameterInsert)
	if len(ics) == 0 {
		return p.ParameterCollection.Insert(index, param)
	}

	return compose(ics, InsertAction(p.ParameterCollection.Insert), func(ic ParameterInterceptor, next InsertAction) InsertAction {
		return func(index int, param *Parameter) error {
			g := newContinuationGuard(ic)

			return ic.Insert(p.ParameterCollection, index, param, func(index int, param *Parameter) error {
				if err := g.enter(); err != nil {
					return err
				}

				return next(index, param)
			})
		}
	})(index, param)
}

func (p *wParams) Remove(param *Parameter) error {
	ics := p.f.params.For(ParameterRemove)
	if len(ics) == 0 {
		return p.ParameterCollection.Remove(param)
	}

	return ChainArgAction(ics, ArgAction[*Parameter](p.ParameterCollection.Remove), func(ic ParameterInterceptor, param *Parameter, next ArgAction[*Parameter]) error {
		return ic.Remove(p.ParameterCollection, param, next)
	})(param)
}

func (p *wParams) RemoveAt(index int) error {
	ics := p.f.params.For(ParameterRemoveAt)
	if len(ics) == 0 {
		return p.ParameterCollection.RemoveAt(index)
	}

	return ChainArgAction(ics, ArgAction[int](p.ParameterCollection.RemoveAt), func(ic ParameterInterceptor, index int, next ArgAction[int]) error {
		return ic.RemoveAt(p.ParameterCollection, index, next)
	})(index)
}

func (p *wParams) Clear() error {
	ics := p.f.params.For(ParameterClear)
	if len(ics) == 0 {
		return p.ParameterCollection.Clear()
	}

	return ChainAction(ics, p.ParameterCollection.Clear, func(ic ParameterInterceptor, next Action) error {
		return ic.Clear(p.ParameterCollection, next)
	})()
}
