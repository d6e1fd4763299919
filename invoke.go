package contracts

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/openbindings/contracts-go/repr"
)

// Invocable is a callable that learns the call site of every invocation. Proxies and typed
// functions implement it; plain Go funcs are adapted with reflection.
type Invocable interface {
	Call(site *Location, args ...any) (any, error)
}

// InvocableFunc adapts a function to Invocable.
type InvocableFunc func(site *Location, args ...any) (any, error)

func (f InvocableFunc) Call(site *Location, args ...any) (any, error) { return f(site, args...) }

type arityReporter interface {
	Arity() int
}

// LocatedFunc attaches a declaration site to a callable so blame can name it.
type LocatedFunc struct {
	Fn  any
	Loc *Location
}

// Located attaches loc to fn, which may be a Go func or an Invocable.
func Located(fn any, loc *Location) *LocatedFunc {
	return &LocatedFunc{Fn: fn, Loc: loc}
}

func (f *LocatedFunc) Location() *Location { return f.Loc }

func (f *LocatedFunc) Call(site *Location, args ...any) (any, error) {
	inv, _, _, ok := asInvocable(f.Fn, f.Loc)
	if !ok {
		return nil, fmt.Errorf("contracts: %T is not callable", f.Fn)
	}
	return inv.Call(site, args...)
}

func (f *LocatedFunc) String() string { return repr.String(f.Fn) }

// asInvocable returns an Invocable for v with its arity (-1 when unknown) and declaration site.
// loc, when non-nil, overrides the discovered site.
func asInvocable(v any, loc *Location) (Invocable, int, *Location, bool) {
	if lf, ok := v.(*LocatedFunc); ok {
		if loc == nil {
			loc = lf.Loc
		}
		return asInvocable(lf.Fn, loc)
	}
	if inv, ok := v.(Invocable); ok && !isNil(v) {
		n := -1
		if a, ok := v.(arityReporter); ok {
			n = a.Arity()
		}
		if loc == nil {
			if l, ok := v.(Locatable); ok {
				loc = l.Location()
			}
		}
		return inv, n, loc, true
	}
	if v == nil {
		return nil, 0, nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, 0, nil, false
	}
	if loc == nil {
		loc = funcLocation(rv)
	}
	n := rv.Type().NumIn()
	if rv.Type().IsVariadic() {
		n = -1
	}
	return &reflectFunc{fn: rv, loc: loc}, n, loc, true
}

// funcLocation returns the source position of a Go function value.
func funcLocation(rv reflect.Value) *Location {
	f := runtime.FuncForPC(rv.Pointer())
	if f == nil {
		return nil
	}
	file, line := f.FileLine(f.Entry())
	if file == "" {
		return nil
	}
	return &Location{Unit: file, Line: line}
}

// contractPanic carries a violation out of a reflect.MakeFunc adapter whose Go signature has
// no error result. reflectFunc.Call turns it back into an error.
type contractPanic struct {
	err error
}

type reflectFunc struct {
	fn  reflect.Value
	loc *Location
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func (f *reflectFunc) Location() *Location { return f.loc }

func (f *reflectFunc) Call(site *Location, args ...any) (out any, err error) {
	t := f.fn.Type()
	if t.IsVariadic() {
		if len(args) < t.NumIn()-1 {
			return nil, fmt.Errorf("contracts: %s called with %d arguments", t, len(args))
		}
	} else if len(args) != t.NumIn() {
		return nil, fmt.Errorf("contracts: %s called with %d arguments", t, len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		pt := paramType(t, i)
		// Callbacks the function invokes are attributed to the function itself.
		v, err := adaptTo(pt, a, f.loc)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}
	defer func() {
		if r := recover(); r != nil {
			cp, ok := r.(contractPanic)
			if !ok {
				panic(r)
			}
			out, err = nil, cp.err
		}
	}()
	return results(f.fn.Call(in))
}

func paramType(t reflect.Type, i int) reflect.Type {
	if t.IsVariadic() && i >= t.NumIn()-1 {
		return t.In(t.NumIn() - 1).Elem()
	}
	return t.In(i)
}

// results folds Go results into (value, error). A trailing error result is split off; several
// remaining values become a []any.
func results(rs []reflect.Value) (any, error) {
	var err error
	if n := len(rs); n > 0 && rs[n-1].Type() == errorType {
		if e := rs[n-1].Interface(); e != nil {
			err = e.(error)
		}
		rs = rs[:n-1]
	}
	switch len(rs) {
	case 0:
		return nil, err
	case 1:
		return rs[0].Interface(), err
	}
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = r.Interface()
	}
	return out, err
}

// adaptTo converts v to a value of type t. Invocables become Go funcs of type t that report
// site as the call site of every invocation.
func adaptTo(t reflect.Type, v any, site *Location) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if t.Kind() == reflect.Func {
		if inv, ok := v.(Invocable); ok {
			return reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
				args := make([]any, len(in))
				for i, a := range in {
					args[i] = a.Interface()
				}
				r, err := inv.Call(site, args...)
				return outValues(t, r, err, site)
			}), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("contracts: cannot use %T as %s", v, t)
}

func outValues(t reflect.Type, r any, err error, site *Location) []reflect.Value {
	n := t.NumOut()
	hasErr := n > 0 && t.Out(n-1) == errorType
	out := make([]reflect.Value, n)
	for i := range out {
		out[i] = reflect.Zero(t.Out(i))
	}
	if err != nil {
		if !hasErr {
			panic(contractPanic{err: err})
		}
		out[n-1] = reflect.ValueOf(&err).Elem()
		return out
	}
	vals := n
	if hasErr {
		vals--
	}
	switch {
	case vals == 1:
		v, aerr := adaptTo(t.Out(0), r, site)
		if aerr != nil {
			panic(contractPanic{err: aerr})
		}
		out[0] = v
	case vals > 1:
		xs, _ := tupleElems(r)
		for i := 0; i < vals && i < len(xs); i++ {
			v, aerr := adaptTo(t.Out(i), xs[i], site)
			if aerr != nil {
				panic(contractPanic{err: aerr})
			}
			out[i] = v
		}
	}
	return out
}
