package contracts

import (
	"fmt"

	"go.uber.org/zap"
)

// Condition is an extra predicate over a call. Pre conditions see the checked arguments; post
// conditions also see the checked result.
type Condition struct {
	// Source is shown in diagnostics; empty falls back to a generic message.
	Source   string
	Declared *Location
	Pre      func(args []any) bool
	Post     func(ret any, args []any) bool
}

// FuncOption configures a TypedFunc.
type FuncOption func(*TypedFunc)

// WithPrecondition adds a check run before the implementation is called.
func WithPrecondition(source string, declared *Location, fn func(args []any) bool) FuncOption {
	return func(f *TypedFunc) {
		f.pre = append(f.pre, Condition{Source: source, Declared: declared, Pre: fn})
	}
}

// WithPostcondition adds a check run on the result.
func WithPostcondition(source string, declared *Location, fn func(ret any, args []any) bool) FuncOption {
	return func(f *TypedFunc) {
		f.post = append(f.post, Condition{Source: source, Declared: declared, Post: fn})
	}
}

// TypedFunc is a declared boundary: a named implementation plus its function contract.
// Argument violations blame the call site; result violations blame the declaration.
type TypedFunc struct {
	name     string
	sig      *functionChecker
	impl     Invocable
	declared *Location
	pre      []Condition
	post     []Condition
}

// Func declares impl as name with contract f at declared. impl may be a Go func or an Invocable.
func (r *Registry) Func(name string, f *Function, impl any, declared *Location, opts ...FuncOption) (*TypedFunc, error) {
	c, err := r.Build(f, declared)
	if err != nil {
		return nil, err
	}
	sig, ok := c.(*functionChecker)
	if !ok {
		return nil, configErrorf(fmt.Sprintf("func %s: %s is not a function contract", name, c.Describe()), declared)
	}
	inv, n, _, callable := asInvocable(impl, declared)
	if !callable {
		return nil, configErrorf(fmt.Sprintf("func %s: implementation %T is not callable", name, impl), declared)
	}
	if n >= 0 && n != len(sig.params) {
		return nil, configErrorf(fmt.Sprintf("func %s: implementation takes %d parameters, contract declares %d", name, n, len(sig.params)), declared)
	}
	tf := &TypedFunc{name: name, sig: sig, impl: inv, declared: declared}
	for _, opt := range opts {
		if opt != nil {
			opt(tf)
		}
	}
	for _, c := range append(append([]Condition(nil), tf.pre...), tf.post...) {
		if c.Pre == nil && c.Post == nil {
			return nil, configErrorf(fmt.Sprintf("func %s: condition %q has no predicate", name, c.Source), c.Declared)
		}
	}
	r.logger.Debug("contracts: declared func", zap.String("func", tf.Describe()))
	return tf, nil
}

// Call checks args, runs the implementation and checks its result. site is the caller's location.
func (f *TypedFunc) Call(site *Location, args ...any) (any, error) {
	desc := f.Describe()
	if len(args) != len(f.sig.params) {
		err := NewValueContractError(args, desc).
			WithNote(notef("expected %d arguments, got %d", len(f.sig.params), len(args)))
		return nil, wrapWith(&frameContext{layout: identityLayout, declared: f.declared, responsible: site}, err)
	}
	checked, err := f.sig.checkArgs(args, func(i int) ExecutionContext {
		return &frameContext{
			layout:      funcLayout("func "+f.name, f.sig.pnames, f.sig.rname, i),
			declared:    f.declared,
			responsible: site,
		}
	})
	if err != nil {
		return nil, err
	}
	for _, c := range f.pre {
		if !c.Pre(checked) {
			return nil, f.conditionError(checked, c, "precondition", site)
		}
	}
	out, err := f.impl.Call(site, checked...)
	if err != nil {
		return nil, err
	}
	ret, err := f.sig.checkReturn(out, &frameContext{
		layout:      funcLayout("func "+f.name, f.sig.pnames, f.sig.rname, len(f.sig.params)),
		declared:    f.declared,
		responsible: f.declared,
	})
	if err != nil {
		return nil, err
	}
	for _, c := range f.post {
		if !c.Post(ret, checked) {
			return nil, f.conditionError(ret, c, "postcondition", f.declared)
		}
	}
	return ret, nil
}

func (f *TypedFunc) conditionError(given any, c Condition, kind string, responsible *Location) error {
	expected := "passing " + kind
	if c.Source != "" {
		expected = "passing: " + c.Source
	}
	err := NewValueContractError(given, expected).WithNote("failed " + kind)
	err = err.WithFrame(NewFrame(expected, "", c.Declared, nil))
	return wrapWith(&frameContext{layout: wholeLayout(f.Describe()), declared: f.declared, responsible: responsible}, err)
}

// Describe renders `func name(params) ret`.
func (f *TypedFunc) Describe() string { return describeFunc("func "+f.name, f.sig.pnames, f.sig.rname) }

func (f *TypedFunc) Name() string        { return f.name }
func (f *TypedFunc) Arity() int          { return len(f.sig.params) }
func (f *TypedFunc) Location() *Location { return f.declared }
func (f *TypedFunc) String() string      { return f.Describe() }
