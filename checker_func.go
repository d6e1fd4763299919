package contracts

import (
	"github.com/openbindings/contracts-go/repr"
)

type functionChecker struct {
	params []Checker
	ret    Checker // nil when the callable returns nothing
	pnames []string
	rname  string
}

func createFunction(d Descriptor, cc *CreationContext) (Checker, error) {
	f, ok := d.(*Function)
	if !ok {
		return nil, nil
	}
	c := &functionChecker{params: make([]Checker, len(f.Params))}
	for i, p := range f.Params {
		pc, err := cc.FindChecker(p)
		if err != nil {
			return nil, err
		}
		c.params[i] = pc
	}
	if f.Return != nil {
		rc, err := cc.FindChecker(f.Return)
		if err != nil {
			return nil, err
		}
		c.ret = rc
		c.rname = rc.Describe()
	}
	c.pnames = describeAll(c.params)
	return c, nil
}

func (c *functionChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	inv, n, loc, ok := asInvocable(v, nil)
	if !ok {
		return nil, raise(ctx, v, c.Describe())
	}
	if n >= 0 && n != len(c.params) {
		return nil, raise(ctx, v, c.Describe(), notef("expected %d parameters, got %d", len(c.params), n))
	}
	return &FuncProxy{inner: inv, raw: v, sig: c, ctx: ctx, loc: loc}, nil
}

func (c *functionChecker) Describe() string    { return describeFunc("func", c.pnames, c.rname) }
func (*functionChecker) MayChangeIdentity() bool { return true }
func (*functionChecker) BaseTypes() []string     { return []string{"func"} }
func (*functionChecker) Priority() int           { return 0 }

// checkArgs checks args positionally; ctxAt supplies the context for position i.
func (c *functionChecker) checkArgs(args []any, ctxAt func(i int) ExecutionContext) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		r, err := c.params[i].CheckAndWrap(a, ctxAt(i))
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (c *functionChecker) checkReturn(v any, ctx ExecutionContext) (any, error) {
	if c.ret == nil {
		return v, nil
	}
	return c.ret.CheckAndWrap(v, ctx)
}

// equalSignature reports whether two function contracts describe identically.
func (c *functionChecker) equalSignature(o *functionChecker) bool {
	return o != nil && c.Describe() == o.Describe()
}

// FuncProxy is a callable kept under its function contract. Arguments are checked on every
// call with the caller as the responsible party; results are checked with the implementation
// as the responsible party.
type FuncProxy struct {
	inner Invocable
	raw   any
	sig   *functionChecker
	ctx   ExecutionContext
	loc   *Location
}

// Call invokes the wrapped callable. site is where the call happens and may be nil.
func (p *FuncProxy) Call(site *Location, args ...any) (any, error) {
	if len(args) != len(p.sig.params) {
		err := NewValueContractError(args, p.sig.Describe()).
			WithNote(notef("expected %d arguments, got %d", len(p.sig.params), len(args)))
		return nil, wrapWith(p.argContext(site, identityLayout), err)
	}
	checked, err := p.sig.checkArgs(args, func(i int) ExecutionContext {
		return p.argContext(site, funcLayout("func", p.sig.pnames, p.sig.rname, i))
	})
	if err != nil {
		return nil, err
	}
	out, err := p.inner.Call(site, checked...)
	if err != nil {
		return nil, err
	}
	return p.sig.checkReturn(out, &frameContext{
		upper:       p.ctx,
		layout:      funcLayout("func", p.sig.pnames, p.sig.rname, len(p.sig.params)),
		responsible: p.loc,
		settle:      settleIfKnown(p.loc),
	})
}

func (p *FuncProxy) argContext(site *Location, layout func(slot) slot) ExecutionContext {
	return &frameContext{upper: p.ctx, layout: layout, responsible: site, settle: settleIfKnown(site)}
}

func (p *FuncProxy) Arity() int          { return len(p.sig.params) }
func (p *FuncProxy) Location() *Location { return p.loc }

// Inner returns the wrapped callable.
func (p *FuncProxy) Inner() any { return p.raw }

func (p *FuncProxy) String() string { return repr.String(p.raw) }
