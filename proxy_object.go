package contracts

import (
	"fmt"

	"github.com/openbindings/contracts-go/repr"
)

// ObjectProxy keeps a value under a structural contract, or under the method contracts declared
// by an interface it was checked against. Methods without a contract are forwarded unchecked.
//
// Arguments are checked against the contract with the caller as the responsible party. When the
// implementation declares narrower contracts of its own, arguments are checked against those too
// and results against both; a failure there is reported as a conformance violation of the
// object, caused by the narrower contract.
type ObjectProxy struct {
	inner any
	table *methodTable
	ctx   ExecutionContext
}

func newObjectProxy(v any, table *methodTable, ctx ExecutionContext) *ObjectProxy {
	return &ObjectProxy{inner: v, table: table, ctx: ctx}
}

// Call invokes method with args. site is the caller's location.
func (p *ObjectProxy) Call(site *Location, method string, args ...any) (any, error) {
	impl, ok := lookupMethod(p.inner, method)
	if !ok {
		return nil, fmt.Errorf("contracts: %s has no method %s", repr.Type(p.inner), method)
	}
	e, ok := p.table.methods[method]
	if !ok {
		return impl.Call(site, args...)
	}
	c := e.contract
	prefix := p.table.owner + "." + method
	if len(args) != len(c.params) {
		err := NewValueContractError(args, describeFunc(prefix, c.pnames, c.rname)).
			WithNote(notef("expected %d arguments, got %d", len(c.params), len(args)))
		return nil, wrapWith(&frameContext{upper: p.ctx, layout: identityLayout, declared: e.declared, responsible: site, settle: settleIfKnown(site)}, err)
	}
	checked, err := c.checkArgs(args, func(i int) ExecutionContext {
		return &frameContext{
			upper:       p.ctx,
			layout:      funcLayout(prefix, c.pnames, c.rname, i),
			declared:    e.declared,
			responsible: site,
			settle:      settleIfKnown(site),
		}
	})
	if err != nil {
		return nil, err
	}

	implLoc := e.concreteDeclared
	if implLoc == nil {
		if l, ok := impl.(Locatable); ok {
			implLoc = l.Location()
		}
	}
	concretePrefix := p.table.concrete + "." + method
	if e.concrete != nil {
		own := e.concrete
		checked, err = own.checkArgs(checked, func(i int) ExecutionContext {
			return &conformanceContext{
				upper:         p.ctx,
				object:        p.inner,
				table:         p.table,
				method:        method,
				layout:        funcLayout(concretePrefix, own.pnames, own.rname, i),
				innerDeclared: e.concreteDeclared,
				declared:      e.declared,
				responsible:   implLoc,
			}
		})
		if err != nil {
			return nil, err
		}
	}

	out, err := impl.Call(site, checked...)
	if err != nil {
		return nil, err
	}
	if e.concrete != nil {
		own := e.concrete
		out, err = own.checkReturn(out, &frameContext{
			layout:      funcLayout(concretePrefix, own.pnames, own.rname, len(own.params)),
			declared:    e.concreteDeclared,
			responsible: e.concreteDeclared,
		})
		if err != nil {
			return nil, err
		}
	}
	return c.checkReturn(out, &conformanceContext{
		upper:         p.ctx,
		object:        p.inner,
		table:         p.table,
		method:        method,
		layout:        funcLayout(prefix, c.pnames, c.rname, len(c.params)),
		innerDeclared: e.declared,
		declared:      e.declared,
		responsible:   implLoc,
	})
}

// LookupMethod makes proxies usable wherever a MethodSet is accepted, so they nest.
func (p *ObjectProxy) LookupMethod(name string) (Invocable, bool) {
	if _, ok := lookupMethod(p.inner, name); !ok {
		return nil, false
	}
	return InvocableFunc(func(site *Location, args ...any) (any, error) {
		return p.Call(site, name, args...)
	}), true
}

// Method returns a bound method, or nil when the value has none by that name.
func (p *ObjectProxy) Method(name string) Invocable {
	m, ok := p.LookupMethod(name)
	if !ok {
		return nil
	}
	return m
}

// Inner returns the wrapped value.
func (p *ObjectProxy) Inner() any { return p.inner }

func (p *ObjectProxy) String() string { return repr.String(p.inner) }

// conformanceContext reports a failure of the object's own method as a violation of the
// object against the contract it was checked with, carrying the method failure as its cause.
type conformanceContext struct {
	upper  ExecutionContext
	object any
	table  *methodTable
	method string
	layout func(slot) slot

	innerDeclared *Location
	declared      *Location
	responsible   *Location
}

func (c *conformanceContext) Wrap(err *ValueContractError) *ValueContractError {
	ty, ind := err.NextTypeAndIndicator()
	s := c.layout(slot{ty: ty, ind: ind})
	cause := err.WithFrame(NewFrame(s.ty, s.ind, c.innerDeclared, c.responsible))
	outer := NewValueContractError(c.object, c.table.owner).
		WithPrevious(cause).
		WithNote(notef("method %s of %s does not conform to %s", c.method, c.table.concrete, c.table.owner))
	outer = outer.WithFrame(NewFrame(c.table.owner, "", c.declared, c.responsible))
	if settleIfKnown(c.responsible) {
		outer = outer.Settled()
	}
	if c.upper == nil {
		return outer
	}
	return c.upper.Wrap(outer)
}
