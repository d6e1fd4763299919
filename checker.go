package contracts

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/openbindings/contracts-go/repr"
)

func builtinFactories() []Factory {
	return []Factory{
		FactoryFunc(createAny),
		FactoryFunc(createNone),
		FactoryFunc(createTypeParam),
		FactoryFunc(createNullable),
		FactoryFunc(createUnion),
		FactoryFunc(createEnum),
		FactoryFunc(createTuple),
		FactoryFunc(createVariadicTuple),
		FactoryFunc(createSequence),
		FactoryFunc(createMapping),
		FactoryFunc(createFunction),
		FactoryFunc(createGenerator),
		FactoryFunc(createIterator),
		FactoryFunc(createStructural),
		FactoryFunc(createInstantiate),
		FactoryFunc(createRefinement),
		FactoryFunc(createNominal),
	}
}

// isNil reports whether v is untyped nil or a nil value of a nillable kind.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

type anyChecker struct{}

func createAny(d Descriptor, _ *CreationContext) (Checker, error) {
	if _, ok := d.(*AnyType); !ok {
		return nil, nil
	}
	return anyChecker{}, nil
}

func (anyChecker) CheckAndWrap(v any, _ ExecutionContext) (any, error) { return v, nil }
func (anyChecker) Describe() string                                    { return "any" }
func (anyChecker) MayChangeIdentity() bool                             { return false }
func (anyChecker) BaseTypes() []string                                 { return []string{"any"} }
func (anyChecker) Priority() int                                       { return -1 }

type noneChecker struct{}

func createNone(d Descriptor, _ *CreationContext) (Checker, error) {
	if _, ok := d.(*NoneType); !ok {
		return nil, nil
	}
	return noneChecker{}, nil
}

func (c noneChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	if isNil(v) {
		return v, nil
	}
	return nil, raise(ctx, v, c.Describe())
}

func (noneChecker) Describe() string        { return "nil" }
func (noneChecker) MayChangeIdentity() bool { return false }
func (noneChecker) BaseTypes() []string     { return []string{"nil"} }
func (noneChecker) Priority() int           { return 0 }

type enumChecker struct {
	values []any
	desc   string
}

func createEnum(d Descriptor, cc *CreationContext) (Checker, error) {
	e, ok := d.(*Enum)
	if !ok {
		return nil, nil
	}
	if len(e.Values) == 0 {
		return nil, cc.Errorf("enum contract needs at least one value")
	}
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = repr.String(v)
	}
	return &enumChecker{values: e.Values, desc: "Enum[" + strings.Join(parts, ", ") + "]"}, nil
}

// Membership uses reflect.DeepEqual; go-cmp would panic on values with unexported fields.
func (c *enumChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	for _, m := range c.values {
		if reflect.DeepEqual(m, v) {
			return v, nil
		}
	}
	return nil, raise(ctx, v, c.desc)
}

func (c *enumChecker) Describe() string      { return c.desc }
func (*enumChecker) MayChangeIdentity() bool { return false }
func (*enumChecker) Priority() int           { return 0 }

func (c *enumChecker) BaseTypes() []string {
	out := make([]string, len(c.values))
	for i, v := range c.values {
		out[i] = "enum:" + repr.String(v)
	}
	return out
}

type nominalChecker struct {
	target reflect.Type
	name   string
	reg    *Registry
}

func createNominal(d Descriptor, cc *CreationContext) (Checker, error) {
	n, ok := d.(*Nominal)
	if !ok {
		return nil, nil
	}
	if n.Type == nil {
		return nil, cc.Errorf("nominal contract %q has no type", n.Name)
	}
	name := n.Name
	if name == "" {
		name = n.Type.String()
	}
	return &nominalChecker{target: n.Type, name: name, reg: cc.reg}, nil
}

func (c *nominalChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	inner := v
	if p, ok := v.(*ObjectProxy); ok {
		inner = p.inner
	}
	rt := reflect.TypeOf(inner)
	if rt == nil || !rt.AssignableTo(c.target) {
		return nil, raise(ctx, v, c.name)
	}
	if c.target.Kind() != reflect.Interface || rt == c.target {
		return v, nil
	}
	parent, ok := c.reg.declaredMethods(c.target)
	if !ok {
		return v, nil
	}
	table, err := c.reg.conformanceTable(c.name, parent, rt)
	if err != nil {
		return nil, err
	}
	if table.identical {
		return v, nil
	}
	return newObjectProxy(v, table, ctx), nil
}

func (c *nominalChecker) Describe() string { return c.name }

func (c *nominalChecker) MayChangeIdentity() bool {
	if c.target.Kind() != reflect.Interface {
		return false
	}
	_, ok := c.reg.declaredMethods(c.target)
	return ok
}

func (c *nominalChecker) BaseTypes() []string {
	return []string{c.target.PkgPath() + "." + c.target.String()}
}

func (*nominalChecker) Priority() int { return 0 }

type unionChecker struct {
	branches []Checker // declaration order; describe and layout index use it
	order    []int     // try order
	desc     string
}

func createUnion(d Descriptor, cc *CreationContext) (Checker, error) {
	u, ok := d.(*Union)
	if !ok {
		return nil, nil
	}
	if len(u.Branches) == 0 {
		return nil, cc.Errorf("union contract needs at least one branch")
	}
	branches := make([]Checker, len(u.Branches))
	for i, b := range u.Branches {
		c, err := cc.FindChecker(b)
		if err != nil {
			return nil, err
		}
		branches[i] = c
	}
	seen := map[string]string{}
	for _, c := range branches {
		for _, bt := range c.BaseTypes() {
			if prev, dup := seen[bt]; dup {
				return nil, cc.Errorf("ambiguous union: %s and %s cannot be told apart at check time", prev, c.Describe())
			}
			seen[bt] = c.Describe()
		}
	}
	order := make([]int, len(branches))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return branches[order[i]].Priority() > branches[order[j]].Priority()
	})
	return &unionChecker{branches: branches, order: order, desc: "Union[" + strings.Join(describeAll(branches), ", ") + "]"}, nil
}

func (c *unionChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	parts := describeAll(c.branches)
	for _, i := range c.order {
		bctx := &frameContext{upper: ctx, layout: bracketLayout("Union", parts, i)}
		out, err := c.branches[i].CheckAndWrap(v, bctx)
		if err == nil {
			return out, nil
		}
		if _, ok := err.(*ValueContractError); !ok {
			return nil, err
		}
	}
	return nil, raise(ctx, v, c.desc)
}

func (c *unionChecker) Describe() string { return c.desc }

func (c *unionChecker) MayChangeIdentity() bool {
	for _, b := range c.branches {
		if b.MayChangeIdentity() {
			return true
		}
	}
	return false
}

func (c *unionChecker) BaseTypes() []string {
	var out []string
	for _, b := range c.branches {
		out = append(out, b.BaseTypes()...)
	}
	return out
}

func (c *unionChecker) Priority() int {
	p := 0
	for _, b := range c.branches {
		if b.Priority() > p {
			p = b.Priority()
		}
	}
	return p
}

type nullableChecker struct {
	inner Checker
}

func createNullable(d Descriptor, cc *CreationContext) (Checker, error) {
	n, ok := d.(*Nullable)
	if !ok {
		return nil, nil
	}
	inner, err := cc.FindChecker(n.Inner)
	if err != nil {
		return nil, err
	}
	return &nullableChecker{inner: inner}, nil
}

func (c *nullableChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	if isNil(v) {
		return v, nil
	}
	return c.inner.CheckAndWrap(v, &frameContext{
		upper:  ctx,
		layout: bracketLayout("Optional", []string{c.inner.Describe()}, 0),
	})
}

func (c *nullableChecker) Describe() string        { return "Optional[" + c.inner.Describe() + "]" }
func (c *nullableChecker) MayChangeIdentity() bool { return c.inner.MayChangeIdentity() }
func (c *nullableChecker) BaseTypes() []string     { return append(c.inner.BaseTypes(), "nil") }
func (c *nullableChecker) Priority() int           { return c.inner.Priority() }

func describeAll(cs []Checker) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Describe()
	}
	return out
}

func notef(format string, args ...any) string { return fmt.Sprintf(format, args...) }
