package contracts

import (
	"reflect"
	"strings"
)

type tupleChecker struct {
	elems []Checker
	parts []string
}

func createTuple(d Descriptor, cc *CreationContext) (Checker, error) {
	t, ok := d.(*Tuple)
	if !ok {
		return nil, nil
	}
	elems := make([]Checker, len(t.Elems))
	for i, e := range t.Elems {
		c, err := cc.FindChecker(e)
		if err != nil {
			return nil, err
		}
		elems[i] = c
	}
	return &tupleChecker{elems: elems, parts: describeAll(elems)}, nil
}

// tupleElems returns the positional elements of a slice or array value.
func tupleElems(v any) ([]any, bool) {
	if xs, ok := v.([]any); ok {
		return xs, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func (c *tupleChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	xs, ok := tupleElems(v)
	if !ok {
		return nil, raise(ctx, v, c.Describe())
	}
	if len(xs) != len(c.elems) {
		return nil, raise(ctx, v, c.Describe(), notef("expected %d elements, got %d", len(c.elems), len(xs)))
	}
	changed := false
	out := make([]any, len(xs))
	for i, x := range xs {
		r, err := c.elems[i].CheckAndWrap(x, &frameContext{upper: ctx, layout: bracketLayout("Tuple", c.parts, i)})
		if err != nil {
			return nil, err
		}
		out[i] = r
		changed = changed || c.elems[i].MayChangeIdentity()
	}
	if !changed {
		return v, nil
	}
	return out, nil
}

func (c *tupleChecker) Describe() string { return "Tuple[" + strings.Join(c.parts, ", ") + "]" }

func (c *tupleChecker) MayChangeIdentity() bool {
	for _, e := range c.elems {
		if e.MayChangeIdentity() {
			return true
		}
	}
	return false
}

func (*tupleChecker) BaseTypes() []string { return []string{"tuple"} }
func (*tupleChecker) Priority() int       { return 0 }

type variadicTupleChecker struct {
	elem Checker
}

func createVariadicTuple(d Descriptor, cc *CreationContext) (Checker, error) {
	t, ok := d.(*VariadicTuple)
	if !ok {
		return nil, nil
	}
	elem, err := cc.FindChecker(t.Elem)
	if err != nil {
		return nil, err
	}
	return &variadicTupleChecker{elem: elem}, nil
}

func (c *variadicTupleChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	xs, ok := tupleElems(v)
	if !ok {
		return nil, raise(ctx, v, c.Describe())
	}
	layout := prefixLayout("Tuple[", ", ...]")
	out := make([]any, len(xs))
	for i, x := range xs {
		r, err := c.elem.CheckAndWrap(x, &frameContext{upper: ctx, layout: layout})
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	if !c.elem.MayChangeIdentity() {
		return v, nil
	}
	return out, nil
}

func (c *variadicTupleChecker) Describe() string        { return "Tuple[" + c.elem.Describe() + ", ...]" }
func (c *variadicTupleChecker) MayChangeIdentity() bool { return c.elem.MayChangeIdentity() }
func (*variadicTupleChecker) BaseTypes() []string       { return []string{"tuple"} }
func (*variadicTupleChecker) Priority() int             { return 0 }
