package contracts

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/openbindings/contracts-go/repr"
)

// List is a mutable ordered container. Go slices are adapted to it; a *SequenceProxy is one too,
// so proxies nest.
type List interface {
	Len() int
	Get(i int) (any, error)
	Set(site *Location, i int, v any) error
	Append(site *Location, vs ...any) error
	Insert(site *Location, i int, v any) error
	Pop(i int) (any, error)
}

type sequenceChecker struct {
	elem Checker
}

func createSequence(d Descriptor, cc *CreationContext) (Checker, error) {
	s, ok := d.(*Sequence)
	if !ok {
		return nil, nil
	}
	elem, err := cc.FindChecker(s.Elem)
	if err != nil {
		return nil, err
	}
	return &sequenceChecker{elem: elem}, nil
}

// asList adapts v. A pointer to a slice shares storage and length with the caller; a slice held
// by value shares its backing array only, so appends through the proxy stay in the proxy.
func asList(v any) (List, bool) {
	if l, ok := v.(List); ok && !isNil(v) {
		return l, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Slice:
		return &sliceList{ptr: rv}, true
	case rv.Kind() == reflect.Slice:
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		return &sliceList{ptr: ptr}, true
	}
	return nil, false
}

func (c *sequenceChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	l, ok := asList(v)
	if !ok {
		return nil, raise(ctx, v, c.Describe())
	}
	return &SequenceProxy{inner: l, raw: v, elem: c.elem, ctx: ctx}, nil
}

func (c *sequenceChecker) Describe() string { return "[]" + c.elem.Describe() }
func (*sequenceChecker) MayChangeIdentity() bool { return true }
func (*sequenceChecker) BaseTypes() []string     { return []string{"sequence"} }
func (*sequenceChecker) Priority() int           { return 0 }

// SequenceProxy keeps a container under an element contract. Existing elements are checked when
// read, so an inconsistent container is accepted until the bad element is observed. Writes are
// checked immediately and blame the writer.
type SequenceProxy struct {
	inner List
	raw   any
	elem  Checker
	ctx   ExecutionContext
}

func (p *SequenceProxy) readContext() ExecutionContext {
	return &frameContext{upper: p.ctx, layout: prefixLayout("[]", "")}
}

func (p *SequenceProxy) writeContext(site *Location) ExecutionContext {
	return &frameContext{upper: p.ctx, layout: prefixLayout("[]", ""), responsible: site, settle: settleIfKnown(site)}
}

func (p *SequenceProxy) checkWrites(site *Location, vs []any) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		r, err := p.elem.CheckAndWrap(v, p.writeContext(site))
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (p *SequenceProxy) Len() int { return p.inner.Len() }

// Get reads element i.
func (p *SequenceProxy) Get(i int) (any, error) {
	v, err := p.inner.Get(i)
	if err != nil {
		return nil, err
	}
	return p.elem.CheckAndWrap(v, p.readContext())
}

// Set replaces element i. site is the writer's location.
func (p *SequenceProxy) Set(site *Location, i int, v any) error {
	checked, err := p.checkWrites(site, []any{v})
	if err != nil {
		return err
	}
	return p.inner.Set(site, i, checked[0])
}

// Append checks every value before appending any of them.
func (p *SequenceProxy) Append(site *Location, vs ...any) error {
	checked, err := p.checkWrites(site, vs)
	if err != nil {
		return err
	}
	return p.inner.Append(site, checked...)
}

func (p *SequenceProxy) Insert(site *Location, i int, v any) error {
	checked, err := p.checkWrites(site, []any{v})
	if err != nil {
		return err
	}
	return p.inner.Insert(site, i, checked[0])
}

// Extend appends the elements of another slice, array or List.
func (p *SequenceProxy) Extend(site *Location, other any) error {
	xs, err := snapshotOf(other)
	if err != nil {
		return err
	}
	return p.Append(site, xs...)
}

// Pop removes and returns element i. The value is checked like a read first; an element that
// fails the check stays in place.
func (p *SequenceProxy) Pop(i int) (any, error) {
	out, err := p.Get(i)
	if err != nil {
		return nil, err
	}
	if _, err := p.inner.Pop(i); err != nil {
		return nil, err
	}
	return out, nil
}

// All yields checked elements in order and stops at the first violation.
func (p *SequenceProxy) All() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for i := 0; i < p.inner.Len(); i++ {
			v, err := p.Get(i)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// Slice returns a new, unchecked []any holding elements [i, j).
func (p *SequenceProxy) Slice(i, j int) ([]any, error) {
	xs := p.Copy()
	if i < 0 || j > len(xs) || i > j {
		return nil, fmt.Errorf("contracts: slice bounds [%d:%d] out of range with length %d", i, j, len(xs))
	}
	return append([]any(nil), xs[i:j]...), nil
}

// Copy returns a new, unchecked []any with the current elements.
func (p *SequenceProxy) Copy() []any {
	xs, _ := snapshotOf(p.inner)
	return xs
}

// Concat returns a new, unchecked []any with the elements of p followed by those of other.
func (p *SequenceProxy) Concat(other any) ([]any, error) {
	ys, err := snapshotOf(other)
	if err != nil {
		return nil, err
	}
	return append(p.Copy(), ys...), nil
}

// Equal compares elements with other, which may be a slice, an array or a List.
func (p *SequenceProxy) Equal(other any) bool {
	ys, err := snapshotOf(other)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(p.Copy(), ys)
}

// Inner returns the wrapped container.
func (p *SequenceProxy) Inner() any { return p.raw }

func (p *SequenceProxy) String() string { return repr.String(p.Copy()) }

// snapshotOf copies the elements of a slice, array or List without checking them.
func snapshotOf(v any) ([]any, error) {
	if p, ok := v.(*SequenceProxy); ok {
		v = p.inner
	}
	if l, ok := v.(List); ok {
		out := make([]any, l.Len())
		for i := range out {
			x, err := l.Get(i)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Slice {
		v = rv.Elem().Interface()
	}
	if xs, ok := tupleElems(v); ok {
		return xs, nil
	}
	return nil, fmt.Errorf("contracts: %T is not a sequence", v)
}

// sliceList is a List over a pointer to a Go slice.
type sliceList struct {
	ptr reflect.Value
}

func (l *sliceList) slice() reflect.Value { return l.ptr.Elem() }

func (l *sliceList) Len() int { return l.slice().Len() }

func (l *sliceList) bounds(i int) error {
	if n := l.Len(); i < 0 || i >= n {
		return fmt.Errorf("contracts: index %d out of range [0:%d]", i, n)
	}
	return nil
}

func (l *sliceList) Get(i int) (any, error) {
	if err := l.bounds(i); err != nil {
		return nil, err
	}
	return l.slice().Index(i).Interface(), nil
}

func (l *sliceList) Set(site *Location, i int, v any) error {
	if err := l.bounds(i); err != nil {
		return err
	}
	rv, err := adaptTo(l.slice().Type().Elem(), v, site)
	if err != nil {
		return err
	}
	l.slice().Index(i).Set(rv)
	return nil
}

func (l *sliceList) Append(site *Location, vs ...any) error {
	s := l.slice()
	rvs := make([]reflect.Value, len(vs))
	for i, v := range vs {
		rv, err := adaptTo(s.Type().Elem(), v, site)
		if err != nil {
			return err
		}
		rvs[i] = rv
	}
	s.Set(reflect.Append(s, rvs...))
	return nil
}

func (l *sliceList) Insert(site *Location, i int, v any) error {
	s := l.slice()
	if i < 0 || i > s.Len() {
		return fmt.Errorf("contracts: insert index %d out of range [0:%d]", i, s.Len())
	}
	rv, err := adaptTo(s.Type().Elem(), v, site)
	if err != nil {
		return err
	}
	s.Set(reflect.Append(s, reflect.Zero(s.Type().Elem())))
	reflect.Copy(s.Slice(i+1, s.Len()), s.Slice(i, s.Len()-1))
	s.Index(i).Set(rv)
	return nil
}

func (l *sliceList) Pop(i int) (any, error) {
	if err := l.bounds(i); err != nil {
		return nil, err
	}
	s := l.slice()
	v := s.Index(i).Interface()
	reflect.Copy(s.Slice(i, s.Len()-1), s.Slice(i+1, s.Len()))
	s.Set(s.Slice(0, s.Len()-1))
	return v, nil
}
