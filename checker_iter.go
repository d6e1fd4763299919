package contracts

import (
	"iter"
	"reflect"

	"github.com/openbindings/contracts-go/repr"
)

type generatorChecker struct {
	yield, send, ret Checker
}

func createGenerator(d Descriptor, cc *CreationContext) (Checker, error) {
	g, ok := d.(*Generator)
	if !ok {
		return nil, nil
	}
	c := &generatorChecker{}
	for _, p := range []struct {
		d   Descriptor
		dst *Checker
	}{{g.Yield, &c.yield}, {g.Send, &c.send}, {g.Return, &c.ret}} {
		if p.d == nil {
			p.d = Any
		}
		ch, err := cc.FindChecker(p.d)
		if err != nil {
			return nil, err
		}
		*p.dst = ch
	}
	return c, nil
}

func (c *generatorChecker) parts() []string {
	return []string{c.yield.Describe(), c.send.Describe(), c.ret.Describe()}
}

func (c *generatorChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	g, ok := v.(Resumable)
	if !ok || isNil(v) {
		return nil, raise(ctx, v, c.Describe())
	}
	var loc *Location
	if l, ok := v.(Locatable); ok {
		loc = l.Location()
	}
	return &GeneratorProxy{inner: g, sig: c, ctx: ctx, loc: loc}, nil
}

func (c *generatorChecker) Describe() string {
	return "Generator[" + c.yield.Describe() + ", " + c.send.Describe() + ", " + c.ret.Describe() + "]"
}

func (*generatorChecker) MayChangeIdentity() bool { return true }
func (*generatorChecker) BaseTypes() []string     { return []string{"generator"} }
func (*generatorChecker) Priority() int           { return 0 }

// GeneratorProxy checks every value sent into a generator, every value it produces and its
// completion value, one step at a time.
type GeneratorProxy struct {
	inner   Resumable
	sig     *generatorChecker
	ctx     ExecutionContext
	loc     *Location
	started bool
}

// Resume forwards sent after checking it. The first call only starts the generator, so its
// sent value is not checked.
func (p *GeneratorProxy) Resume(site *Location, sent any) (any, bool, error) {
	parts := p.sig.parts()
	if p.started {
		checked, err := p.sig.send.CheckAndWrap(sent, &frameContext{
			upper:       p.ctx,
			layout:      bracketLayout("Generator", parts, 1),
			responsible: site,
			settle:      settleIfKnown(site),
		})
		if err != nil {
			return nil, false, err
		}
		sent = checked
	}
	p.started = true
	v, done, err := p.inner.Resume(site, sent)
	if err != nil {
		return nil, done, err
	}
	idx, c := 0, p.sig.yield
	if done {
		idx, c = 2, p.sig.ret
	}
	out, err := c.CheckAndWrap(v, &frameContext{
		upper:       p.ctx,
		layout:      bracketLayout("Generator", parts, idx),
		responsible: p.loc,
		settle:      settleIfKnown(p.loc),
	})
	if err != nil {
		return nil, done, err
	}
	return out, done, nil
}

// Close closes the wrapped generator when it supports closing.
func (p *GeneratorProxy) Close() {
	if c, ok := p.inner.(interface{ Close() }); ok {
		c.Close()
	}
}

func (p *GeneratorProxy) Location() *Location { return p.loc }
func (p *GeneratorProxy) Inner() any          { return p.inner }
func (p *GeneratorProxy) String() string      { return "generator " + p.sig.Describe() }

type iteratorChecker struct {
	elem Checker
}

func createIterator(d Descriptor, cc *CreationContext) (Checker, error) {
	it, ok := d.(*Iterator)
	if !ok {
		return nil, nil
	}
	elem, err := cc.FindChecker(it.Elem)
	if err != nil {
		return nil, err
	}
	return &iteratorChecker{elem: elem}, nil
}

func (c *iteratorChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	src, ok := asPuller(v)
	if !ok {
		return nil, raise(ctx, v, c.Describe())
	}
	var loc *Location
	if l, ok := v.(Locatable); ok {
		loc = l.Location()
	} else if rv := reflect.ValueOf(v); rv.Kind() == reflect.Func {
		loc = funcLocation(rv)
	}
	return &IteratorProxy{inner: src, raw: v, elem: c.elem, ctx: ctx, loc: loc}, nil
}

func (c *iteratorChecker) Describe() string        { return "Iterator[" + c.elem.Describe() + "]" }
func (*iteratorChecker) MayChangeIdentity() bool { return true }
func (*iteratorChecker) BaseTypes() []string     { return []string{"iterator"} }
func (*iteratorChecker) Priority() int           { return 0 }

// IteratorProxy checks every pulled value before handing it on.
type IteratorProxy struct {
	inner Puller
	raw   any
	elem  Checker
	ctx   ExecutionContext
	loc   *Location
}

// Next pulls and checks the next value. ok is false once the source is exhausted.
func (p *IteratorProxy) Next() (any, bool, error) {
	v, ok, err := p.inner.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	out, err := p.elem.CheckAndWrap(v, &frameContext{
		upper:       p.ctx,
		layout:      bracketLayout("Iterator", []string{p.elem.Describe()}, 0),
		responsible: p.loc,
		settle:      settleIfKnown(p.loc),
	})
	if err != nil {
		return nil, true, err
	}
	return out, true, nil
}

// Stop releases the source. Pulling after Stop reports exhaustion.
func (p *IteratorProxy) Stop() {
	switch s := p.inner.(type) {
	case interface{ Stop() }:
		s.Stop()
	case interface{ Close() }:
		s.Close()
	}
}

// All yields checked values until the source is exhausted or a violation occurs, then stops
// the source.
func (p *IteratorProxy) All() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		defer p.Stop()
		for {
			v, ok, err := p.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok || !yield(v, nil) {
				return
			}
		}
	}
}

func (p *IteratorProxy) Location() *Location { return p.loc }
func (p *IteratorProxy) Inner() any          { return p.raw }
func (p *IteratorProxy) String() string      { return "iterator over " + repr.Type(p.raw) }

// asPuller adapts the supported iterator sources: Puller implementations, receive channels,
// iter.Seq-shaped functions and Resumable generators.
func asPuller(v any) (Puller, bool) {
	if isNil(v) {
		return nil, false
	}
	switch s := v.(type) {
	case Puller:
		return s, true
	case Resumable:
		return &resumablePuller{g: s}, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan:
		if rv.Type().ChanDir()&reflect.RecvDir == 0 {
			return nil, false
		}
		return &chanPuller{ch: rv}, true
	case reflect.Func:
		if !isSeqFunc(rv.Type()) {
			return nil, false
		}
		next, stop := iter.Pull(seqOf(rv))
		return &seqPuller{next: next, stop: stop}, true
	}
	return nil, false
}

// isSeqFunc matches func(yield func(T) bool).
func isSeqFunc(t reflect.Type) bool {
	if t.NumIn() != 1 || t.NumOut() != 0 {
		return false
	}
	y := t.In(0)
	return y.Kind() == reflect.Func && y.NumIn() == 1 && y.NumOut() == 1 && y.Out(0).Kind() == reflect.Bool
}

func seqOf(fn reflect.Value) iter.Seq[any] {
	yt := fn.Type().In(0)
	return func(yield func(any) bool) {
		y := reflect.MakeFunc(yt, func(in []reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.ValueOf(yield(in[0].Interface()))}
		})
		fn.Call([]reflect.Value{y})
	}
}

type seqPuller struct {
	next func() (any, bool)
	stop func()
}

func (s *seqPuller) Next() (any, bool, error) {
	v, ok := s.next()
	return v, ok, nil
}

func (s *seqPuller) Stop() { s.stop() }

type chanPuller struct {
	ch reflect.Value
}

func (c *chanPuller) Next() (any, bool, error) {
	v, ok := c.ch.Recv()
	if !ok {
		return nil, false, nil
	}
	return v.Interface(), true, nil
}

type resumablePuller struct {
	g    Resumable
	done bool
}

func (r *resumablePuller) Next() (any, bool, error) {
	if r.done {
		return nil, false, nil
	}
	v, done, err := r.g.Resume(nil, nil)
	if err != nil || done {
		r.done = true
		return nil, false, err
	}
	return v, true, nil
}

func (r *resumablePuller) Stop() {
	if c, ok := r.g.(interface{ Close() }); ok {
		c.Close()
	}
}
