package contracts

import (
	"reflect"
	"sort"

	"github.com/openbindings/contracts-go/repr"
)

type mappingChecker struct {
	key   Checker
	value Checker
}

func createMapping(d Descriptor, cc *CreationContext) (Checker, error) {
	m, ok := d.(*Mapping)
	if !ok {
		return nil, nil
	}
	k, err := cc.FindChecker(m.Key)
	if err != nil {
		return nil, err
	}
	v, err := cc.FindChecker(m.Value)
	if err != nil {
		return nil, err
	}
	return &mappingChecker{key: k, value: v}, nil
}

func (c *mappingChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	switch m := v.(type) {
	case *MappingProxy:
		return &MappingProxy{nested: m, raw: v, key: c.key, value: c.value, ctx: ctx}, nil
	case nil:
		return nil, raise(ctx, v, c.Describe())
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.IsNil() {
		return nil, raise(ctx, v, c.Describe())
	}
	return &MappingProxy{m: rv, raw: v, key: c.key, value: c.value, ctx: ctx}, nil
}

func (c *mappingChecker) Describe() string {
	return "map[" + c.key.Describe() + "]" + c.value.Describe()
}

func (*mappingChecker) MayChangeIdentity() bool { return true }
func (*mappingChecker) BaseTypes() []string     { return []string{"mapping"} }
func (*mappingChecker) Priority() int           { return 0 }

// MappingProxy keeps a Go map under key and value contracts. The map is shared with the caller.
// Reads check what they return; writes check what they store and blame the writer.
type MappingProxy struct {
	m      reflect.Value
	nested *MappingProxy
	raw    any
	key    Checker
	value  Checker
	ctx    ExecutionContext
}

func (p *MappingProxy) layouts() (key, value func(slot) slot) {
	kd, vd := p.key.Describe(), p.value.Describe()
	return prefixLayout("map[", "]"+vd), prefixLayout("map["+kd+"]", "")
}

func (p *MappingProxy) Len() int {
	if p.nested != nil {
		return p.nested.Len()
	}
	return p.m.Len()
}

// Get returns the value stored under key.
func (p *MappingProxy) Get(key any) (any, bool, error) {
	v, ok, err := p.rawGet(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	_, vl := p.layouts()
	out, err := p.value.CheckAndWrap(v, &frameContext{upper: p.ctx, layout: vl})
	if err != nil {
		return nil, true, err
	}
	return out, true, nil
}

func (p *MappingProxy) rawGet(key any) (any, bool, error) {
	if p.nested != nil {
		return p.nested.Get(key)
	}
	kv, err := adaptTo(p.m.Type().Key(), key, nil)
	if err != nil {
		return nil, false, nil
	}
	v := p.m.MapIndex(kv)
	if !v.IsValid() {
		return nil, false, nil
	}
	return v.Interface(), true, nil
}

// Set stores value under key. site is the writer's location.
func (p *MappingProxy) Set(site *Location, key, value any) error {
	kl, vl := p.layouts()
	k, err := p.key.CheckAndWrap(key, &frameContext{upper: p.ctx, layout: kl, responsible: site, settle: settleIfKnown(site)})
	if err != nil {
		return err
	}
	v, err := p.value.CheckAndWrap(value, &frameContext{upper: p.ctx, layout: vl, responsible: site, settle: settleIfKnown(site)})
	if err != nil {
		return err
	}
	if p.nested != nil {
		return p.nested.Set(site, k, v)
	}
	kv, err := adaptTo(p.m.Type().Key(), k, site)
	if err != nil {
		return err
	}
	vv, err := adaptTo(p.m.Type().Elem(), v, site)
	if err != nil {
		return err
	}
	p.m.SetMapIndex(kv, vv)
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (p *MappingProxy) Delete(key any) {
	if p.nested != nil {
		p.nested.Delete(key)
		return
	}
	kv, err := adaptTo(p.m.Type().Key(), key, nil)
	if err != nil {
		return
	}
	p.m.SetMapIndex(kv, reflect.Value{})
}

// Keys returns the checked keys ordered by their rendering.
func (p *MappingProxy) Keys() ([]any, error) {
	raw := p.rawKeys()
	kl, _ := p.layouts()
	out := make([]any, len(raw))
	for i, k := range raw {
		ck, err := p.key.CheckAndWrap(k, &frameContext{upper: p.ctx, layout: kl})
		if err != nil {
			return nil, err
		}
		out[i] = ck
	}
	return out, nil
}

func (p *MappingProxy) rawKeys() []any {
	if p.nested != nil {
		return p.nested.rawKeys()
	}
	keys := p.m.MapKeys()
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k.Interface()
	}
	sort.SliceStable(out, func(i, j int) bool { return repr.String(out[i]) < repr.String(out[j]) })
	return out
}

// Range calls fn with every checked entry in key order until fn returns false.
func (p *MappingProxy) Range(fn func(key, value any) bool) error {
	keys, err := p.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		v, ok, err := p.Get(k)
		if err != nil {
			return err
		}
		if ok && !fn(k, v) {
			return nil
		}
	}
	return nil
}

// Copy returns a new, unchecked map of the same type.
func (p *MappingProxy) Copy() any {
	if p.nested != nil {
		return p.nested.Copy()
	}
	out := reflect.MakeMapWithSize(p.m.Type(), p.m.Len())
	iter := p.m.MapRange()
	for iter.Next() {
		out.SetMapIndex(iter.Key(), iter.Value())
	}
	return out.Interface()
}

// Equal compares entries with other, a map or *MappingProxy.
func (p *MappingProxy) Equal(other any) bool {
	if o, ok := other.(*MappingProxy); ok {
		other = o.Copy()
	}
	return reflect.DeepEqual(p.Copy(), other)
}

// Inner returns the wrapped map.
func (p *MappingProxy) Inner() any { return p.raw }

func (p *MappingProxy) String() string { return repr.String(p.Copy()) }
