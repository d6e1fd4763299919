package contracts

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MethodSet is implemented by values that expose methods dynamically. Values without it are
// inspected with reflection.
type MethodSet interface {
	LookupMethod(name string) (Invocable, bool)
}

type structuralChecker struct {
	name     string
	names    []string // sorted
	methods  map[string]*functionChecker
	declared *Location
	reg      *Registry
	tables   sync.Map // tableKey -> *methodTable
}

func createStructural(d Descriptor, cc *CreationContext) (Checker, error) {
	s, ok := d.(*Structural)
	if !ok {
		return nil, nil
	}
	c := &structuralChecker{
		name:     structuralName(s, cc),
		methods:  make(map[string]*functionChecker, len(s.Methods)),
		declared: cc.declared,
		reg:      cc.reg,
	}
	key := cc.cacheKey(d)
	cc.state.building[key] = c
	defer delete(cc.state.building, key)

	for _, name := range sortedKeys(s.Methods) {
		fd := s.Methods[name]
		if fd == nil {
			return nil, cc.Errorf("%s.%s: missing method contract", c.name, name)
		}
		mc, err := cc.FindChecker(fd)
		if err != nil {
			return nil, err
		}
		fc, ok := mc.(*functionChecker)
		if !ok {
			return nil, cc.Errorf("%s.%s: %s is not a function contract", c.name, name, mc.Describe())
		}
		c.methods[name] = fc
		c.names = append(c.names, name)
	}
	return c, nil
}

// structuralName renders Name, or Name[args] when every type parameter is bound.
func structuralName(s *Structural, cc *CreationContext) string {
	name := s.Name
	if name == "" {
		name = "interface{" + strings.Join(sortedKeys(s.Methods), "; ") + "}"
	}
	if len(s.TypeParams) == 0 {
		return name
	}
	args := make([]string, len(s.TypeParams))
	for i, tp := range s.TypeParams {
		b, ok := cc.Resolve(tp.Name)
		if !ok {
			return name
		}
		args[i] = b.Describe()
	}
	return name + "[" + strings.Join(args, ", ") + "]"
}

func (c *structuralChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	if isNil(v) {
		return nil, raise(ctx, v, c.name)
	}
	for _, name := range c.names {
		if !hasMethod(v, name) {
			return nil, raise(ctx, v, c.name, "missing method "+name)
		}
	}
	table, err := c.reg.structuralTable(c, reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	return newObjectProxy(v, table, ctx), nil
}

func (c *structuralChecker) Describe() string      { return c.name }
func (*structuralChecker) MayChangeIdentity() bool { return true }
func (c *structuralChecker) Priority() int         { return len(c.names) }

func (c *structuralChecker) BaseTypes() []string {
	return []string{"iface{" + strings.Join(c.names, ",") + "}"}
}

func hasMethod(v any, name string) bool {
	_, ok := lookupMethod(v, name)
	return ok
}

func lookupMethod(v any, name string) (Invocable, bool) {
	if ms, ok := v.(MethodSet); ok {
		return ms.LookupMethod(name)
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, false
	}
	m := rv.MethodByName(name)
	if !m.IsValid() {
		return nil, false
	}
	var loc *Location
	if sm, ok := rv.Type().MethodByName(name); ok && sm.Func.IsValid() {
		loc = funcLocation(sm.Func)
	}
	return &reflectFunc{fn: m, loc: loc}, true
}

func createInstantiate(d Descriptor, cc *CreationContext) (Checker, error) {
	in, ok := d.(*Instantiate)
	if !ok {
		return nil, nil
	}
	g := in.Generic
	if g == nil {
		return nil, cc.Errorf("instantiation without a generic contract")
	}
	if len(g.TypeParams) != len(in.Args) {
		return nil, cc.Errorf("%s expects %d type arguments, got %d", g.Name, len(g.TypeParams), len(in.Args))
	}
	bindings := make(map[string]Checker, len(g.TypeParams))
	for i, tp := range g.TypeParams {
		arg, err := cc.FindChecker(in.Args[i])
		if err != nil {
			return nil, err
		}
		if tpc, ok := arg.(*typeParamChecker); ok && tpc.inner != nil {
			arg = tpc.inner
		}
		if err := checkBound(cc, tp, arg); err != nil {
			return nil, err
		}
		bindings[tp.Name] = arg
	}
	return cc.WithBindings(bindings).FindChecker(g)
}

func checkBound(cc *CreationContext, tp *TypeParam, arg Checker) error {
	if tp.Bound != nil {
		bound, err := cc.FindChecker(tp.Bound)
		if err != nil {
			return err
		}
		if !satisfies(arg, bound) {
			return cc.Errorf("bound violated: %s=%s does not satisfy %s", tp.Name, arg.Describe(), bound.Describe())
		}
	}
	if len(tp.Constraints) > 0 {
		allowed := make([]string, 0, len(tp.Constraints))
		for _, cd := range tp.Constraints {
			c, err := cc.FindChecker(cd)
			if err != nil {
				return err
			}
			if c.Describe() == arg.Describe() {
				return nil
			}
			allowed = append(allowed, c.Describe())
		}
		return cc.Errorf("bound violated: %s=%s is not one of %s", tp.Name, arg.Describe(), strings.Join(allowed, ", "))
	}
	return nil
}

func satisfies(arg, bound Checker) bool {
	if _, ok := bound.(anyChecker); ok {
		return true
	}
	if arg.Describe() == bound.Describe() {
		return true
	}
	a, ok1 := arg.(*nominalChecker)
	b, ok2 := bound.(*nominalChecker)
	return ok1 && ok2 && a.target.AssignableTo(b.target)
}

type typeParamChecker struct {
	name  string
	inner Checker // nil when unbound
}

func createTypeParam(d Descriptor, cc *CreationContext) (Checker, error) {
	tp, ok := d.(*TypeParam)
	if !ok {
		return nil, nil
	}
	if tp.Name == "" {
		return nil, cc.Errorf("type parameter without a name")
	}
	if b, ok := cc.Resolve(tp.Name); ok {
		return &typeParamChecker{name: tp.Name, inner: b}, nil
	}
	return &typeParamChecker{name: tp.Name}, nil
}

func (c *typeParamChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	if c.inner == nil {
		return v, nil
	}
	return c.inner.CheckAndWrap(v, &frameContext{upper: ctx, layout: prefixLayout(c.name+"=", "")})
}

func (c *typeParamChecker) Describe() string {
	if c.inner == nil {
		return c.name
	}
	return c.name + "=" + c.inner.Describe()
}

func (c *typeParamChecker) MayChangeIdentity() bool {
	return c.inner != nil && c.inner.MayChangeIdentity()
}

func (c *typeParamChecker) BaseTypes() []string {
	if c.inner == nil {
		return []string{"typeparam"}
	}
	return c.inner.BaseTypes()
}

func (c *typeParamChecker) Priority() int {
	if c.inner == nil {
		return 0
	}
	return c.inner.Priority()
}

// methodTable is the per (contract, concrete type) dispatch data of an ObjectProxy.
type methodTable struct {
	owner    string
	concrete string
	methods  map[string]*methodEntry
	// identical is set when the concrete type declares the same contracts for every method.
	identical bool
}

type methodEntry struct {
	name     string
	contract *functionChecker
	declared *Location
	// concrete is the narrower contract the implementation declares itself; nil when it
	// declares none or declares exactly the same one.
	concrete         *functionChecker
	concreteDeclared *Location
}

// tableKey selects a method table within its owner. own is the concrete type's declared
// method set at build time, so redeclaring it yields a fresh table.
type tableKey struct {
	rt  reflect.Type
	own *methodContracts
}

func (r *Registry) structuralTable(c *structuralChecker, rt reflect.Type) (*methodTable, error) {
	return r.methodTable(&c.tables, c, rt, func(own *methodContracts) *methodTable {
		declared := make(map[string]*Location, len(c.names))
		for _, n := range c.names {
			declared[n] = c.declared
		}
		return r.buildTable(c.name, c.methods, declared, rt, own)
	})
}

func (r *Registry) conformanceTable(owner string, parent *methodContracts, rt reflect.Type) (*methodTable, error) {
	return r.methodTable(&parent.tables, parent, rt, func(own *methodContracts) *methodTable {
		return r.buildTable(owner, parent.checkers, parent.declared, rt, own)
	})
}

// methodTable returns the table cached in tables for rt, building it once. owner is only used
// to name the in-flight build; it is kept alive by the caller, so its address is unique.
func (r *Registry) methodTable(tables *sync.Map, owner any, rt reflect.Type, build func(own *methodContracts) *methodTable) (*methodTable, error) {
	own, _ := r.declaredMethods(rt)
	key := tableKey{rt: rt, own: own}
	if t, ok := tables.Load(key); ok {
		return t.(*methodTable), nil
	}
	v, err, _ := r.tableSF.Do(fmt.Sprintf("%p|%p|%p", owner, rt, own), func() (any, error) {
		if t, ok := tables.Load(key); ok {
			return t, nil
		}
		t := build(own)
		tables.Store(key, t)
		r.logger.Debug("contracts: built method table",
			zap.String("contract", t.owner), zap.String("type", t.concrete), zap.Bool("identical", t.identical))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*methodTable), nil
}

func (r *Registry) buildTable(owner string, contracts map[string]*functionChecker, declared map[string]*Location, rt reflect.Type, own *methodContracts) *methodTable {
	t := &methodTable{owner: owner, concrete: rt.String(), methods: make(map[string]*methodEntry, len(contracts))}
	hasOwn := own != nil
	t.identical = hasOwn
	names := make([]string, 0, len(contracts))
	for n := range contracts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		e := &methodEntry{name: n, contract: contracts[n], declared: declared[n]}
		if hasOwn {
			if oc, ok := own.checkers[n]; ok {
				e.concreteDeclared = own.declared[n]
				if !oc.equalSignature(e.contract) {
					e.concrete = oc
					t.identical = false
				}
			} else {
				t.identical = false
			}
		}
		t.methods[n] = e
	}
	return t
}
