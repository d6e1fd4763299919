package contracts

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Checker validates values against one descriptor.
//
// CheckAndWrap returns the value to use from now on (the value itself, or a proxy that keeps
// enforcing the contract) or a *ValueContractError produced through ctx.
type Checker interface {
	CheckAndWrap(v any, ctx ExecutionContext) (any, error)
	// Describe is deterministic; diagnostics embed it verbatim.
	Describe() string
	// MayChangeIdentity reports whether CheckAndWrap may return a proxy instead of v.
	MayChangeIdentity() bool
	// BaseTypes are the signatures Union uses to keep its branches distinguishable.
	BaseTypes() []string
	// Priority orders Union branches; higher is tried first.
	Priority() int
}

// Factory turns a descriptor into a Checker. It returns (nil, nil) for descriptors it does not handle.
type Factory interface {
	Create(d Descriptor, cc *CreationContext) (Checker, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(d Descriptor, cc *CreationContext) (Checker, error)

func (f FactoryFunc) Create(d Descriptor, cc *CreationContext) (Checker, error) { return f(d, cc) }

// Registry resolves descriptors into checkers and owns the process-lifetime caches of built
// checkers and declared method contracts. Factories are fixed at construction; caches fill
// lazily and are never cleared. Per-type method tables live on the checker or method-contract
// set they were built for, so they are dropped along with it.
//
// A Registry is safe for concurrent use. Concurrent first builds of the same checker may both
// run; the first one stored wins. Method tables are built once per key.
type Registry struct {
	factories []Factory
	logger    *zap.Logger
	cfg       Config

	checkers sync.Map // checkerKey -> Checker

	methods sync.Map // reflect.Type -> *methodContracts
	tableSF singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithConfig applies cfg.
func WithConfig(cfg Config) Option {
	return func(r *Registry) { r.cfg = cfg }
}

// WithFactories installs extra factories ahead of the built-in ones.
func WithFactories(fs ...Factory) Option {
	return func(r *Registry) { r.factories = append(r.factories, fs...) }
}

// NewRegistry returns a registry with the built-in factories, most specific first.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{cfg: DefaultConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		l, err := r.cfg.Logger()
		if err != nil {
			l = zap.NewNop()
		}
		r.logger = l
	}
	r.factories = append(r.factories, builtinFactories()...)
	return r
}

// Config returns the registry settings.
func (r *Registry) Config() Config { return r.cfg }

// Logger returns the registry logger.
func (r *Registry) Logger() *zap.Logger { return r.logger }

// Build resolves d into a Checker. declared is the location of the written contract and may be nil.
func (r *Registry) Build(d Descriptor, declared *Location) (Checker, error) {
	cc := &CreationContext{
		reg:      r,
		declared: declared,
		state:    &buildState{building: map[checkerKey]Checker{}, stack: map[checkerKey]bool{}},
	}
	c, err := cc.FindChecker(d)
	if err != nil {
		r.logger.Warn("contracts: invalid contract", zap.Error(err))
		return nil, err
	}
	return c, nil
}

// MustBuild is Build for package-level contracts; it panics on ConfigurationError.
func (r *Registry) MustBuild(d Descriptor, declared *Location) Checker {
	c, err := r.Build(d, declared)
	if err != nil {
		panic(err)
	}
	return c
}

// Render renders err with the registry's snippet settings. Non-contract errors use Error().
func (r *Registry) Render(err error) string {
	if vce, ok := err.(*ValueContractError); ok {
		return vce.Render(r.cfg.SnippetLines)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func (r *Registry) find(d Descriptor, cc *CreationContext) (Checker, error) {
	if d == nil {
		return nil, cc.Errorf("missing contract descriptor")
	}
	if !reflect.TypeOf(d).Comparable() {
		return nil, cc.Errorf("contract descriptor %T is not comparable; use a pointer", d)
	}
	key := cc.cacheKey(d)
	if c, ok := cc.state.building[key]; ok {
		return c, nil
	}
	if cc.state.stack[key] {
		return nil, cc.Errorf("recursive contract %T is only supported through structural contracts", d)
	}
	if !r.cfg.DisableCache {
		if c, ok := r.checkers.Load(key); ok {
			return c.(Checker), nil
		}
	}
	c, err := r.create(d, cc, key)
	if err != nil {
		return nil, err
	}
	// Checkers that may reference a structural checker still under construction are not
	// published until the outermost one is complete.
	if r.cfg.DisableCache || len(cc.state.building) > 0 {
		return c, nil
	}
	actual, loaded := r.checkers.LoadOrStore(key, c)
	if !loaded {
		r.logger.Debug("contracts: cached checker", zap.String("contract", c.Describe()))
	}
	return actual.(Checker), nil
}

func (r *Registry) create(d Descriptor, cc *CreationContext, key checkerKey) (Checker, error) {
	cc.state.stack[key] = true
	defer delete(cc.state.stack, key)
	for _, f := range r.factories {
		c, err := f.Create(d, cc)
		if err != nil {
			return nil, err
		}
		if c != nil {
			r.logger.Debug("contracts: built checker", zap.String("contract", c.Describe()), zap.String("kind", fmt.Sprintf("%T", d)))
			return c, nil
		}
	}
	return nil, cc.Errorf("unsupported contract descriptor %T", d)
}

// CreationContext carries type-parameter bindings and the declared location while a checker
// tree is built.
type CreationContext struct {
	reg      *Registry
	declared *Location
	bindings map[string]Checker
	state    *buildState
}

type buildState struct {
	// building holds structural checkers under construction so self-references resolve to them.
	building map[checkerKey]Checker
	stack    map[checkerKey]bool
}

// Registry returns the owning registry.
func (cc *CreationContext) Registry() *Registry { return cc.reg }

// Declared returns the declared location of the contract being built.
func (cc *CreationContext) Declared() *Location { return cc.declared }

// FindChecker resolves d with the current bindings.
func (cc *CreationContext) FindChecker(d Descriptor) (Checker, error) {
	return cc.reg.find(d, cc)
}

// WithBindings returns a child context where names resolve to the given checkers.
func (cc *CreationContext) WithBindings(b map[string]Checker) *CreationContext {
	merged := make(map[string]Checker, len(cc.bindings)+len(b))
	for k, v := range cc.bindings {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	out := *cc
	out.bindings = merged
	return &out
}

// WithDeclared returns a child context with a different declared location.
func (cc *CreationContext) WithDeclared(loc *Location) *CreationContext {
	out := *cc
	out.declared = loc
	return &out
}

// Resolve returns the checker bound to a type parameter name.
func (cc *CreationContext) Resolve(name string) (Checker, bool) {
	c, ok := cc.bindings[name]
	return c, ok
}

// Errorf returns a ConfigurationError located at the declared location.
func (cc *CreationContext) Errorf(format string, args ...any) *ConfigurationError {
	return configErrorf(fmt.Sprintf(format, args...), cc.declared)
}

func (cc *CreationContext) bindingsKey() string {
	if len(cc.bindings) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cc.bindings))
	for k, v := range cc.bindings {
		parts = append(parts, k+"="+v.Describe())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// checkerKey identifies a built checker. d holds the descriptor itself, so the dynamic type
// takes part in the comparison and the descriptor stays alive while cached.
type checkerKey struct {
	d        Descriptor
	bindings string
	declared string
}

func (cc *CreationContext) cacheKey(d Descriptor) checkerKey {
	k := checkerKey{d: d, bindings: cc.bindingsKey()}
	if cc.declared != nil {
		k.declared = cc.declared.Token()
	}
	return k
}

// MethodContract is the declared contract of one method of a concrete type.
type MethodContract struct {
	Func     *Function
	Declared *Location
}

type methodContracts struct {
	checkers map[string]*functionChecker
	declared map[string]*Location
	tables   sync.Map // tableKey -> *methodTable, for interface targets
}

// DeclareMethods records the contracts a type declares on its own methods. Nominal and
// structural checks use them to re-validate calls against the narrower, concrete contract.
// t is usually a pointer or interface type, matching how values carry their methods.
func (r *Registry) DeclareMethods(t reflect.Type, methods map[string]MethodContract) error {
	if t == nil {
		return configErrorf("DeclareMethods: nil type", nil)
	}
	mc := &methodContracts{
		checkers: make(map[string]*functionChecker, len(methods)),
		declared: make(map[string]*Location, len(methods)),
	}
	for _, name := range sortedKeys(methods) {
		m := methods[name]
		if m.Func == nil {
			return configErrorf(fmt.Sprintf("method %s.%s: missing contract", t, name), m.Declared)
		}
		if t.Kind() != reflect.Interface {
			if _, ok := t.MethodByName(name); !ok {
				return configErrorf(fmt.Sprintf("type %s has no method %s", t, name), m.Declared)
			}
		}
		c, err := r.Build(m.Func, m.Declared)
		if err != nil {
			return err
		}
		fc, ok := c.(*functionChecker)
		if !ok {
			return configErrorf(fmt.Sprintf("method %s.%s: %s is not a function contract", t, name, c.Describe()), m.Declared)
		}
		mc.checkers[name] = fc
		mc.declared[name] = m.Declared
	}
	r.methods.Store(t, mc)
	r.logger.Debug("contracts: declared method contracts", zap.String("type", t.String()), zap.Int("methods", len(methods)))
	return nil
}

func (r *Registry) declaredMethods(t reflect.Type) (*methodContracts, bool) {
	v, ok := r.methods.Load(t)
	if !ok {
		return nil, false
	}
	return v.(*methodContracts), true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
