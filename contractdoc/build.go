package contractdoc

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/openbindings/contracts-go"
	"github.com/openbindings/contracts-go/typeexpr"
)

// ErrUnknownContract is returned by Set lookups for names the document does not declare.
var ErrUnknownContract = errors.New("contractdoc: unknown contract")

// Set holds the checkers built from one document, keyed by declared name.
type Set struct {
	checkers    map[string]contracts.Checker
	descriptors map[string]contracts.Descriptor
	declared    map[string]*contracts.Location
}

// Names returns the declared names in sorted order.
func (s *Set) Names() []string { return sortedKeys(s.checkers) }

// Checker returns the checker for name.
func (s *Set) Checker(name string) (contracts.Checker, bool) {
	c, ok := s.checkers[name]
	return c, ok
}

// Descriptor returns the descriptor built for name.
func (s *Set) Descriptor(name string) (contracts.Descriptor, bool) {
	d, ok := s.descriptors[name]
	return d, ok
}

// Check checks v against the contract called name. site is where v was supplied.
func (s *Set) Check(name string, v any, site *contracts.Location) (any, error) {
	c, ok := s.checkers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownContract, name)
	}
	return c.CheckAndWrap(v, contracts.Root(s.declared[name], site))
}

// Resolver exposes the built names to typeexpr, so callers can write expressions over them.
func (s *Set) Resolver() typeexpr.Resolver {
	return typeexpr.Scope(s.descriptors)
}

type builder struct {
	doc       *Document
	types     typeexpr.Scope
	contracts map[string]contracts.Descriptor
	visiting  map[string]bool
	err       error
}

// Resolve looks up types first, then contracts, building contracts as they are referenced.
func (b *builder) Resolve(name string) (contracts.Descriptor, bool) {
	if d, ok := b.types[name]; ok {
		return d, true
	}
	if _, ok := b.doc.Contracts[name]; !ok {
		return nil, false
	}
	d, err := b.contract(name)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return nil, false
	}
	return d, true
}

func (b *builder) contract(name string) (contracts.Descriptor, error) {
	if d, ok := b.contracts[name]; ok {
		return d, nil
	}
	if b.visiting[name] {
		return nil, fmt.Errorf("contracts[%q]: refers to itself", name)
	}
	b.visiting[name] = true
	defer delete(b.visiting, name)

	c := b.doc.Contracts[name]
	d, err := typeexpr.Parse(c.Type, typeexpr.Chain(b, typeexpr.Builtins()))
	if b.err != nil {
		return nil, b.err
	}
	if err != nil {
		return nil, fmt.Errorf("contracts[%q].type: %w", name, err)
	}
	if c.refined() {
		var preds []contracts.Predicate
		declared, _ := parseDeclared(c.Declared)
		if c.Members != nil {
			p := contracts.MemberOf(c.Members...)
			p.Declared = declared
			preds = append(preds, p)
		}
		if c.Schema != nil {
			raw, err := json.Marshal(c.Schema)
			if err != nil {
				return nil, fmt.Errorf("contracts[%q].schema: %w", name, err)
			}
			p, err := contracts.SchemaPredicate(string(raw))
			if err != nil {
				return nil, fmt.Errorf("contracts[%q].schema: %w", name, err)
			}
			p.Declared = declared
			preds = append(preds, p)
		}
		d = contracts.Refine(d, c.Hints, preds...)
	}
	b.contracts[name] = d
	return d, nil
}

func (b *builder) typeDecl(name string, s *contracts.Structural) error {
	t := b.doc.Types[name]
	params := typeexpr.Scope{}
	for i, p := range t.Params {
		tp := &contracts.TypeParam{Name: p.Name}
		if p.Bound != "" {
			d, err := typeexpr.Parse(p.Bound, typeexpr.Chain(b, typeexpr.Builtins()))
			if b.err != nil {
				return b.err
			}
			if err != nil {
				return fmt.Errorf("types[%q].params[%d].bound: %w", name, i, err)
			}
			tp.Bound = d
		}
		for j, c := range p.Constraints {
			d, err := typeexpr.Parse(c, typeexpr.Chain(b, typeexpr.Builtins()))
			if err != nil {
				return fmt.Errorf("types[%q].params[%d].oneOf[%d]: %w", name, i, j, err)
			}
			tp.Constraints = append(tp.Constraints, d)
		}
		params[p.Name] = tp
		s.TypeParams = append(s.TypeParams, tp)
	}
	r := typeexpr.Chain(params, b, typeexpr.Builtins())
	for _, m := range sortedKeys(t.Methods) {
		d, err := typeexpr.Parse(t.Methods[m], r)
		if b.err != nil {
			return b.err
		}
		if err != nil {
			return fmt.Errorf("types[%q].methods[%q]: %w", name, m, err)
		}
		fn, ok := d.(*contracts.Function)
		if !ok {
			return fmt.Errorf("types[%q].methods[%q]: %q is not a function type", name, m, t.Methods[m])
		}
		s.Methods[m] = fn
	}
	return nil
}

// Build validates d and builds a checker for every declared type and contract. Types may
// refer to each other and to themselves; contracts may refer to types and to other contracts.
func (d *Document) Build(reg *contracts.Registry, opts ...ValidateOption) (*Set, error) {
	if err := d.Validate(opts...); err != nil {
		return nil, err
	}
	b := &builder{
		doc:       d,
		types:     typeexpr.Scope{},
		contracts: map[string]contracts.Descriptor{},
		visiting:  map[string]bool{},
	}
	structurals := make(map[string]*contracts.Structural, len(d.Types))
	for _, name := range sortedKeys(d.Types) {
		s := &contracts.Structural{Name: name, Methods: map[string]*contracts.Function{}}
		structurals[name] = s
		b.types[name] = s
	}
	for _, name := range sortedKeys(d.Types) {
		if err := b.typeDecl(name, structurals[name]); err != nil {
			return nil, fmt.Errorf("contractdoc: %w", err)
		}
	}
	for _, name := range sortedKeys(d.Contracts) {
		if _, err := b.contract(name); err != nil {
			return nil, fmt.Errorf("contractdoc: %w", err)
		}
	}

	set := &Set{
		checkers:    map[string]contracts.Checker{},
		descriptors: map[string]contracts.Descriptor{},
		declared:    map[string]*contracts.Location{},
	}
	add := func(name, declared string, desc contracts.Descriptor) error {
		loc, _ := parseDeclared(declared)
		c, err := reg.Build(desc, loc)
		if err != nil {
			return fmt.Errorf("contractdoc: %s: %w", name, err)
		}
		set.checkers[name] = c
		set.descriptors[name] = desc
		set.declared[name] = loc
		return nil
	}
	for _, name := range sortedKeys(d.Types) {
		if err := add(name, d.Types[name].Declared, structurals[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(d.Contracts) {
		if err := add(name, d.Contracts[name].Declared, b.contracts[name]); err != nil {
			return nil, err
		}
	}
	reg.Logger().Debug("contractdoc: built document",
		zap.String("version", d.Version), zap.Int("types", len(d.Types)), zap.Int("contracts", len(d.Contracts)))
	return set, nil
}

func parseDeclared(s string) (*contracts.Location, error) {
	if s == "" {
		return nil, nil
	}
	loc, err := contracts.ParseLocation(s)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
