package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/openbindings/contracts-go/repr"
)

// Predicate narrows a refinement. Exactly one of Fn and Members must be set: Fn is a pure test
// over the base-checked value, Members a set the value must belong to (deep equality).
type Predicate struct {
	Fn      func(v any) bool
	Members []any
	// Source is the human-readable form shown when the predicate fails.
	Source   string
	Declared *Location
}

// Check returns a predicate from a test function.
func Check(source string, fn func(v any) bool) Predicate {
	return Predicate{Fn: fn, Source: source}
}

// MemberOf returns a membership predicate.
func MemberOf(members ...any) Predicate {
	return Predicate{Members: members}
}

// SchemaPredicate compiles a JSON Schema into a predicate. Values are tested in their JSON
// form, so structs are subject to their json tags.
func SchemaPredicate(schema string) (Predicate, error) {
	compiled, err := jsonschema.CompileString("refinement.schema.json", schema)
	if err != nil {
		return Predicate{}, fmt.Errorf("contracts: compile schema: %w", err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(schema)); err != nil {
		return Predicate{}, fmt.Errorf("contracts: compact schema: %w", err)
	}
	return Predicate{
		Source: "matches schema " + compact.String(),
		Fn: func(v any) bool {
			doc, err := jsonValue(v)
			if err != nil {
				return false
			}
			return compiled.Validate(doc) == nil
		},
	}, nil
}

func jsonValue(v any) (any, error) {
	if p, ok := v.(interface{ Inner() any }); ok {
		v = p.Inner()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

type refinementChecker struct {
	base  Checker
	preds []Predicate
	hints []string
}

func createRefinement(d Descriptor, cc *CreationContext) (Checker, error) {
	r, ok := d.(*Refinement)
	if !ok {
		return nil, nil
	}
	base, err := cc.FindChecker(r.Base)
	if err != nil {
		return nil, err
	}
	for i, p := range r.Predicates {
		if (p.Fn == nil) == (p.Members == nil) {
			return nil, cc.Errorf("refinement of %s: predicate %d must have either a test function or a member set", base.Describe(), i)
		}
	}
	return &refinementChecker{base: base, preds: r.Predicates, hints: r.Hints}, nil
}

func (c *refinementChecker) CheckAndWrap(v any, ctx ExecutionContext) (any, error) {
	desc := c.Describe()
	out, err := c.base.CheckAndWrap(v, &frameContext{upper: ctx, layout: prefixLayout("Refined[", strings.TrimPrefix(desc, "Refined["+c.base.Describe()))})
	if err != nil {
		return nil, err
	}
	for _, p := range c.preds {
		if p.Members != nil {
			if !containsDeep(p.Members, out) {
				err := NewValueContractError(v, desc).
					WithNote(notef("%s is not in %s", repr.String(v), repr.String(p.Members)))
				return nil, wrapWith(ctx, c.withHints(err))
			}
			continue
		}
		if !p.Fn(out) {
			note := "failed predicate"
			if p.Source != "" {
				note = "failed predicate: " + p.Source
			}
			err := NewValueContractError(v, desc).WithNote(note)
			ty, ind := err.NextTypeAndIndicator()
			err = err.WithFrame(NewFrame(ty, ind, p.Declared, nil))
			return nil, wrapWith(ctx, c.withHints(err))
		}
	}
	return out, nil
}

func (c *refinementChecker) withHints(err *ValueContractError) *ValueContractError {
	for _, h := range c.hints {
		err = err.WithNote("    - " + h)
	}
	return err
}

func (c *refinementChecker) Describe() string {
	var b strings.Builder
	b.WriteString("Refined[")
	b.WriteString(c.base.Describe())
	for _, h := range c.hints {
		b.WriteString(", ")
		b.WriteString(strconv.Quote(h))
	}
	b.WriteString("]")
	return b.String()
}

func (c *refinementChecker) MayChangeIdentity() bool { return c.base.MayChangeIdentity() }
func (c *refinementChecker) BaseTypes() []string     { return c.base.BaseTypes() }
func (c *refinementChecker) Priority() int           { return c.base.Priority() }

func containsDeep(set []any, v any) bool {
	for _, m := range set {
		if reflect.DeepEqual(m, v) {
			return true
		}
	}
	return false
}
