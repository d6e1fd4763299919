// Package typeexpr parses contract expressions written in the notation checkers use to describe
// themselves, such as "map[string][]int" or "func(int, Optional[string]) bool".
package typeexpr

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/openbindings/contracts-go"
)

// Resolver maps a type name to its descriptor.
type Resolver interface {
	Resolve(name string) (contracts.Descriptor, bool)
}

// Scope is a Resolver backed by a map.
type Scope map[string]contracts.Descriptor

func (s Scope) Resolve(name string) (contracts.Descriptor, bool) {
	d, ok := s[name]
	return d, ok
}

// Chain resolves names with the first resolver that knows them.
func Chain(rs ...Resolver) Resolver {
	return chain(rs)
}

type chain []Resolver

func (c chain) Resolve(name string) (contracts.Descriptor, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if d, ok := r.Resolve(name); ok {
			return d, true
		}
	}
	return nil, false
}

// Builtins returns the predeclared Go types.
func Builtins() Scope {
	s := Scope{"error": contracts.Error}
	for _, v := range []any{
		int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0), complex64(0), complex128(0),
		"", false,
	} {
		t := reflect.TypeOf(v)
		s[t.String()] = &contracts.Nominal{Type: t}
	}
	s["byte"] = s["uint8"]
	s["rune"] = s["int32"]
	return s
}

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Expr   string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e == nil {
		return "typeexpr: syntax error"
	}
	return fmt.Sprintf("typeexpr: %s at offset %d in %q", e.Msg, e.Offset, e.Expr)
}

// ErrUnknownType is wrapped by errors for names no resolver knows.
var ErrUnknownType = errors.New("unknown type")

// Parse parses expr. Names other than the built-in constructors are looked up in r; a nil r
// means Builtins.
func Parse(expr string, r Resolver) (contracts.Descriptor, error) {
	if r == nil {
		r = Builtins()
	}
	p := &parser{expr: expr, r: r}
	p.s.Init(strings.NewReader(expr))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings
	p.s.Error = func(s *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = &SyntaxError{Expr: expr, Offset: s.Pos().Offset, Msg: msg}
		}
	}
	p.next()
	d := p.parseType()
	if p.err == nil && p.tok != scanner.EOF {
		p.fail("unexpected %s", p.describeTok())
	}
	if p.err != nil {
		return nil, p.err
	}
	return d, nil
}

// MustParse is Parse for expressions known to be valid; it panics on error.
func MustParse(expr string, r Resolver) contracts.Descriptor {
	d, err := Parse(expr, r)
	if err != nil {
		panic(err)
	}
	return d
}

type parser struct {
	expr string
	r    Resolver
	s    scanner.Scanner
	tok  rune
	text string
	off  int
	err  error
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
	p.off = p.s.Position.Offset
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = &SyntaxError{Expr: p.expr, Offset: p.off, Msg: fmt.Sprintf(format, args...)}
	}
}

func (p *parser) describeTok() string {
	if p.tok == scanner.EOF {
		return "end of expression"
	}
	return strconv.Quote(p.text)
}

func (p *parser) expect(tok rune) bool {
	if p.err != nil {
		return false
	}
	if p.tok != tok {
		p.fail("expected %q, found %s", string(tok), p.describeTok())
		return false
	}
	p.next()
	return true
}

func (p *parser) startsType() bool {
	switch p.tok {
	case scanner.Ident, '[', '*':
		return true
	}
	return false
}

func (p *parser) parseType() contracts.Descriptor {
	if p.err != nil {
		return nil
	}
	switch p.tok {
	case '[':
		p.next()
		p.expect(']')
		return contracts.SequenceOf(p.parseType())
	case '*':
		p.next()
		elem := p.parseType()
		n, ok := elem.(*contracts.Nominal)
		if !ok {
			p.fail("pointer to non-nominal type")
			return nil
		}
		return &contracts.Nominal{Type: reflect.PointerTo(n.Type)}
	case scanner.Ident:
	default:
		p.fail("expected type, found %s", p.describeTok())
		return nil
	}

	name := p.text
	p.next()
	switch name {
	case "any":
		return contracts.Any
	case "nil":
		return contracts.None
	case "map":
		p.expect('[')
		k := p.parseType()
		p.expect(']')
		return contracts.MapOf(k, p.parseType())
	case "func":
		return p.parseFunc()
	case "Union":
		return contracts.UnionOf(p.bracketTypes(-1)...)
	case "Optional":
		args := p.bracketTypes(1)
		if p.err != nil {
			return nil
		}
		return contracts.Optional(args[0])
	case "Iterator":
		args := p.bracketTypes(1)
		if p.err != nil {
			return nil
		}
		return contracts.IteratorOf(args[0])
	case "Generator":
		args := p.bracketTypes(3)
		if p.err != nil {
			return nil
		}
		return contracts.GeneratorOf(args[0], args[1], args[2])
	case "Tuple":
		return p.parseTuple()
	case "Enum":
		return contracts.EnumOf(p.parseLiterals()...)
	}

	for p.tok == '.' && p.err == nil {
		p.next()
		if p.tok != scanner.Ident {
			p.fail("expected name after '.', found %s", p.describeTok())
			return nil
		}
		name += "." + p.text
		p.next()
	}
	d, ok := p.r.Resolve(name)
	if !ok {
		p.fail("%v %q", ErrUnknownType, name)
		return nil
	}
	if p.tok != '[' {
		return d
	}
	s, ok := d.(*contracts.Structural)
	if !ok || len(s.TypeParams) == 0 {
		p.fail("%s is not generic", name)
		return nil
	}
	return &contracts.Instantiate{Generic: s, Args: p.bracketTypes(len(s.TypeParams))}
}

// bracketTypes parses "[t, ...]" with exactly n entries, or at least one when n < 0.
func (p *parser) bracketTypes(n int) []contracts.Descriptor {
	if !p.expect('[') {
		return nil
	}
	var out []contracts.Descriptor
	for p.err == nil {
		out = append(out, p.parseType())
		if p.tok != ',' {
			break
		}
		p.next()
	}
	p.expect(']')
	if p.err == nil && n >= 0 && len(out) != n {
		p.fail("expected %d type arguments, found %d", n, len(out))
	}
	return out
}

func (p *parser) parseFunc() contracts.Descriptor {
	if !p.expect('(') {
		return nil
	}
	var params []contracts.Descriptor
	for p.tok != ')' && p.err == nil {
		params = append(params, p.parseType())
		if p.tok != ',' {
			break
		}
		p.next()
	}
	p.expect(')')
	var ret contracts.Descriptor
	if p.startsType() {
		ret = p.parseType()
	}
	return contracts.Func(ret, params...)
}

func (p *parser) parseTuple() contracts.Descriptor {
	if !p.expect('[') {
		return nil
	}
	var elems []contracts.Descriptor
	for p.err == nil {
		if p.tok == '.' {
			for i := 0; i < 3; i++ {
				p.expect('.')
			}
			p.expect(']')
			if len(elems) != 1 {
				p.fail("variadic tuple takes exactly one element type")
				return nil
			}
			return &contracts.VariadicTuple{Elem: elems[0]}
		}
		elems = append(elems, p.parseType())
		if p.tok != ',' {
			break
		}
		p.next()
	}
	p.expect(']')
	return contracts.TupleOf(elems...)
}

func (p *parser) parseLiterals() []any {
	if !p.expect('[') {
		return nil
	}
	var out []any
	for p.err == nil {
		out = append(out, p.parseLiteral())
		if p.tok != ',' {
			break
		}
		p.next()
	}
	p.expect(']')
	return out
}

func (p *parser) parseLiteral() any {
	neg := false
	if p.tok == '-' {
		neg = true
		p.next()
	}
	text := p.text
	if neg {
		text = "-" + text
	}
	switch p.tok {
	case scanner.Int:
		p.next()
		n, err := strconv.Atoi(text)
		if err != nil {
			p.fail("invalid integer %s", text)
		}
		return n
	case scanner.Float:
		p.next()
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.fail("invalid number %s", text)
		}
		return f
	case scanner.String:
		p.next()
		s, err := strconv.Unquote(text)
		if err != nil {
			p.fail("invalid string %s", text)
		}
		return s
	case scanner.Ident:
		if !neg {
			p.next()
			switch text {
			case "true":
				return true
			case "false":
				return false
			case "nil":
				return nil
			}
		}
	}
	p.fail("expected literal, found %q", text)
	return nil
}
