// Package contractdoc loads contracts declared in YAML or JSON documents.
//
// A document names structural types and contracts. Type expressions use the typeexpr notation;
// types declared in the document may be referenced by name from any expression in it.
//
//	version: 0.1.0
//	types:
//	  Stack:
//	    declared: stack.go:12
//	    params: [T]
//	    methods:
//	      Push: func(T)
//	      Pop: func() T
//	contracts:
//	  Port:
//	    declared: net.go:4
//	    type: int
//	    schema: {minimum: 1, maximum: 65535}
//	    hints: [a TCP port]
//
// Keys the document format does not define are preserved: "x-" keys as extensions, anything
// else as unknown fields, which strict validation rejects.
package contractdoc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is a parsed contract document.
type Document struct {
	Version   string                  `yaml:"version"`
	Types     map[string]TypeDecl     `yaml:"types,omitempty"`
	Contracts map[string]ContractDecl `yaml:"contracts,omitempty"`

	LosslessFields `yaml:"-"`
}

type documentWire struct {
	Version   string                  `yaml:"version"`
	Types     map[string]TypeDecl     `yaml:"types,omitempty"`
	Contracts map[string]ContractDecl `yaml:"contracts,omitempty"`
}

var knownDocumentSet = knownSet("version", "types", "contracts")

func (d *Document) UnmarshalYAML(n *yaml.Node) error {
	var w documentWire
	if err := n.Decode(&w); err != nil {
		return err
	}
	*d = Document{Version: w.Version, Types: w.Types, Contracts: w.Contracts}
	var err error
	d.Extensions, d.Unknown, err = splitLossless(n, knownDocumentSet)
	return err
}

func (d Document) MarshalYAML() (any, error) {
	return marshalLossless(d.LosslessFields, documentWire{Version: d.Version, Types: d.Types, Contracts: d.Contracts})
}

// TypeDecl declares a structural type by its methods.
type TypeDecl struct {
	// Declared is a unit:line token.
	Declared string            `yaml:"declared,omitempty"`
	Params   []ParamDecl       `yaml:"params,omitempty"`
	Methods  map[string]string `yaml:"methods"`

	LosslessFields `yaml:"-"`
}

type typeDeclWire struct {
	Declared string            `yaml:"declared,omitempty"`
	Params   []ParamDecl       `yaml:"params,omitempty"`
	Methods  map[string]string `yaml:"methods"`
}

var knownTypeDeclSet = knownSet("declared", "params", "methods")

func (t *TypeDecl) UnmarshalYAML(n *yaml.Node) error {
	var w typeDeclWire
	if err := n.Decode(&w); err != nil {
		return err
	}
	*t = TypeDecl{Declared: w.Declared, Params: w.Params, Methods: w.Methods}
	var err error
	t.Extensions, t.Unknown, err = splitLossless(n, knownTypeDeclSet)
	return err
}

func (t TypeDecl) MarshalYAML() (any, error) {
	return marshalLossless(t.LosslessFields, typeDeclWire{Declared: t.Declared, Params: t.Params, Methods: t.Methods})
}

// ParamDecl declares a type parameter. A bare scalar is shorthand for a parameter without
// bound or constraints.
type ParamDecl struct {
	Name        string   `yaml:"name"`
	Bound       string   `yaml:"bound,omitempty"`
	Constraints []string `yaml:"oneOf,omitempty"`
}

type paramDeclWire ParamDecl

func (p *ParamDecl) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*p = ParamDecl{Name: n.Value}
		return nil
	}
	var w paramDeclWire
	if err := n.Decode(&w); err != nil {
		return err
	}
	*p = ParamDecl(w)
	return nil
}

func (p ParamDecl) MarshalYAML() (any, error) {
	if p.Bound == "" && len(p.Constraints) == 0 {
		return p.Name, nil
	}
	return paramDeclWire(p), nil
}

// ContractDecl declares a named contract. Hints, Members and Schema, when present, turn the
// contract into a refinement of Type.
type ContractDecl struct {
	Declared string         `yaml:"declared,omitempty"`
	Type     string         `yaml:"type"`
	Hints    []string       `yaml:"hints,omitempty"`
	Members  []any          `yaml:"members,omitempty"`
	Schema   map[string]any `yaml:"schema,omitempty"`

	LosslessFields `yaml:"-"`
}

type contractDeclWire struct {
	Declared string         `yaml:"declared,omitempty"`
	Type     string         `yaml:"type"`
	Hints    []string       `yaml:"hints,omitempty"`
	Members  []any          `yaml:"members,omitempty"`
	Schema   map[string]any `yaml:"schema,omitempty"`
}

var knownContractDeclSet = knownSet("declared", "type", "hints", "members", "schema")

func (c *ContractDecl) UnmarshalYAML(n *yaml.Node) error {
	var w contractDeclWire
	if err := n.Decode(&w); err != nil {
		return err
	}
	*c = ContractDecl{Declared: w.Declared, Type: w.Type, Hints: w.Hints, Members: w.Members, Schema: w.Schema}
	var err error
	c.Extensions, c.Unknown, err = splitLossless(n, knownContractDeclSet)
	return err
}

func (c ContractDecl) MarshalYAML() (any, error) {
	return marshalLossless(c.LosslessFields, contractDeclWire{
		Declared: c.Declared,
		Type:     c.Type,
		Hints:    c.Hints,
		Members:  c.Members,
		Schema:   c.Schema,
	})
}

func (c ContractDecl) refined() bool {
	return len(c.Hints) > 0 || c.Members != nil || c.Schema != nil
}

// Parse decodes a YAML or JSON document.
func Parse(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("contractdoc: parse: %w", err)
	}
	return &d, nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contractdoc: %w", err)
	}
	return Parse(data)
}

// Marshal encodes d as YAML, preserving extensions and unknown fields.
func Marshal(d *Document) ([]byte, error) {
	return yaml.Marshal(d)
}
