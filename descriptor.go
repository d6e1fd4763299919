package contracts

import (
	"reflect"
)

// Descriptor is the closed set of contract shapes. Descriptors are built once, shared and never
// mutated; their pointer identity keys the checker cache.
type Descriptor interface {
	descriptor()
}

// AnyType accepts every value.
type AnyType struct{}

// NoneType accepts only nil.
type NoneType struct{}

// Enum accepts members of a literal set, compared by deep equality.
type Enum struct {
	Values []any
}

// Nominal accepts values whose dynamic type is Type or assignable to it.
type Nominal struct {
	Type reflect.Type
	// Name overrides Type.String() in diagnostics.
	Name string
}

// Union accepts a value matching any branch. Branches must be distinguishable.
type Union struct {
	Branches []Descriptor
}

// Nullable accepts nil or a value matching Inner.
type Nullable struct {
	Inner Descriptor
}

// Tuple is a fixed-arity positional tuple ([]any or any slice/array).
type Tuple struct {
	Elems []Descriptor
}

// VariadicTuple is a tuple of any arity whose elements share one contract.
type VariadicTuple struct {
	Elem Descriptor
}

// Sequence is a mutable ordered container kept under live enforcement.
type Sequence struct {
	Elem Descriptor
}

// Mapping is a Go map kept under live enforcement.
type Mapping struct {
	Key   Descriptor
	Value Descriptor
}

// Function is a callable contract. A nil Return means the callable returns nothing.
type Function struct {
	Params []Descriptor
	Return Descriptor
}

// Generator is a bidirectional generator: produced values, values sent in, and the completion value.
type Generator struct {
	Yield  Descriptor
	Send   Descriptor
	Return Descriptor
}

// Iterator is a pull-only source of values.
type Iterator struct {
	Elem Descriptor
}

// Structural is a contract defined by required methods rather than nominal identity.
// TypeParams lists the parameters the method contracts may refer to; use Instantiate to bind them.
type Structural struct {
	Name       string
	TypeParams []*TypeParam
	Methods    map[string]*Function
}

// Instantiate binds Args to Generic's type parameters, in order.
type Instantiate struct {
	Generic *Structural
	Args    []Descriptor
}

// Refinement narrows Base with predicates and informational hints.
type Refinement struct {
	Base       Descriptor
	Predicates []Predicate
	Hints      []string
}

// TypeParam is a type parameter. Unbound parameters accept anything.
// Bound, when set, must be satisfied by the argument bound to the parameter; Constraints, when
// set, lists the only permitted arguments.
type TypeParam struct {
	Name        string
	Bound       Descriptor
	Constraints []Descriptor
}

func (*AnyType) descriptor()       {}
func (*NoneType) descriptor()      {}
func (*Enum) descriptor()          {}
func (*Nominal) descriptor()       {}
func (*Union) descriptor()         {}
func (*Nullable) descriptor()      {}
func (*Tuple) descriptor()         {}
func (*VariadicTuple) descriptor() {}
func (*Sequence) descriptor()      {}
func (*Mapping) descriptor()       {}
func (*Function) descriptor()      {}
func (*Generator) descriptor()     {}
func (*Iterator) descriptor()      {}
func (*Structural) descriptor()    {}
func (*Instantiate) descriptor()   {}
func (*Refinement) descriptor()    {}
func (*TypeParam) descriptor()     {}

// Predeclared descriptors.
var (
	Any     Descriptor = &AnyType{}
	None    Descriptor = &NoneType{}
	Int     Descriptor = NominalOf[int]()
	Int64   Descriptor = NominalOf[int64]()
	Float64 Descriptor = NominalOf[float64]()
	String  Descriptor = NominalOf[string]()
	Bool    Descriptor = NominalOf[bool]()
	Error   Descriptor = &Nominal{Type: reflect.TypeOf((*error)(nil)).Elem()}
)

// NominalOf returns a Nominal descriptor for T. Interface type arguments describe the interface.
func NominalOf[T any]() *Nominal {
	return &Nominal{Type: reflect.TypeOf((*T)(nil)).Elem()}
}

// EnumOf returns an Enum over values.
func EnumOf(values ...any) *Enum { return &Enum{Values: values} }

// UnionOf returns a Union over branches.
func UnionOf(branches ...Descriptor) *Union { return &Union{Branches: branches} }

// Optional returns a Nullable around inner.
func Optional(inner Descriptor) *Nullable { return &Nullable{Inner: inner} }

// TupleOf returns a fixed Tuple.
func TupleOf(elems ...Descriptor) *Tuple { return &Tuple{Elems: elems} }

// SequenceOf returns a Sequence.
func SequenceOf(elem Descriptor) *Sequence { return &Sequence{Elem: elem} }

// MapOf returns a Mapping.
func MapOf(key, value Descriptor) *Mapping { return &Mapping{Key: key, Value: value} }

// Func returns a Function; ret may be nil for no result.
func Func(ret Descriptor, params ...Descriptor) *Function {
	return &Function{Params: params, Return: ret}
}

// IteratorOf returns an Iterator.
func IteratorOf(elem Descriptor) *Iterator { return &Iterator{Elem: elem} }

// GeneratorOf returns a Generator.
func GeneratorOf(yield, send, ret Descriptor) *Generator {
	return &Generator{Yield: yield, Send: send, Return: ret}
}

// Param returns an unconstrained type parameter.
func Param(name string) *TypeParam { return &TypeParam{Name: name} }

// Refine returns a Refinement.
func Refine(base Descriptor, hints []string, preds ...Predicate) *Refinement {
	return &Refinement{Base: base, Predicates: preds, Hints: hints}
}
