// Package contracts checks values against declared contracts at run time and, when a value
// does not conform, works out which party broke the contract.
//
// A contract is a Descriptor: a small immutable tree built from the constructors in this
// package (NominalOf, SequenceOf, Func, UnionOf, ...). A Registry turns a descriptor into a
// Checker once; the checker is then applied every time a value crosses the boundary it guards.
//
// # Quick Start
//
//	reg := contracts.NewRegistry()
//	ints, err := reg.Build(contracts.SequenceOf(contracts.Int), contracts.At("api.go", 12))
//	if err != nil {
//	    log.Fatal(err) // *ConfigurationError: the contract itself is wrong
//	}
//
//	xs := []int{1, 2, 3}
//	v, err := ints.CheckAndWrap(&xs, contracts.Root(contracts.At("api.go", 12), contracts.At("main.go", 40)))
//	if err != nil {
//	    log.Fatal(err) // *ValueContractError
//	}
//	seq := v.(*contracts.SequenceProxy)
//	err = seq.Append(contracts.At("main.go", 41), "4") // rejected, blames main.go:41
//
// # Wrapping
//
// Scalars, enums, tuples and compliant nominal values are returned unchanged. Functions,
// sequences, maps, generators, iterators and structurally typed objects are returned as
// proxies that keep enforcing the contract on every later call, read, write or pull.
// Operations that build a new container (Slice, Copy, Concat) return plain, unchecked values.
//
// # Blame
//
// Every violation carries frames, innermost first. Each frame renders the enclosing contract
// with a caret line under the part that failed, plus the location where that contract was
// declared and the location responsible for the value. ValueContractError.LastResponsible
// names the culprit: the caller for bad arguments, the implementation for bad results, the
// writer for bad container writes. When a violation is itself caused by a narrower contract
// declared by an implementation, the cause is attached as Previous and rendered first.
//
// # Concurrency
//
// A Registry is safe for concurrent use. Checkers are immutable. Proxies are not synchronized;
// share them across goroutines only with external synchronization.
//
// # Subpackages
//
//   - repr: deterministic value rendering used in diagnostics
//   - typeexpr: parse contract expressions such as "map[string][]int"
//   - contractdoc: load contract documents from YAML or JSON
package contracts
