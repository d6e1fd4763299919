// Package repr renders arbitrary Go values as short, deterministic, single-line text.
//
// Diagnostics embed these renderings verbatim, so output must be stable across runs:
// map entries are sorted by their rendered key, strings are Go-quoted, and recursion is
// bounded so cyclic structures terminate.
package repr

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// MaxDepth bounds nesting; deeper values render as "...".
const MaxDepth = 6

// String renders v.
func String(v any) string {
	if v == nil {
		return "nil"
	}
	var b strings.Builder
	write(&b, reflect.ValueOf(v), 0)
	return b.String()
}

// Type renders the dynamic type of v ("nil" for untyped nil).
func Type(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

var stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

func write(b *strings.Builder, v reflect.Value, depth int) {
	if !v.IsValid() {
		b.WriteString("nil")
		return
	}
	if depth > MaxDepth {
		b.WriteString("...")
		return
	}
	if isNil(v) {
		b.WriteString("nil")
		return
	}
	if v.Kind() != reflect.Interface && v.Type().Implements(stringerType) && v.CanInterface() {
		b.WriteString(v.Interface().(fmt.Stringer).String())
		return
	}

	switch v.Kind() {
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32:
		b.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 32))
	case reflect.Float64:
		b.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		b.WriteString(strconv.FormatComplex(v.Complex(), 'g', -1, 128))
	case reflect.String:
		b.WriteString(strconv.Quote(v.String()))
	case reflect.Interface:
		write(b, v.Elem(), depth)
	case reflect.Pointer:
		b.WriteString("&")
		write(b, v.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		b.WriteString("[")
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			write(b, v.Index(i), depth+1)
		}
		b.WriteString("]")
	case reflect.Map:
		writeMap(b, v, depth)
	case reflect.Struct:
		writeStruct(b, v, depth)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		b.WriteString("<")
		b.WriteString(v.Type().String())
		b.WriteString(">")
	default:
		b.WriteString(v.Type().String())
	}
}

func writeMap(b *strings.Builder, v reflect.Value, depth int) {
	type entry struct{ k, v string }
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		var kb, vb strings.Builder
		write(&kb, iter.Key(), depth+1)
		write(&vb, iter.Value(), depth+1)
		entries = append(entries, entry{k: kb.String(), v: vb.String()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].k < entries[j].k })
	b.WriteString("{")
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.k)
		b.WriteString(": ")
		b.WriteString(e.v)
	}
	b.WriteString("}")
}

func writeStruct(b *strings.Builder, v reflect.Value, depth int) {
	t := v.Type()
	b.WriteString(t.Name())
	b.WriteString("{")
	for i := 0; i < t.NumField(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Field(i).Name)
		b.WriteString(": ")
		write(b, v.Field(i), depth+1)
	}
	b.WriteString("}")
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}
