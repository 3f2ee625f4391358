// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package typesys stands in for the host VM's real type system. Tier 2
// only ever needs to compare type identities, never inspect their
// contents, so a handful of interned singleton descriptors is enough to
// exercise the specializer end to end (spec.md §3: "pointers to canonical
// type descriptors supplied by the external type system; equality is
// identity").
package typesys

// Type is an opaque, canonical type descriptor. Two Types are the same
// type if and only if they are the same pointer.
type Type struct {
	name string
}

// String returns the type's name, for disassembly and test failure
// messages.
func (t *Type) String() string {
	if t == nil {
		return "unknown"
	}
	return t.name
}

// Canonical descriptors for the value kinds this spec's Emitter
// recognizes. Real hosts would intern these per-class or per-struct;
// here a fixed set is sufficient since the only opcode this spec
// specializes (BINARY_OP / add) only cares about Int.
var (
	Int    = &Type{name: "int"}
	Float  = &Type{name: "float"}
	String = &Type{name: "string"}
	Object = &Type{name: "object"}
)

// Same reports whether a and b are the same type identity. A nil Type
// means "unknown"; Same(nil, anything) is always false, matching the
// TypeContext convention that "unknown" never matches a known type.
func Same(a, b *Type) bool {
	return a != nil && b != nil && a == b
}

// ids assigns each canonical descriptor a small, stable byte so a guard
// opcode's single-byte oparg (bytecode.Word.Arg) can name "the type this
// guard checks for" without widening the instruction word. Real hosts
// would use a class pointer's low bits or a similar trick; here a fixed
// table is enough since the descriptor set is fixed.
var ids = map[*Type]uint8{
	Int:    0,
	Float:  1,
	String: 2,
	Object: 3,
}

var byID = map[uint8]*Type{
	0: Int,
	1: Float,
	2: String,
	3: Object,
}

// ID returns the small stable id a BB_GUARD_TYPE oparg encodes for t. It
// panics if t is not one of this package's canonical descriptors, since
// the Emitter only ever guards on a type it read out of a TypeContext.
func ID(t *Type) uint8 {
	id, ok := ids[t]
	if !ok {
		panic("typesys: ID of unregistered type")
	}
	return id
}

// ByID is the inverse of ID, used by the runtime guard check and by
// disassembly.
func ByID(id uint8) *Type {
	return byID[id]
}
