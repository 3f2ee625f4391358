// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

// quickForms maps an opcode to its semantically-identical "quick" form,
// used by Bootstrap's in-place substitution (spec.md §4.8). Opcodes not
// present here have no quick form.
var quickForms = map[Op]Op{
	RESUME:        RESUME_QUICK,
	JUMP_BACKWARD: JUMP_BACKWARD_QUICK,
}

// QuickForm reports the quick form of op, if any.
func QuickForm(op Op) (Op, bool) {
	q, ok := quickForms[op]
	return q, ok
}

// cacheEntries gives the number of cache-tail words that trail each
// cache-bearing opcode in the Tier-1 stream. These bytes must be copied
// verbatim by the Emitter whenever the opcode passes through unspecialized
// (spec.md §4.4, Testable Property 7).
var cacheEntries = map[Op]int{
	BINARY_OP:           1,
	COMPARE_OP:          1,
	COMPARE_AND_BRANCH:  1,
	POP_JUMP_IF_FALSE:   1,
	POP_JUMP_IF_TRUE:    1,
	FOR_ITER:            1,
	JUMP_BACKWARD:       1,
	JUMP_BACKWARD_QUICK: 1,
	RESUME:              1,
	RESUME_QUICK:        1,
}

// CacheEntries returns how many cache-tail words follow op in the Tier-1
// stream.
func CacheEntries(op Op) int {
	return cacheEntries[op]
}

// NeedsExtendedArg reports whether the unsigned value requires the high
// byte carried by an EXTENDED_ARG prefix word to be representable.
func NeedsExtendedArg(v uint32) bool {
	return v > 0xff
}
