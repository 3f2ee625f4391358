// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bytecode defines the instruction set shared by Tier 1 (the
// host interpreter's original, generic bytecode) and Tier 2 (the
// specializer's emitted, type-stamped bytecode). Both tiers use the same
// fixed-width word layout, so a Tier-2 stream can be executed by the same
// dispatch loop as Tier 1.
package bytecode

// Op is a single opcode byte.
type Op uint8

// Word is one instruction: an opcode plus its single-byte immediate
// operand. Multi-byte operands are expressed with a preceding
// EXTENDED_ARG word whose Arg supplies the high byte.
type Word struct {
	Op  Op
	Arg uint8
}

// Tier-1 opcodes. Values are arbitrary but stable within this module;
// they do not need to match any real host VM's numbering.
const (
	NOP Op = iota

	// Locals and constants.
	LOAD_FAST
	STORE_FAST
	DELETE_FAST
	LOAD_CONST

	// Generic, polymorphic arithmetic. BINARY_OP takes an oparg selecting
	// the operator kind; this spec only specializes the add-kind operand.
	BINARY_OP
	BINARY_OP_ADD_INT_REST // already-specialized-in-Tier-1 add form

	COMPARE_OP
	COMPARE_AND_BRANCH // fused compare+branch, as in the original source

	// Control flow.
	JUMP_FORWARD
	JUMP_BACKWARD
	JUMP_BACKWARD_QUICK
	POP_JUMP_IF_FALSE
	POP_JUMP_IF_TRUE
	FOR_ITER
	END_FOR
	RESUME
	RESUME_QUICK

	// Scope exit.
	RETURN_VALUE
	RETURN_CONST
	RAISE_VARARGS
	RERAISE
	INTERPRETER_EXIT

	// Forbidden: suspend the specializer if present anywhere.
	YIELD_VALUE
	SEND
	PUSH_EXC_INFO
	POP_EXCEPT
	MAKE_CELL
	MATCH_CLASS
	EXTENDED_ARG

	tier1End
)

// Tier-2-only opcodes: stubs and specialized variants that only ever
// appear in an emitted Tier-2 stream, never in the Tier-1 source.
const (
	BB_BRANCH Op = iota + 128
	BB_TEST_ITER
	BB_JUMP_BACKWARD_LAZY
	BB_JUMP_IF_FLAG_SET
	BB_JUMP_IF_FLAG_UNSET
	BB_GUARD_TYPE
)

var names = map[Op]string{
	NOP:                   "NOP",
	LOAD_FAST:             "LOAD_FAST",
	STORE_FAST:            "STORE_FAST",
	DELETE_FAST:           "DELETE_FAST",
	LOAD_CONST:            "LOAD_CONST",
	BINARY_OP:             "BINARY_OP",
	BINARY_OP_ADD_INT_REST: "BINARY_OP_ADD_INT_REST",
	COMPARE_OP:            "COMPARE_OP",
	COMPARE_AND_BRANCH:    "COMPARE_AND_BRANCH",
	JUMP_FORWARD:          "JUMP_FORWARD",
	JUMP_BACKWARD:         "JUMP_BACKWARD",
	JUMP_BACKWARD_QUICK:   "JUMP_BACKWARD_QUICK",
	POP_JUMP_IF_FALSE:     "POP_JUMP_IF_FALSE",
	POP_JUMP_IF_TRUE:      "POP_JUMP_IF_TRUE",
	FOR_ITER:              "FOR_ITER",
	END_FOR:               "END_FOR",
	RESUME:                "RESUME",
	RESUME_QUICK:          "RESUME_QUICK",
	RETURN_VALUE:          "RETURN_VALUE",
	RETURN_CONST:          "RETURN_CONST",
	RAISE_VARARGS:         "RAISE_VARARGS",
	RERAISE:               "RERAISE",
	INTERPRETER_EXIT:      "INTERPRETER_EXIT",
	YIELD_VALUE:           "YIELD_VALUE",
	SEND:                  "SEND",
	PUSH_EXC_INFO:         "PUSH_EXC_INFO",
	POP_EXCEPT:            "POP_EXCEPT",
	MAKE_CELL:             "MAKE_CELL",
	MATCH_CLASS:           "MATCH_CLASS",
	EXTENDED_ARG:          "EXTENDED_ARG",
	BB_BRANCH:             "BB_BRANCH",
	BB_TEST_ITER:          "BB_TEST_ITER",
	BB_JUMP_BACKWARD_LAZY: "BB_JUMP_BACKWARD_LAZY",
	BB_JUMP_IF_FLAG_SET:   "BB_JUMP_IF_FLAG_SET",
	BB_JUMP_IF_FLAG_UNSET: "BB_JUMP_IF_FLAG_UNSET",
	BB_GUARD_TYPE:         "BB_GUARD_TYPE",
}

// String returns the opcode's mnemonic, or "UNKNOWN" for an
// unrecognized value.
func (o Op) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return "UNKNOWN"
}

var byName = func() map[string]Op {
	m := make(map[string]Op, len(names))
	for op, n := range names {
		m[n] = op
	}
	return m
}()

// Lookup is String's inverse, for a text assembler reading mnemonics
// back into Op values (cmd/tier2ctl's program loader).
func Lookup(name string) (Op, bool) {
	op, ok := byName[name]
	return op, ok
}

// WordSize is the fixed width, in bytes, of one instruction word.
const WordSize = 2
