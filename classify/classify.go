// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package classify implements the Opcode Classifier of spec.md §4.1: pure,
// constant-time predicates partitioning the instruction set into
// Forbidden, Scope-exit, Forward-jump, Backward-jump, Branch, and
// Optimizable categories. Every query is table-driven, per spec.md's
// requirement that the classifier never special-case an individual
// opcode in control flow.
package classify

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/go-interpreter/wagon-tier2/bytecode"
)

// Forbidden opcodes suspend the specializer outright if present anywhere
// in a code object (spec.md §4.1).
var Forbidden = mapset.NewSet(
	bytecode.YIELD_VALUE,
	bytecode.SEND,
	bytecode.RAISE_VARARGS,
	bytecode.RERAISE,
	bytecode.PUSH_EXC_INFO,
	bytecode.POP_EXCEPT,
	bytecode.MAKE_CELL,
	bytecode.DELETE_FAST,
	bytecode.MATCH_CLASS,
	bytecode.EXTENDED_ARG,
)

// ScopeExit opcodes always terminate a BB.
var ScopeExit = mapset.NewSet(
	bytecode.RETURN_VALUE,
	bytecode.RETURN_CONST,
	bytecode.RAISE_VARARGS,
	bytecode.RERAISE,
	bytecode.INTERPRETER_EXIT,
)

// ForwardJump opcodes are erased and fused into the current BB rather
// than terminating it (spec.md §4.6); this set holds only the
// unconditional form, since conditional forward branches are members of
// Branch instead.
var ForwardJump = mapset.NewSet(
	bytecode.JUMP_FORWARD,
)

// BackwardJump opcodes are exactly the loop-edge opcodes, unconditional
// and quick forms alike.
var BackwardJump = mapset.NewSet(
	bytecode.JUMP_BACKWARD,
	bytecode.JUMP_BACKWARD_QUICK,
)

// Branch opcodes always terminate a BB with a branch stub (spec.md §4.5).
var Branch = mapset.NewSet(
	bytecode.POP_JUMP_IF_FALSE,
	bytecode.POP_JUMP_IF_TRUE,
	bytecode.FOR_ITER,
	bytecode.COMPARE_AND_BRANCH,
)

// Optimizable opcodes are ones for which the type meta-interpreter may
// emit a specialized replacement (spec.md §4.1). This spec's enumerated
// set is deliberately small: the generic binary-op, and any binary-op
// already in an inline-cache-specialized (non-generic) form.
var Optimizable = mapset.NewSet(
	bytecode.BINARY_OP,
	bytecode.BINARY_OP_ADD_INT_REST,
)

// IsForbidden reports whether op disqualifies a code object from
// specialization if present anywhere in it.
func IsForbidden(op bytecode.Op) bool { return Forbidden.Contains(op) }

// IsScopeExit reports whether op always terminates a BB.
func IsScopeExit(op bytecode.Op) bool { return ScopeExit.Contains(op) }

// IsForwardJump reports whether op is an unconditional forward jump,
// erased at emission rather than terminating a BB.
func IsForwardJump(op bytecode.Op) bool { return ForwardJump.Contains(op) }

// IsBackwardJump reports whether op is a loop-edge opcode.
func IsBackwardJump(op bytecode.Op) bool { return BackwardJump.Contains(op) }

// IsBranch reports whether op always terminates a BB with a branch stub.
func IsBranch(op bytecode.Op) bool { return Branch.Contains(op) }

// IsOptimizable reports whether the Emitter may replace op with a
// specialized variant.
func IsOptimizable(op bytecode.Op) bool { return Optimizable.Contains(op) }

// HasForbiddenOpcode scans words for any Forbidden opcode, the first
// Bootstrap check of spec.md §4.8.
func HasForbiddenOpcode(words []bytecode.Word) bool {
	for _, w := range words {
		if IsForbidden(w.Op) {
			return true
		}
	}
	return false
}

// HasOptimizableOpcode scans words for at least one Optimizable opcode,
// the second Bootstrap check of spec.md §4.8 ("uninteresting program").
func HasOptimizableOpcode(words []bytecode.Word) bool {
	for _, w := range words {
		if IsOptimizable(w.Op) {
			return true
		}
	}
	return false
}
