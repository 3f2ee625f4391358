// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import (
	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/typectx"
	"github.com/go-interpreter/wagon-tier2/typesys"
)

// Decision is the Emitter's verdict on a single Optimizable instruction,
// per spec.md §4.5: pass it through generic, replace it with a
// specialized variant, or terminate the BB with a type guard.
type Decision int

const (
	// DecisionGeneric means op carries no exploitable type information;
	// emit it unchanged.
	DecisionGeneric Decision = iota
	// DecisionSpecialized means both operand types are known to be Int
	// (or op is already BINARY_OP_ADD_INT_REST), so a faster,
	// type-committed variant may replace op.
	DecisionSpecialized
	// DecisionGuarded means exactly one operand type is known: op cannot
	// be safely replaced outright, but a single-operand guard can commit
	// to the known side and terminate the BB, per spec.md §9's resolved
	// Open Question.
	DecisionGuarded
)

// addOparg is the BINARY_OP oparg this spec specializes (spec.md §4.1:
// "this spec only specializes the add-kind operand").
const addOparg = 0

// Decide inspects op's operand types on the top of ctx's stack shadow
// (the "up to two preceding instructions' observed types" lookbehind of
// spec.md §4.5, expressed directly as the stack shadow rather than a
// separate buffer, since every value BINARY_OP consumes was pushed by an
// instruction already processed in this same BB) and reports what the
// Emitter should do. Decide does not mutate ctx; the Emit* functions do.
func Decide(op bytecode.Op, arg uint32, ctx *typectx.Context) Decision {
	if op == bytecode.BINARY_OP_ADD_INT_REST {
		// Already specialized upstream of Tier 2 (Tier-1's own inline
		// cache did this); nothing further to do.
		return DecisionSpecialized
	}
	if op != bytecode.BINARY_OP || arg != addOparg {
		return DecisionGeneric
	}
	lhs := ctx.Peek(1)
	rhs := ctx.Peek(0)
	switch {
	case typesys.Same(lhs, typesys.Int) && typesys.Same(rhs, typesys.Int):
		return DecisionSpecialized
	case (lhs == nil) != (rhs == nil):
		return DecisionGuarded
	default:
		return DecisionGeneric
	}
}

// GuardOperand returns whichever of BINARY_OP's two operand types ctx
// knows, for the caller to pass to EmitGuard once Decide has returned
// DecisionGuarded.
func GuardOperand(ctx *typectx.Context) *typesys.Type {
	if t := ctx.Peek(1); t != nil {
		return t
	}
	return ctx.Peek(0)
}

// EmitGeneric pops BINARY_OP's two operands off ctx's stack shadow,
// pushes an unknown result, and returns the unmodified instruction plus
// its verbatim cache tail (Testable Property 7: cache preservation on
// pass-through).
func EmitGeneric(op bytecode.Op, arg uint32, cacheTail []bytecode.Word, ctx *typectx.Context) []bytecode.Word {
	ctx.Pop()
	ctx.Pop()
	ctx.Push(nil)
	words := bytecode.EncodeOparg(op, arg)
	return append(words, cacheTail...)
}

// EmitSpecialized replaces a type-confirmed BINARY_OP with
// BINARY_OP_ADD_INT_REST, pushing a known Int result. The cache tail is
// preserved verbatim: Tier 2 never invents a new cache layout for an
// instruction the host VM itself already knows how to cache.
func EmitSpecialized(arg uint32, cacheTail []bytecode.Word, ctx *typectx.Context) []bytecode.Word {
	ctx.Pop()
	ctx.Pop()
	ctx.Push(typesys.Int)
	words := bytecode.EncodeOparg(bytecode.BINARY_OP_ADD_INT_REST, arg)
	return append(words, cacheTail...)
}

// EmitGuard terminates a BB with a BB_GUARD_TYPE check against the one
// operand type that is known (spec.md §9, resolved). The check's oparg
// names the known type via typesys.ID; its second word carries a uint16
// bb_id reserved from table, the same way a BB_BRANCH stub's id word does.
// No guard-failed BB is ever generated for that id: a failing guard
// resumes Tier 1 at the guarded BINARY_OP (vm's stepGuard), and the id
// word is never read at runtime. The guard-passed successor is simply whatever BB discovery
// emits immediately afterward in program order, so it needs no id
// reserved here.
//
// EmitGuard does not touch ctx's stack shadow: the BB ends here, and each
// successor BB starts from its own snapshot, narrowed appropriately by
// the caller before it clones the context forward.
func EmitGuard(known *typesys.Type, table *MetaTable) []bytecode.Word {
	failID := table.NextID()
	return []bytecode.Word{
		{Op: bytecode.BB_GUARD_TYPE, Arg: typesys.ID(known)},
		stubIDWord(failID),
	}
}

// EmitBranchStub emits a two-way branch terminator for a test-then-jump
// instruction (POP_JUMP_IF_FALSE, POP_JUMP_IF_TRUE, or the compare half of
// a fused COMPARE_AND_BRANCH) per spec.md §4.5: the original test opcode
// and oparg unchanged, followed by a BB_BRANCH marker word and then a
// stub-id word carrying the uint16 id reserved from table for the
// "branch taken" successor. This pair replaces the test opcode's cache
// tail, which is why a branch stub's own cache-tail bytes are not preserved
// (spec.md §6: "a BB_BRANCH stub's cache overlays a 16-bit bb_id").
func EmitBranchStub(op bytecode.Op, arg uint32, table *MetaTable) []bytecode.Word {
	takenID := table.NextID()
	words := bytecode.EncodeOparg(op, arg)
	words = append(words, bytecode.Word{Op: bytecode.BB_BRANCH})
	return append(words, stubIDWord(takenID))
}

// EmitForIterStub emits FOR_ITER's two-stub sequence (spec.md §4.5): a
// BB_TEST_ITER probe (does the iterator have a next value?) immediately
// followed by a BB_BRANCH stub, both overlaid with the same "loop body"
// successor id, since either stub taking its branch means "enter the
// loop body".
func EmitForIterStub(arg uint32, table *MetaTable) []bytecode.Word {
	bodyID := table.NextID()
	return []bytecode.Word{
		{Op: bytecode.BB_TEST_ITER, Arg: uint8(arg)},
		stubIDWord(bodyID),
		{Op: bytecode.BB_BRANCH, Arg: uint8(arg)},
		stubIDWord(bodyID),
	}
}

// EmitCompareAndBranchStub reduces a fused COMPARE_AND_BRANCH instruction
// to a plain compare-op write followed by a BB_BRANCH stub (spec.md §4.5:
// "reduced to a compare-op write; the branch is separately handled by the
// pseudo branch rewrite path"), reusing the exact same stub shape
// EmitBranchStub produces for the jump half.
func EmitCompareAndBranchStub(arg uint32, table *MetaTable) []bytecode.Word {
	takenID := table.NextID()
	return []bytecode.Word{
		{Op: bytecode.COMPARE_OP, Arg: uint8(arg)},
		{Op: bytecode.BB_BRANCH},
		stubIDWord(takenID),
	}
}

// EmitBackwardJumpStub emits JUMP_BACKWARD as the three-word
// BB_JUMP_BACKWARD_LAZY sequence of spec.md §4.5: an EXTENDED_ARG word —
// always present, even when arg fits in one byte — reserving the slot the
// Branch Rewriter (§4.9) will later need if the resolved displacement
// turns out to require it, followed by the stub opcode and arg's low
// byte, followed by the original cache tail preserved verbatim (this
// stub, unlike BB_BRANCH, resolves its target through the Jump Target
// Index rather than a reserved id, so its cache tail is not repurposed).
func EmitBackwardJumpStub(arg uint32, cacheTail []bytecode.Word) []bytecode.Word {
	words := []bytecode.Word{
		{Op: bytecode.EXTENDED_ARG, Arg: uint8(arg >> 8)},
		{Op: bytecode.BB_JUMP_BACKWARD_LAZY, Arg: uint8(arg)},
	}
	return append(words, cacheTail...)
}

// stubIDWord packs a uint16 bb id into a single Word's two bytes. The
// packed word's Op field is never decoded as an opcode — it is read back
// only through StubID — so it is safe for it to collide with a real Op
// value.
func stubIDWord(id uint16) bytecode.Word {
	return bytecode.Word{Op: bytecode.Op(id >> 8), Arg: uint8(id)}
}

// StubID unpacks the uint16 bb id a stubIDWord carries.
func StubID(w bytecode.Word) uint16 {
	return uint16(w.Op)<<8 | uint16(w.Arg)
}
