// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

import (
	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/internal/telemetry"
)

// step decodes and executes exactly one instruction from whichever tier
// the frame is currently on, generalizing exec.(*VM).execCode's
// switch-over-op dispatch (exec/vm.go) to a second, type-specialized
// stream that shares every opcode meaning Tier 1 gives it except the six
// Tier-2-only stub/specialized forms.
func (f *Frame) step() {
	var op bytecode.Op
	var arg uint32
	var start int
	if f.Tier == Tier1 {
		var ok bool
		op, arg, ok = f.fetchTier1()
		if !ok {
			f.done = true
			return
		}
	} else {
		op, arg, start = f.fetchTier2()
	}

	switch op {
	case bytecode.NOP, bytecode.END_FOR:
		// END_FOR's only Tier-1 role is popping a dead iterator; this
		// toy VM's doForIter already pops on exhaustion, so by the time
		// END_FOR is reached there is nothing left to discard.

	case bytecode.RESUME:
		newPos := Warmup(f, f.Pos)
		if newPos != f.Pos {
			f.enterTier2At(newPos)
		}
	case bytecode.RESUME_QUICK:
		if f.Tier == Tier1 {
			if info := f.Code.Info(); info != nil && !info.Disabled() {
				f.enterTier2At(info.BB(info.EntryID()).Tier2Start)
			}
		}
		// In Tier 2, RESUME_QUICK is simply the entry BB's leading
		// instruction re-emitted verbatim (spec.md §4.4's passthrough
		// rule); it has already done its one-time job, so it is a no-op
		// here.

	case bytecode.LOAD_FAST:
		f.push(f.Locals[arg])
	case bytecode.STORE_FAST:
		f.Locals[arg] = f.pop()
	case bytecode.LOAD_CONST:
		// Constants are not modeled by this toy VM's value set; pushing
		// an unknown-typed zero value is enough to drive BINARY_OP/
		// COMPARE_OP through generic handling wherever a real constant
		// would appear.
		f.push(Value{})

	case bytecode.BINARY_OP, bytecode.BINARY_OP_ADD_INT_REST:
		rhs := f.pop()
		lhs := f.pop()
		f.push(Int(lhs.I + rhs.I))

	case bytecode.COMPARE_OP:
		rhs := f.pop()
		lhs := f.pop()
		cond := lhs.I < rhs.I
		f.pendingFlag = cond
		f.push(boolValue(cond))

	case bytecode.COMPARE_AND_BRANCH:
		rhs := f.pop()
		lhs := f.pop()
		if lhs.I < rhs.I {
			f.Pos += int(arg)
		}

	case bytecode.POP_JUMP_IF_FALSE, bytecode.POP_JUMP_IF_TRUE:
		v := f.pop()
		cond := v.I != 0
		if op == bytecode.POP_JUMP_IF_FALSE {
			cond = !cond
		}
		if f.Tier == Tier1 {
			if cond {
				f.Pos += int(arg)
			}
		} else {
			f.pendingFlag = cond
		}

	case bytecode.FOR_ITER:
		cont := f.doForIter()
		if f.Tier == Tier1 {
			if cont {
				f.Pos += int(arg)
			}
		} else {
			f.pendingFlag = cont
		}

	case bytecode.JUMP_FORWARD:
		f.Pos += int(arg)

	case bytecode.JUMP_BACKWARD, bytecode.JUMP_BACKWARD_QUICK:
		if f.Tier == Tier1 {
			// Measured from just past the opcode word, before its cache
			// tail, as specialize.BackwardJumpTarget does.
			f.Pos -= bytecode.CacheEntries(bytecode.JUMP_BACKWARD) + int(arg)
		} else {
			f.enterTier2At(f.Pos - int(arg)*bytecode.WordSize)
		}

	case bytecode.RETURN_VALUE:
		f.result = f.pop()
		f.done = true
	case bytecode.RETURN_CONST:
		f.result = Value{}
		f.done = true
	case bytecode.RAISE_VARARGS, bytecode.RERAISE, bytecode.INTERPRETER_EXIT:
		f.done = true

	case bytecode.YIELD_VALUE, bytecode.SEND, bytecode.PUSH_EXC_INFO,
		bytecode.POP_EXCEPT, bytecode.MAKE_CELL, bytecode.MATCH_CLASS:
		// Forbidden opcodes (classify.Forbidden) only ever reach this toy
		// VM on a program Bootstrap never got the chance to specialize
		// (or already refused); generator/exception semantics are out of
		// scope (SPEC_FULL.md Non-goals), so the frame simply ends here
		// rather than pretending to implement them.
		f.done = true

	case bytecode.BB_BRANCH:
		f.stepBranchStub(start)
	case bytecode.BB_TEST_ITER:
		f.pendingFlag = f.doForIter()
		f.Pos += bytecode.WordSize // skip the inert stub-id word
	case bytecode.BB_JUMP_BACKWARD_LAZY:
		f.stepBackwardStub(start, arg)
	case bytecode.BB_GUARD_TYPE:
		f.Pos += bytecode.WordSize // skip the inert stub-id word
		f.stepGuard(arg)
	case bytecode.BB_JUMP_IF_FLAG_SET:
		f.stepResolvedBranch(arg, f.pendingFlag)
	case bytecode.BB_JUMP_IF_FLAG_UNSET:
		f.stepResolvedBranch(arg, !f.pendingFlag)

	default:
		f.done = true
	}
}

// stepResolvedBranch advances through an already-rewritten forward
// branch (BB_JUMP_IF_FLAG_SET/UNSET). The arithmetic is
// RewriteForwardBranch's inverse: f.Pos, just after fetchTier2 consumed
// the jump word, already sits two words past the stub's own position
// (s); the rewritten displacement d = t-s-1 names the target word t, so
// the remaining delta from here is d-1 words (internal/specialize/
// rewrite.go). When the flag selects the other direction than the one
// the rewrite committed, the successor is resolved through a fresh
// GenerateNextBB call, as in stepBranchStub, and the stub is not
// rewritten again.
func (f *Frame) stepResolvedBranch(displacement uint32, take bool) {
	if take {
		f.enterTier2At(f.Pos + (int(displacement)-1)*bytecode.WordSize)
		return
	}
	var jumpBy int32
	if f.pendingFlag {
		jumpBy = int32(f.Code.Info().BB(f.CurrentBB).BranchArg)
	}
	target, ok, fallback := GenerateNextBB(f, f.CurrentBB, jumpBy)
	if !ok {
		f.deoptToTier1(fallback, telemetry.ReasonBranchUnresolved, f.CurrentBB)
		return
	}
	f.enterTier2At(target)
}

func boolValue(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}
