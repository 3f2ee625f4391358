// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

import (
	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/internal/specialize"
	"github.com/go-interpreter/wagon-tier2/internal/telemetry"
	"github.com/go-interpreter/wagon-tier2/typesys"
)

// Warmup is spec.md §6's one-shot warm-up hook, called from the RESUME
// opcode. On the very first call for a code object it runs Bootstrap; on
// every later call it just reports whatever Bootstrap already decided
// (never retried — spec.md §7's "no retries" testable property). It
// returns nextInstr unchanged when Tier 2 is unavailable, or the entry
// BB's arena offset when it is.
func Warmup(frame *Frame, nextInstr int) int {
	co := frame.Code
	co.mu.Lock()
	if co.bootstrapped {
		info := co.info
		co.mu.Unlock()
		if info == nil || info.Disabled() {
			return nextInstr
		}
		return info.BB(info.EntryID()).Tier2Start
	}
	co.bootstrapped = true
	info, tier2Entry, ok := specialize.Bootstrap(co.Words, co.NLocals, co.Counters)
	co.info = info
	co.mu.Unlock()
	if !ok {
		return nextInstr
	}
	return tier2Entry
}

// GenerateNextBB is spec.md §6's forward-successor hook: given the BB a
// BB_BRANCH stub belongs to and the displacement observed at runtime (0
// for "fall through", owner.BranchArg for "taken" — Frame.stepBranchStub
// picks which), it returns the Tier-2 offset of the successor BB,
// generating it on first use. On failure tier1Fallback is owner.Tier1End
// + jumpBy, the Tier-1 position that successor would have started
// execution at; on success it is 0.
func GenerateNextBB(frame *Frame, bbID uint16, jumpBy int32) (tier2Offset int, ok bool, tier1Fallback int) {
	info := frame.Code.Info()
	owner := info.BB(bbID)
	tier1Start := owner.Tier1End + int(jumpBy)
	meta, err := info.GenerateBB(tier1Start, frame.snapshotContext())
	if err != nil {
		return 0, false, tier1Start
	}
	return meta.Tier2Start, true, 0
}

// LocateBackwardBB is spec.md §6's loop-edge hook: given the BB a
// BB_JUMP_BACKWARD_LAZY stub belongs to and the stub's own displacement
// (folded out of its EXTENDED_ARG prefix by fetchTier2, so it is always
// the full original Tier-1 oparg), it resolves or mints a specialized
// loop-header version for the current type context (spec.md §4.7/§9).
func LocateBackwardBB(frame *Frame, bbID uint16, jumpBy int32) (tier2Offset int, ok bool, tier1Fallback int) {
	info := frame.Code.Info()
	owner := info.BB(bbID)
	instrEnd := owner.Tier1End - bytecode.CacheEntries(bytecode.JUMP_BACKWARD)
	tier1Target := specialize.BackwardJumpTarget(instrEnd, uint32(jumpBy))
	meta, err := info.LocateBackwardBB(tier1Target, frame.snapshotContext())
	if err != nil {
		return 0, false, tier1Target
	}
	return meta.Tier2Start, true, 0
}

// RewriteForwardJump and RewriteBackwardJump wrap Info.RewriteForwardBranch
// and Info.RewriteBackwardJump for the vm package's call sites. spec.md §6
// lists RewriteForwardJump as (info, stubOffset, targetOffset); jumpOp is
// added here for the same reason Bootstrap's return shape was concretized
// beyond its literal prototype in internal/specialize/bootstrap.go — only
// the VM dispatch loop knows which flag polarity (BB_JUMP_IF_FLAG_SET vs
// _UNSET) the observed branch actually took, and RewriteForwardBranch
// needs that to pick the stub's replacement opcode.
func RewriteForwardJump(info *specialize.Info, stubOffset int, jumpOp bytecode.Op, targetOffset int) {
	info.RewriteForwardBranch(stubOffset, jumpOp, targetOffset)
}

func RewriteBackwardJump(info *specialize.Info, stubOffset int, targetOffset int) {
	info.RewriteBackwardJump(stubOffset, targetOffset)
}

// stepBranchStub resolves a BB_BRANCH stub reached in the Tier-2 stream.
// stubOffset is the stub's own word offset (fetchTier2's start return,
// which for BB_BRANCH never differs from its op word's own position: a
// branch stub's BB_BRANCH word is never itself preceded by an
// EXTENDED_ARG — that prefix, if any, belongs to the preserved test
// opcode ahead of it and was already consumed in an earlier step()).
//
// The BB_BRANCH stub's own stub-id word (EmitBranchStub's takenID /
// EmitForIterStub's bodyID) is never read here: spec.md §6 defines
// bb_id as "the stub's owning BB", and the only id that can ever be
// trusted at the moment a branch actually resolves is whatever
// GenerateNextBB's own Info.GenerateBB call assigns live, under Info's
// mutex — not a value guessed and frozen at emission time before the
// BBs ahead of it in program order were necessarily generated in that
// same order. The reserved id is kept purely as a disassembly/debugging
// hint (see disasm), never consulted by this dispatch loop.
func (f *Frame) stepBranchStub(stubOffset int) {
	f.Pos += bytecode.WordSize // skip the inert stub-id word

	owner := f.Code.Info().BB(f.CurrentBB)
	var jumpBy int32
	if f.pendingFlag {
		jumpBy = int32(owner.BranchArg)
	}
	target, ok, fallback := GenerateNextBB(f, f.CurrentBB, jumpBy)
	if !ok {
		f.deoptToTier1(fallback, telemetry.ReasonBranchUnresolved, f.CurrentBB)
		return
	}
	jumpOp := bytecode.BB_JUMP_IF_FLAG_UNSET
	if f.pendingFlag {
		jumpOp = bytecode.BB_JUMP_IF_FLAG_SET
	}
	RewriteForwardJump(f.Code.Info(), stubOffset, jumpOp, target)
	f.enterTier2At(target)
}

// stepBackwardStub resolves a BB_JUMP_BACKWARD_LAZY stub. stubOffset is
// the byte offset fetchTier2 started folding from — the stub's leading
// EXTENDED_ARG word, exactly what RewriteBackwardJump expects. jumpBy is
// the stub's full original displacement, already folded out of that
// same EXTENDED_ARG prefix by fetchTier2.
func (f *Frame) stepBackwardStub(stubOffset int, jumpBy uint32) {
	target, ok, fallback := LocateBackwardBB(f, f.CurrentBB, int32(jumpBy))
	if !ok {
		f.deoptToTier1(fallback, telemetry.ReasonLoopUnresolved, f.CurrentBB)
		return
	}
	RewriteBackwardJump(f.Code.Info(), stubOffset, target)
	f.enterTier2At(target)
}

// stepGuard resolves a BB_GUARD_TYPE check (spec.md §9: "implementers
// should define the failure path"). EmitGuard replaces the guarded
// BINARY_OP outright rather than preserving it (owner.Tier1End already
// names the Tier-1 position just past it), so a passing guard must also
// perform the add itself — there is no other instruction left in this
// BB's emitted stream that will. A failing guard falls back to Tier 1
// at the BINARY_OP instruction's own start (recovered from Tier1End by
// subtracting its known one-opcode-plus-one-cache-word width, since this
// encoding never needs an EXTENDED_ARG prefix for a single-byte oparg),
// so the generic instruction actually runs instead of being skipped.
//
// The guard's own stub-id word (EmitGuard's failID) is never read here —
// inert bookkeeping, for the same reason a branch stub's id is (see
// stepBranchStub): whichever BB eventually resumes this Tier-1 position
// is whatever GenerateNextBB's own GenerateBB call mints live, not a
// value frozen at emission time.
func (f *Frame) stepGuard(arg uint32) {
	known := typesys.ByID(uint8(arg))
	n := len(f.Stack)
	lhs, rhs := f.Stack[n-2], f.Stack[n-1]
	if lhs.Type == known && rhs.Type == known {
		f.Stack = f.Stack[:n-2]
		f.push(Int(lhs.I + rhs.I))
		target, ok, fallback := GenerateNextBB(f, f.CurrentBB, 0)
		if !ok {
			f.deoptToTier1(fallback, telemetry.ReasonBranchUnresolved, f.CurrentBB)
			return
		}
		f.enterTier2At(target)
		return
	}
	owner := f.Code.Info().BB(f.CurrentBB)
	guardedInstr := owner.Tier1End - 1 - bytecode.CacheEntries(bytecode.BINARY_OP)
	f.deoptToTier1(guardedInstr, telemetry.ReasonBranchUnresolved, f.CurrentBB)
}
