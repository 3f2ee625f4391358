// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import (
	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/classify"
	"github.com/go-interpreter/wagon-tier2/typectx"
)

// BackwardJumpTarget computes the Tier-1 word index a backward jump
// targets, given the word index immediately past the jump instruction's
// own opcode word (before its cache tail) and its oparg (the
// displacement) — spec.md §4.7's "source_offset + 1 − displacement",
// concretized for this encoding as "one past the opcode word" rather than
// assuming every instruction occupies exactly one word.
func BackwardJumpTarget(instrEnd int, displacement uint32) int {
	return instrEnd - int(displacement)
}

// ScanBackwardJumpTargets walks words once, collecting the Tier-1 target
// offset of every backward jump. Bootstrap calls this to build the Jump
// Target Index before the first BB is discovered (spec.md §4.7).
func ScanBackwardJumpTargets(words []bytecode.Word) []int {
	var targets []int
	cur := bytecode.NewCursor(words, 0)
	for !cur.Done() {
		op, arg, _, ok := cur.Next()
		if !ok {
			break
		}
		if classify.IsBackwardJump(op) {
			targets = append(targets, BackwardJumpTarget(cur.Pos, arg))
		}
		cur.Pos += bytecode.CacheEntries(op)
	}
	return targets
}

// BBDiscovery scans Tier-1 instructions starting at tier1Start and drives
// the Emitter until a BB-terminating condition, per spec.md §4.4,
// registering every BB it produces along the way. It returns the metadata
// of the last BB produced — the one the caller should actually resume
// execution at.
//
// A single call can produce more than one BB: whenever the scan falls
// through into an already-registered backward-jump target partway
// through (rather than starting there), the current BB is terminated and
// finalized with nothing emitted for the triggering instruction, and
// discovery restarts fresh at that same offset. Spec.md §4.4 describes
// this for the case of exactly one such fall-through per call ("the two
// BBs produced share one discovery call"); this implementation loops
// rather than recursing once, so it also handles the (unlikely, but not
// excluded) case of several chained fall-throughs in a single call,
// registering all of them and returning only the final one.
func BBDiscovery(words []bytecode.Word, tier1Start int, incoming *typectx.Context, arena *Arena, table *MetaTable, index *JumpIndex) (*BBMeta, error) {
	pos := tier1Start
	ctx := incoming
	for {
		atTarget := -1
		if i, ok := index.IndexOf(pos); ok {
			atTarget = i
		}
		meta, nextStart, split, err := discoverOneBB(words, pos, ctx, arena, table, index, atTarget)
		if err != nil {
			return nil, err
		}
		if !split {
			return meta, nil
		}
		pos = nextStart
		ctx = meta.Context
	}
}

// discoverOneBB emits exactly one BB starting at start. If the scan
// discovers, after having already emitted at least one instruction, that
// the current position is a registered backward-jump target, it stops
// without consuming that instruction and reports split=true with
// nextStart set to that position; the caller is responsible for
// restarting discovery there.
func discoverOneBB(words []bytecode.Word, start int, incoming *typectx.Context, arena *Arena, table *MetaTable, index *JumpIndex, atTarget int) (meta *BBMeta, nextStart int, split bool, err error) {
	if table.Len() >= MaxBBsPerCodeObject {
		return nil, 0, false, ErrTooManyBBs
	}

	ctx := incoming.Clone()
	var emitted []bytecode.Word
	pos := start
	first := true

	for {
		if !first {
			if _, ok := index.IndexOf(pos); ok {
				meta, err = finalize(arena, table, index, emitted, pos, ctx, atTarget, 0)
				if err != nil {
					return nil, 0, false, err
				}
				return meta, pos, true, nil
			}
		}

		cur := bytecode.NewCursor(words, pos)
		op, arg, _, ok := cur.Next()
		if !ok {
			// Ran off the end of a well-formed stream without a scope
			// exit; terminate what has been emitted so far rather than
			// looping forever.
			meta, err = finalize(arena, table, index, emitted, pos, ctx, atTarget, 0)
			return meta, 0, false, err
		}
		cacheN := bytecode.CacheEntries(op)
		cacheTail := append([]bytecode.Word(nil), words[cur.Pos:cur.Pos+cacheN]...)
		afterCache := cur.Pos + cacheN

		switch {
		case classify.IsScopeExit(op):
			emitted = append(emitted, bytecode.EncodeOparg(op, arg)...)
			emitted = append(emitted, cacheTail...)
			meta, err = finalize(arena, table, index, emitted, afterCache, ctx, atTarget, 0)
			return meta, 0, false, err

		case classify.IsForwardJump(op):
			// Erase: skip across the jump, emitting nothing (spec.md §4.6).
			pos = afterCache + int(arg)
			first = false
			continue

		case op == bytecode.END_FOR && len(emitted) == 0:
			// End-for marker at BB start exists only to pop a dead
			// iterator; emit it, but slide tier2Start past it so a
			// successor entering this BB resumes after it (spec.md §4.4).
			emitted = append(emitted, bytecode.Word{Op: bytecode.END_FOR})
			if _, aerr := arena.Append(emitted); aerr != nil {
				return nil, 0, false, aerr
			}
			emitted = nil
			pos = afterCache
			first = false
			continue

		case classify.IsBranch(op):
			var stub []bytecode.Word
			switch op {
			case bytecode.FOR_ITER:
				stub = EmitForIterStub(arg, table)
			case bytecode.COMPARE_AND_BRANCH:
				ctx.Pop()
				ctx.Pop()
				ctx.Push(nil)
				stub = EmitCompareAndBranchStub(arg, table)
			default: // POP_JUMP_IF_FALSE, POP_JUMP_IF_TRUE
				ctx.Pop()
				stub = EmitBranchStub(op, arg, table)
			}
			emitted = append(emitted, stub...)
			meta, err = finalize(arena, table, index, emitted, afterCache, ctx, atTarget, arg)
			return meta, 0, false, err

		case classify.IsBackwardJump(op):
			emitted = append(emitted, EmitBackwardJumpStub(arg, cacheTail)...)
			meta, err = finalize(arena, table, index, emitted, afterCache, ctx, atTarget, 0)
			return meta, 0, false, err

		case classify.IsOptimizable(op):
			switch Decide(op, arg, ctx) {
			case DecisionSpecialized:
				emitted = append(emitted, EmitSpecialized(arg, cacheTail, ctx)...)
			case DecisionGuarded:
				known := GuardOperand(ctx)
				emitted = append(emitted, EmitGuard(known, table)...)
				meta, err = finalize(arena, table, index, emitted, afterCache, ctx, atTarget, 0)
				return meta, 0, false, err
			default:
				emitted = append(emitted, EmitGeneric(op, arg, cacheTail, ctx)...)
			}
			pos = afterCache
			first = false
			continue

		default:
			applyPassthroughEffect(op, arg, ctx)
			emitted = append(emitted, bytecode.EncodeOparg(op, arg)...)
			emitted = append(emitted, cacheTail...)
			pos = afterCache
			first = false
			continue
		}
	}
}

// applyPassthroughEffect updates ctx for an instruction this package does
// not specialize, matching spec.md §4.2's type-context update rules: a
// local store updates locals[oparg]; a load pushes onto the stack shadow;
// everything else this spec does not model pushes unknown for whatever it
// produces, if anything.
func applyPassthroughEffect(op bytecode.Op, arg uint32, ctx *typectx.Context) {
	switch op {
	case bytecode.LOAD_FAST:
		ctx.Push(ctx.LoadLocal(int(arg)))
	case bytecode.STORE_FAST:
		ctx.StoreLocal(int(arg), ctx.Pop())
	case bytecode.LOAD_CONST:
		ctx.Push(nil)
	case bytecode.COMPARE_OP:
		ctx.Pop()
		ctx.Pop()
		ctx.Push(nil)
	}
}

// finalize appends emitted to the arena, publishes a metadata record for
// it ending at tier1End, and — if this BB began at a registered
// backward-jump target — installs its id into that target's version
// array (spec.md §4.4 step 3, §4.7). branchArg is the original Tier-1
// oparg of the terminating branch instruction, if any (0 otherwise);
// BBMeta.BranchArg carries it forward so the vm package's GenerateNextBB
// hook can compute the taken-arm Tier-1 target without redecoding bytes.
func finalize(arena *Arena, table *MetaTable, index *JumpIndex, emitted []bytecode.Word, tier1End int, ctx *typectx.Context, atTarget int, branchArg uint32) (*BBMeta, error) {
	off, err := arena.Append(emitted)
	if err != nil {
		return nil, err
	}
	for i, w := range emitted {
		if isRewriteDiscriminant(w.Op) {
			arena.MarkVolatile(off+i*bytecode.WordSize, w)
		}
	}
	meta := table.Publish(off, tier1End, ctx, branchArg)
	if atTarget >= 0 {
		if err := index.Register(atTarget, meta.ID); err != nil {
			return nil, err
		}
	}
	return meta, nil
}

// isRewriteDiscriminant reports whether op is one of the two stub markers
// the Branch Rewriter later overwrites in place (spec.md §4.9): a BB that
// emits one gets that word registered with the arena's atomic overlay
// (Arena.MarkVolatile) so the eventual rewrite is a safe lock-free
// publish rather than a plain byte write. BB_TEST_ITER is not a
// discriminant: the iterator probe it encodes is a permanent Tier-2
// instruction, not a placeholder the rewriter replaces — only the
// BB_BRANCH word following it resolves.
func isRewriteDiscriminant(op bytecode.Op) bool {
	switch op {
	case bytecode.BB_BRANCH, bytecode.BB_JUMP_BACKWARD_LAZY:
		return true
	}
	return false
}
