// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import "github.com/go-interpreter/wagon-tier2/bytecode"

// RewriteForwardBranch patches a resolved BB_BRANCH stub into a direct
// jump, once both of its successors are materialized (spec.md §4.9).
// stubOffset is the byte offset of the BB_BRANCH word itself (the word
// immediately after the preserved test opcode); targetOffset is the
// taken successor's Tier2Start. jumpOp is the caller-selected polarity —
// BB_JUMP_IF_FLAG_SET or BB_JUMP_IF_FLAG_UNSET — matching whichever
// outcome of the preserved test opcode this stub represented; the VM
// dispatch loop that tracks the test's flag result is what decides which
// polarity applies, not this package.
//
// The two-word slot `{BB_BRANCH, stub_id}` becomes
// `{EXTENDED_ARG|NOP, jumpOp}` with displacement `target − stub − 1`
// (spec.md §4.9), carried in the high byte of the first word when it
// does not fit in one byte, in the low byte of the second word always.
// Publish order matters: the id word (never read as an instruction
// before this call, and not registered as volatile) is overwritten
// first; the BB_BRANCH word — the one word a lock-free reader actually
// inspects to decide "already resolved?" — is published last, and
// atomically, by Arena.SetWordAtomic (spec.md §5).
func (info *Info) RewriteForwardBranch(stubOffset int, jumpOp bytecode.Op, targetOffset int) {
	info.mu.Lock()
	defer info.mu.Unlock()

	s := stubOffset / bytecode.WordSize
	t := targetOffset / bytecode.WordSize
	d := t - s - 1

	idOffset := stubOffset + bytecode.WordSize
	info.arena.SetWord(idOffset, bytecode.Word{Op: jumpOp, Arg: lowByte(d)})
	info.arena.SetWordAtomic(stubOffset, prefixWord(d))
}

// RewriteBackwardJump patches a resolved BB_JUMP_BACKWARD_LAZY stub into
// a direct backward jump (spec.md §4.9). stubOffset is the byte offset
// of the stub's leading EXTENDED_ARG word; targetOffset is the loop
// header BB's Tier2Start.
//
// The three-word slot `{EXTENDED_ARG, 0} {BB_JUMP_BACKWARD_LAZY, oparg}
// {cache_tail}` becomes `{EXTENDED_ARG|NOP, ?} {JUMP_BACKWARD_QUICK, ?}
// {END_FOR}`, with the displacement negated relative to the forward case
// (spec.md §4.9) since the jump now targets something behind it — the
// same magnitude BackwardJumpTarget would have computed from this
// stub's own position. Publish order: the trailing cache-tail word
// becomes END_FOR first, the EXTENDED_ARG prefix's high byte is updated
// next (its Op never changes, so this is never the word a reader
// distinguishes stub-vs-resolved by), and the BB_JUMP_BACKWARD_LAZY word
// — the true discriminant — is republished last, atomically.
func (info *Info) RewriteBackwardJump(stubOffset int, targetOffset int) {
	info.mu.Lock()
	defer info.mu.Unlock()

	jumpOffset := stubOffset + bytecode.WordSize
	tailOffset := jumpOffset + bytecode.WordSize

	jumpWordIdx := jumpOffset / bytecode.WordSize
	instrEnd := jumpWordIdx + 1
	d := instrEnd - targetOffset/bytecode.WordSize

	info.arena.SetWord(tailOffset, bytecode.Word{Op: bytecode.END_FOR})
	info.arena.SetWord(stubOffset, bytecode.Word{Op: bytecode.EXTENDED_ARG, Arg: highByte(d)})
	info.arena.SetWordAtomic(jumpOffset, bytecode.Word{Op: bytecode.JUMP_BACKWARD_QUICK, Arg: lowByte(d)})
}

func lowByte(d int) uint8  { return uint8(d) }
func highByte(d int) uint8 { return uint8(d >> 8) }

// prefixWord returns the prefix word a forward-branch rewrite installs:
// EXTENDED_ARG carrying the high byte if the displacement does not fit
// in one byte, otherwise a NOP occupying the now-unused cache slot.
func prefixWord(d int) bytecode.Word {
	if bytecode.NeedsExtendedArg(uint32(d)) {
		return bytecode.Word{Op: bytecode.EXTENDED_ARG, Arg: highByte(d)}
	}
	return bytecode.Word{Op: bytecode.NOP}
}
