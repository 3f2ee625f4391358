// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm renders a Tier-1 word stream, or a code object's live
// Tier-2 arena, as aligned text — a debugging aid, not part of the
// specializer's hot path.
package disasm

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/internal/specialize"
)

// Tier1 writes one line per logical instruction in words, word-index
// addressed, folding EXTENDED_ARG prefixes into the instruction they
// precede exactly as bytecode.Cursor does.
func Tier1(w io.Writer, words []bytecode.Word) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	c := bytecode.NewCursor(words, 0)
	for {
		op, arg, start, ok := c.Next()
		if !ok {
			break
		}
		fmt.Fprintf(tw, "%4d:\t%s\t%d\n", start, op, arg)
	}
}

// decodeWord folds any EXTENDED_ARG prefix at byte offset pos the same
// way Frame.fetchTier2 does, returning the logical instruction's op and
// arg, the offset its prefix (if any) started at, and the offset just
// past it.
func decodeWord(arena *specialize.Arena, pos int) (op bytecode.Op, arg uint32, start, next int) {
	start = pos
	var hi uint32
	for {
		word := arena.WordAt(pos)
		pos += bytecode.WordSize
		if word.Op == bytecode.EXTENDED_ARG {
			hi = (hi | uint32(word.Arg)) << 8
			continue
		}
		return word.Op, hi | uint32(word.Arg), start, pos
	}
}

// Tier2 writes every BB currently published in info's arena, byte-offset
// addressed, labeling each BB's start the way chriskillpack-bbcdisasm's
// two-pass disassembler labels jump targets before rendering. It
// distinguishes a stub's unresolved form from its Rewrite*-patched form
// purely by the opcode decodeWord reports, so it renders sensibly
// whichever state a concurrently-executing VM has left a given word in:
//
//   - BB_BRANCH (unresolved) vs. BB_JUMP_IF_FLAG_SET/_UNSET (resolved):
//     the stub's own id word only exists in the unresolved form, since
//     RewriteForwardBranch folds the whole two-word slot into the single
//     resolved jump instruction.
//   - BB_JUMP_BACKWARD_LAZY (unresolved) vs. JUMP_BACKWARD_QUICK
//     (resolved): both carry the same three-word shape, an EXTENDED_ARG
//     prefix plus a one-word cache tail that RewriteBackwardJump turns
//     into END_FOR.
//   - BB_TEST_ITER and BB_GUARD_TYPE stub-id words are never rewritten by
//     anything and always render the same way.
func Tier2(w io.Writer, info *specialize.Info) {
	arena := info.Arena()

	starts := make(map[int]uint16, info.Len())
	for i := 0; i < info.Len(); i++ {
		id := uint16(i)
		starts[info.BB(id).Tier2Start] = id
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	pos := 0
	for pos < arena.Len() {
		if id, ok := starts[pos]; ok {
			fmt.Fprintf(tw, "BB %d:\n", id)
		}

		op, arg, start, next := decodeWord(arena, pos)
		fmt.Fprintf(tw, "%4d:\t%s\t%d\n", start, op, arg)
		pos = next

		switch op {
		case bytecode.BB_BRANCH, bytecode.BB_TEST_ITER, bytecode.BB_GUARD_TYPE:
			// Reserved bb_id, never consulted by the dispatch loop
			// (see vm/hooks.go) but printed here as the debugging hint
			// it exists for.
			idWord := arena.WordAt(pos)
			fmt.Fprintf(tw, "%4d:\tbb_id\t%d\n", pos, specialize.StubID(idWord))
			pos += bytecode.WordSize

		case bytecode.BB_JUMP_BACKWARD_LAZY:
			// EmitBackwardJumpStub's cache tail matches JUMP_BACKWARD's
			// own width; bytecode.CacheEntries doesn't know this
			// Tier-2-only opcode, so borrow JUMP_BACKWARD's count.
			pos = printCacheTail(tw, pos, bytecode.CacheEntries(bytecode.JUMP_BACKWARD))

		case bytecode.BINARY_OP_ADD_INT_REST:
			// EmitSpecialized preserves whatever cache tail BINARY_OP
			// itself carried; the specialized opcode has no entry of
			// its own in bytecode's cacheEntries table.
			pos = printCacheTail(tw, pos, bytecode.CacheEntries(bytecode.BINARY_OP))

		case bytecode.POP_JUMP_IF_FALSE, bytecode.POP_JUMP_IF_TRUE, bytecode.COMPARE_OP:
			// COMPARE_OP carries a normal cache tail when passed through
			// generically, but EmitCompareAndBranchStub follows it with
			// {BB_BRANCH, bb_id} instead whenever it terminates a BB, as
			// EmitBranchStub always does for POP_JUMP_IF_*. The cases
			// are indistinguishable by opcode alone, so peek: only skip
			// a cache tail when one is actually there.
			if arena.WordAt(pos).Op != bytecode.BB_BRANCH {
				pos = printCacheTail(tw, pos, bytecode.CacheEntries(op))
			}

		default:
			pos = printCacheTail(tw, pos, bytecode.CacheEntries(op))
		}
	}
}

func printCacheTail(tw *tabwriter.Writer, pos, n int) int {
	for i := 0; i < n; i++ {
		fmt.Fprintf(tw, "%4d:\tcache\t\n", pos)
		pos += bytecode.WordSize
	}
	return pos
}
