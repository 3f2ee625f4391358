// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

// Cursor decodes a Word stream left to right, folding any EXTENDED_ARG
// prefix words into the oparg of the instruction they precede. vm's
// fetchTier2 and disasm's Tier2 decoder repeat the same fold for arena
// words. The asymmetry spec.md §9 calls out is why the fold exists at all:
// EXTENDED_ARG is Forbidden in a Tier-1 stream handed to Bootstrap, but
// the Branch Rewriter emits it freely in Tier 2 for large displacements.
// Cursor itself is agnostic to which tier it is reading.
type Cursor struct {
	Words []Word
	Pos   int
}

// NewCursor returns a Cursor starting at word index pos.
func NewCursor(words []Word, pos int) *Cursor {
	return &Cursor{Words: words, Pos: pos}
}

// Done reports whether the cursor has no more words to decode.
func (c *Cursor) Done() bool {
	return c.Pos >= len(c.Words)
}

// Next decodes the instruction at the cursor's current position,
// accumulating any EXTENDED_ARG prefixes, and advances past it. start is
// the word index of the first EXTENDED_ARG consumed (or of op itself, if
// none were present) — BBMetadata and the Jump Target Index key off this
// value, never off the position of the opcode word alone, so that a
// target offset always names the start of a logical instruction.
func (c *Cursor) Next() (op Op, arg uint32, start int, ok bool) {
	if c.Done() {
		return 0, 0, 0, false
	}
	start = c.Pos
	var hi uint32
	for !c.Done() && c.Words[c.Pos].Op == EXTENDED_ARG {
		hi = (hi | uint32(c.Words[c.Pos].Arg)) << 8
		c.Pos++
	}
	if c.Done() {
		return 0, 0, 0, false
	}
	w := c.Words[c.Pos]
	c.Pos++
	return w.Op, hi | uint32(w.Arg), start, true
}

// Peek behaves like Next but does not advance the cursor.
func (c *Cursor) Peek() (op Op, arg uint32, start int, ok bool) {
	save := c.Pos
	op, arg, start, ok = c.Next()
	c.Pos = save
	return
}

// EncodeOparg appends the Word(s) needed to represent arg as the operand
// of op: a single Word if arg fits in a byte, otherwise an EXTENDED_ARG
// Word carrying the high byte followed by op's Word carrying the low
// byte.
func EncodeOparg(op Op, arg uint32) []Word {
	if !NeedsExtendedArg(arg) {
		return []Word{{Op: op, Arg: uint8(arg)}}
	}
	return []Word{
		{Op: EXTENDED_ARG, Arg: uint8(arg >> 8)},
		{Op: op, Arg: uint8(arg)},
	}
}
