// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytecode

import "testing"

func TestCursorPlainOparg(t *testing.T) {
	words := []Word{{Op: LOAD_FAST, Arg: 3}, {Op: RETURN_VALUE}}
	c := NewCursor(words, 0)

	op, arg, start, ok := c.Next()
	if !ok || op != LOAD_FAST || arg != 3 || start != 0 {
		t.Fatalf("Next() = %v, %v, %v, %v", op, arg, start, ok)
	}
	op, _, start, ok = c.Next()
	if !ok || op != RETURN_VALUE || start != 1 {
		t.Fatalf("second Next() = %v, %v, %v", op, start, ok)
	}
	if !c.Done() {
		t.Fatal("expected cursor to be done")
	}
}

func TestCursorExtendedArg(t *testing.T) {
	// Represents oparg 0x1234 split across EXTENDED_ARG(0x12) + JUMP_FORWARD(0x34).
	words := EncodeOparg(JUMP_FORWARD, 0x1234)
	if len(words) != 2 {
		t.Fatalf("EncodeOparg produced %d words, want 2", len(words))
	}
	c := NewCursor(words, 0)
	op, arg, start, ok := c.Next()
	if !ok || op != JUMP_FORWARD || arg != 0x1234 || start != 0 {
		t.Fatalf("Next() = %v, %#x, %v, %v", op, arg, start, ok)
	}
	if !c.Done() {
		t.Fatal("expected cursor to be done after folding EXTENDED_ARG")
	}
}

func TestEncodeOpargSmall(t *testing.T) {
	words := EncodeOparg(LOAD_FAST, 7)
	if len(words) != 1 || words[0].Arg != 7 {
		t.Fatalf("EncodeOparg(small) = %+v", words)
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	words := []Word{{Op: LOAD_FAST, Arg: 1}}
	c := NewCursor(words, 0)
	c.Peek()
	if c.Pos != 0 {
		t.Fatalf("Peek advanced cursor to %d", c.Pos)
	}
}
