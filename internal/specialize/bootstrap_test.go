// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import (
	"testing"

	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/internal/telemetry"
)

// TestBootstrapRejectsForbiddenOpcode is scenario S4 of spec.md §8.
func TestBootstrapRejectsForbiddenOpcode(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.LOAD_FAST, Arg: 0},
		{Op: bytecode.YIELD_VALUE},
		{Op: bytecode.BINARY_OP, Arg: 0},
		{Op: bytecode.NOP},
		{Op: bytecode.RETURN_VALUE},
	}
	counters := telemetry.New()
	info, _, ok := Bootstrap(words, 1, counters)
	if ok || info != nil {
		t.Fatalf("Bootstrap with a forbidden opcode present = (%v, %v), want (nil, false)", info, ok)
	}
}

func TestBootstrapRejectsUninterestingProgram(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.LOAD_FAST, Arg: 0},
		{Op: bytecode.RETURN_VALUE},
	}
	counters := telemetry.New()
	info, _, ok := Bootstrap(words, 1, counters)
	if ok || info != nil {
		t.Fatalf("Bootstrap with no optimizable opcode = (%v, %v), want (nil, false)", info, ok)
	}
}

// TestBootstrapSucceedsStraightLineAdd exercises Bootstrap end to end over
// scenario S1's program, including the Tier-2 entry offset being returned.
func TestBootstrapSucceedsStraightLineAdd(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.RESUME},
		{Op: bytecode.NOP}, // RESUME's cache tail
		{Op: bytecode.LOAD_FAST, Arg: 0},
		{Op: bytecode.LOAD_FAST, Arg: 1},
		{Op: bytecode.BINARY_OP, Arg: 0},
		{Op: bytecode.NOP},
		{Op: bytecode.RETURN_VALUE},
	}
	counters := telemetry.New()
	info, tier2Entry, ok := Bootstrap(words, 2, counters)
	if !ok || info == nil {
		t.Fatalf("Bootstrap = (%v, %v, %v), want success", info, tier2Entry, ok)
	}
	if tier2Entry != 0 {
		t.Fatalf("tier2Entry = %d, want 0 (the first BB's arena offset)", tier2Entry)
	}
	if info.EntryID() != 0 {
		t.Fatalf("EntryID() = %d, want 0", info.EntryID())
	}
	meta := info.BB(info.EntryID())
	if meta.Tier1End != len(words) {
		t.Fatalf("entry BB Tier1End = %d, want %d (RESUME was substituted, not a BB terminator)", meta.Tier1End, len(words))
	}
	got := info.Arena().Words(meta.Tier2Start, meta.Tier2Start+2*bytecode.WordSize)
	if got[0].Op != bytecode.RESUME_QUICK {
		t.Fatalf("word 0 = %+v, want RESUME_QUICK (substituteQuickForms must run before discovery)", got[0])
	}
}

func TestSubstituteQuickFormsRewritesInPlace(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.RESUME},
		{Op: bytecode.JUMP_BACKWARD, Arg: 3},
		{Op: bytecode.LOAD_FAST, Arg: 0},
	}
	substituteQuickForms(words)
	if words[0].Op != bytecode.RESUME_QUICK {
		t.Errorf("word 0 = %v, want RESUME_QUICK", words[0].Op)
	}
	if words[1].Op != bytecode.JUMP_BACKWARD_QUICK || words[1].Arg != 3 {
		t.Errorf("word 1 = %+v, want JUMP_BACKWARD_QUICK/3", words[1])
	}
	if words[2].Op != bytecode.LOAD_FAST {
		t.Errorf("word 2 = %v, must be left alone (no quick form)", words[2].Op)
	}
}
