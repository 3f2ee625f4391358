// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

import (
	"testing"

	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/internal/telemetry"
)

// TestFrameRunGenericAddition exercises Testable Property 1 (spec.md
// §7): a program run once cold (Tier 1 throughout the first RESUME, then
// straight into Tier 2) and once warm (a fresh Frame over the same
// CodeObject, hitting RESUME_QUICK) must produce the same result.
func TestFrameRunGenericAddition(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.RESUME},           // idx0
		{Op: bytecode.NOP},              // idx1 cache
		{Op: bytecode.LOAD_FAST, Arg: 0},// idx2
		{Op: bytecode.LOAD_FAST, Arg: 1},// idx3
		{Op: bytecode.BINARY_OP, Arg: 0},// idx4
		{Op: bytecode.NOP},              // idx5 cache
		{Op: bytecode.RETURN_VALUE},     // idx6
	}
	co := NewCodeObject(words, 2, telemetry.New())

	f1 := NewFrame(co, Int(3), Int(4))
	if got := f1.Run(); got.I != 7 {
		t.Fatalf("cold run result = %d, want 7", got.I)
	}
	if co.Info() == nil {
		t.Fatalf("Info() is nil after a successful Bootstrap")
	}

	// words[0] was rewritten to RESUME_QUICK in place by Bootstrap; a
	// second frame over the same code object must take the
	// already-warm path straight into the entry BB.
	f2 := NewFrame(co, Int(10), Int(5))
	if got := f2.Run(); got.I != 15 {
		t.Fatalf("warm run result = %d, want 15", got.I)
	}
	if f2.Tier != Tier2 {
		t.Fatalf("warm run ended in Tier %v, want Tier2", f2.Tier)
	}
}

// TestFrameSpecializesSecondBinaryOp builds a program whose first add is
// already the inline-cache-specialized BINARY_OP_ADD_INT_REST form (as
// if Tier 1 had already specialized it), priming a local that is then
// fed into a second, plain BINARY_OP. By the time the Emitter reaches
// the second add, the type context knows both operands are Int, so
// Decide must return DecisionSpecialized for it too — verified directly
// against the emitted Tier-2 words, not just the runtime result.
func TestFrameSpecializesSecondBinaryOp(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.RESUME},                        // idx0
		{Op: bytecode.NOP},                            // idx1 cache
		{Op: bytecode.LOAD_FAST, Arg: 0},               // idx2
		{Op: bytecode.LOAD_FAST, Arg: 0},               // idx3
		{Op: bytecode.BINARY_OP_ADD_INT_REST, Arg: 0},  // idx4
		{Op: bytecode.NOP},                             // idx5 cache
		{Op: bytecode.STORE_FAST, Arg: 2},              // idx6: tmp = a+a
		{Op: bytecode.LOAD_FAST, Arg: 2},               // idx7
		{Op: bytecode.LOAD_FAST, Arg: 2},               // idx8
		{Op: bytecode.BINARY_OP, Arg: 0},                // idx9: tmp+tmp
		{Op: bytecode.NOP},                              // idx10 cache
		{Op: bytecode.RETURN_VALUE},                      // idx11
	}
	co := NewCodeObject(words, 3, telemetry.New())
	f := NewFrame(co, Int(3))
	if got := f.Run(); got.I != 12 {
		t.Fatalf("result = %d, want 12 (a=3: tmp=6, tmp+tmp=12)", got.I)
	}

	info := co.Info()
	entry := info.BB(info.EntryID())
	arena := info.Arena()

	// Entry BB's emitted words: RESUME_QUICK,cache (0,1); LOAD_FAST a
	// (2); LOAD_FAST a (3); BINARY_OP_ADD_INT_REST,cache (4,5);
	// STORE_FAST (6); LOAD_FAST tmp (7); LOAD_FAST tmp (8); the second
	// add (9); its cache (10).
	first := arena.WordAt(entry.Tier2Start + 4*bytecode.WordSize)
	if first.Op != bytecode.BINARY_OP_ADD_INT_REST {
		t.Fatalf("word 4 = %v, want BINARY_OP_ADD_INT_REST", first.Op)
	}
	second := arena.WordAt(entry.Tier2Start + 9*bytecode.WordSize)
	if second.Op != bytecode.BINARY_OP_ADD_INT_REST {
		t.Fatalf("word 9 = %v, want BINARY_OP_ADD_INT_REST (second add should have specialized too)", second.Op)
	}
}

// TestFrameGuardedSpecializationPasses exercises the BB_GUARD_TYPE pass
// path (stepGuard): tmp is ctx-known Int (primed the same way as
// above), but the second operand, parameter b, is never stored within
// this BB so the type context never learns its type even though it is
// concretely an Int at runtime. Decide must report DecisionGuarded for
// the second add, and the runtime guard check — seeing two real Int
// operands — must pass, perform the add itself, and resolve into the
// guard-passed successor BB.
func TestFrameGuardedSpecializationPasses(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.RESUME},                        // idx0
		{Op: bytecode.NOP},                            // idx1 cache
		{Op: bytecode.LOAD_FAST, Arg: 0},               // idx2: a
		{Op: bytecode.LOAD_FAST, Arg: 0},               // idx3: a
		{Op: bytecode.BINARY_OP_ADD_INT_REST, Arg: 0},  // idx4: a+a
		{Op: bytecode.NOP},                             // idx5 cache
		{Op: bytecode.STORE_FAST, Arg: 2},              // idx6: tmp = a+a
		{Op: bytecode.LOAD_FAST, Arg: 2},               // idx7: tmp (ctx-known Int)
		{Op: bytecode.LOAD_FAST, Arg: 1},               // idx8: b (ctx-unknown)
		{Op: bytecode.BINARY_OP, Arg: 0},                // idx9: tmp+b, guarded
		{Op: bytecode.NOP},                              // idx10 cache
		{Op: bytecode.RETURN_VALUE},                      // idx11
	}
	co := NewCodeObject(words, 3, telemetry.New())
	f := NewFrame(co, Int(5), Int(2))
	got := f.Run()
	if got.I != 12 {
		t.Fatalf("result = %d, want 12 (a=5: tmp=10, tmp+b=10+2=12)", got.I)
	}

	info := co.Info()
	entry := info.BB(info.EntryID())
	guard := info.Arena().WordAt(entry.Tier2Start + 9*bytecode.WordSize)
	if guard.Op != bytecode.BB_GUARD_TYPE {
		t.Fatalf("word 9 = %v, want BB_GUARD_TYPE", guard.Op)
	}
	if entry.Tier1End != 11 {
		t.Fatalf("entry Tier1End = %d, want 11 (just past the guarded BINARY_OP's cache tail)", entry.Tier1End)
	}

	if f.Tier != Tier2 {
		t.Fatalf("frame ended in Tier %v, want Tier2 (the guard must have passed, not deoptimized)", f.Tier)
	}
}
