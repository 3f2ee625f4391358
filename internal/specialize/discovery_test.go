// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import (
	"testing"

	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/typectx"
	"github.com/go-interpreter/wagon-tier2/typesys"
)

func newTestArena(t *testing.T) *Arena {
	t.Helper()
	a, err := NewArena(64)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// TestBBDiscoveryStraightLineAdd is scenario S1 of spec.md §8.
func TestBBDiscoveryStraightLineAdd(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.LOAD_FAST, Arg: 0},
		{Op: bytecode.LOAD_FAST, Arg: 1},
		{Op: bytecode.BINARY_OP, Arg: 0},
		{Op: bytecode.NOP}, // BINARY_OP's cache tail
		{Op: bytecode.RETURN_VALUE},
	}
	ctx := typectx.New(2)
	ctx.StoreLocal(0, typesys.Int)
	ctx.StoreLocal(1, typesys.Int)

	arena := newTestArena(t)
	table := NewMetaTable()
	index := NewJumpIndex(nil)

	meta, err := BBDiscovery(words, 0, ctx, arena, table, index)
	if err != nil {
		t.Fatalf("BBDiscovery: %v", err)
	}
	if meta.Tier1End != len(words) {
		t.Fatalf("Tier1End = %d, want %d", meta.Tier1End, len(words))
	}
	if table.Len() != 1 {
		t.Fatalf("table.Len() = %d, want 1", table.Len())
	}

	got := arena.Words(meta.Tier2Start, meta.Tier2Start+len(words)*bytecode.WordSize)
	want := []bytecode.Word{
		{Op: bytecode.LOAD_FAST, Arg: 0},
		{Op: bytecode.LOAD_FAST, Arg: 1},
		{Op: bytecode.BINARY_OP_ADD_INT_REST, Arg: 0},
		{Op: bytecode.NOP},
		{Op: bytecode.RETURN_VALUE},
	}
	if len(got) != len(want) {
		t.Fatalf("emitted %d words, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// TestBBDiscoveryForwardJumpErasure is scenario S2 / Testable Property 6.
func TestBBDiscoveryForwardJumpErasure(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.LOAD_CONST, Arg: 0},
		{Op: bytecode.JUMP_FORWARD, Arg: 1}, // skips exactly the next word
		{Op: bytecode.LOAD_CONST, Arg: 1},
		{Op: bytecode.RETURN_VALUE},
	}
	arena := newTestArena(t)
	table := NewMetaTable()
	index := NewJumpIndex(nil)

	meta, err := BBDiscovery(words, 0, typectx.New(0), arena, table, index)
	if err != nil {
		t.Fatalf("BBDiscovery: %v", err)
	}
	if meta.Tier1End != len(words) {
		t.Fatalf("Tier1End = %d, want %d", meta.Tier1End, len(words))
	}

	got := arena.Words(meta.Tier2Start, meta.Tier2Start+2*bytecode.WordSize)
	want := []bytecode.Word{
		{Op: bytecode.LOAD_CONST, Arg: 0},
		{Op: bytecode.RETURN_VALUE},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	for _, w := range got {
		if w.Op == bytecode.JUMP_FORWARD {
			t.Fatalf("emitted BB retains JUMP_FORWARD: %+v", got)
		}
	}
}

func TestScanBackwardJumpTargets(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.NOP},                             // loop header, idx 0
		{Op: bytecode.JUMP_BACKWARD_QUICK, Arg: 2},      // idx 1
		{Op: bytecode.NOP},                              // cache tail, idx 2
	}
	targets := ScanBackwardJumpTargets(words)
	if len(targets) != 1 || targets[0] != 0 {
		t.Fatalf("ScanBackwardJumpTargets = %v, want [0]", targets)
	}
}

func TestBBDiscoveryBackwardJumpStub(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.NOP},
		{Op: bytecode.JUMP_BACKWARD_QUICK, Arg: 5},
		{Op: bytecode.NOP, Arg: 9}, // cache tail, must survive verbatim
	}
	arena := newTestArena(t)
	table := NewMetaTable()
	index := NewJumpIndex(nil)

	meta, err := BBDiscovery(words, 0, typectx.New(0), arena, table, index)
	if err != nil {
		t.Fatalf("BBDiscovery: %v", err)
	}
	if meta.Tier1End != len(words) {
		t.Fatalf("Tier1End = %d, want %d", meta.Tier1End, len(words))
	}
	got := arena.Words(meta.Tier2Start, meta.Tier2Start+4*bytecode.WordSize)
	if got[0].Op != bytecode.NOP {
		t.Fatalf("word 0 = %+v, want NOP passthrough", got[0])
	}
	if got[1].Op != bytecode.EXTENDED_ARG || got[2].Op != bytecode.BB_JUMP_BACKWARD_LAZY || got[2].Arg != 5 {
		t.Fatalf("backward jump stub = %+v", got[1:3])
	}
	if got[3] != (bytecode.Word{Op: bytecode.NOP, Arg: 9}) {
		t.Fatalf("cache tail not preserved: %+v", got[3])
	}
}

// TestBBDiscoveryLoopHeaderFallThroughSplits exercises spec.md §4.4's
// two-BBs-per-call case: discovery starts before a registered
// backward-jump target and falls through into it.
func TestBBDiscoveryLoopHeaderFallThroughSplits(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.LOAD_FAST, Arg: 0}, // idx 0
		{Op: bytecode.NOP},               // idx 1 -- the loop header
		{Op: bytecode.RETURN_VALUE},      // idx 2
	}
	arena := newTestArena(t)
	table := NewMetaTable()
	index := NewJumpIndex([]int{1})

	ctx := typectx.New(1)
	meta, err := BBDiscovery(words, 0, ctx, arena, table, index)
	if err != nil {
		t.Fatalf("BBDiscovery: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("table.Len() = %d, want 2 (one BB per side of the split)", table.Len())
	}
	first := table.Get(0)
	if first.Tier1End != 1 {
		t.Fatalf("first BB Tier1End = %d, want 1", first.Tier1End)
	}
	if meta.ID != 1 || meta.Tier1End != len(words) {
		t.Fatalf("returned BB = %+v, want the second BB ending at %d", meta, len(words))
	}
	versions := index.Versions(0)
	if len(versions) != 1 || versions[0] != 1 {
		t.Fatalf("index.Versions(0) = %v, want [1]", versions)
	}
}

func TestBBDiscoveryGuardedSpecializationTerminatesBB(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.LOAD_FAST, Arg: 0},
		{Op: bytecode.LOAD_FAST, Arg: 1},
		{Op: bytecode.BINARY_OP, Arg: 0},
		{Op: bytecode.NOP},
		{Op: bytecode.RETURN_VALUE}, // never reached in this BB; guard terminates first
	}
	ctx := typectx.New(2)
	ctx.StoreLocal(0, typesys.Int) // only one operand's type known

	arena := newTestArena(t)
	table := NewMetaTable()
	index := NewJumpIndex(nil)

	meta, err := BBDiscovery(words, 0, ctx, arena, table, index)
	if err != nil {
		t.Fatalf("BBDiscovery: %v", err)
	}
	// tier1End must stop right after BINARY_OP's cache tail, not reach
	// RETURN_VALUE: the guard is the BB terminator.
	if meta.Tier1End != 4 {
		t.Fatalf("Tier1End = %d, want 4 (guard terminates before RETURN_VALUE)", meta.Tier1End)
	}
	got := arena.Words(meta.Tier2Start, meta.Tier2Start+4*bytecode.WordSize)
	if got[2].Op != bytecode.BB_GUARD_TYPE || typesys.ByID(got[2].Arg) != typesys.Int {
		t.Fatalf("word 2 = %+v, want BB_GUARD_TYPE/Int", got[2])
	}
}

func TestBBDiscoveryConditionalBranchStub(t *testing.T) {
	words := []bytecode.Word{
		{Op: bytecode.LOAD_FAST, Arg: 0},
		{Op: bytecode.POP_JUMP_IF_FALSE, Arg: 3},
		{Op: bytecode.NOP}, // cache tail
	}
	arena := newTestArena(t)
	table := NewMetaTable()
	index := NewJumpIndex(nil)

	meta, err := BBDiscovery(words, 0, typectx.New(1), arena, table, index)
	if err != nil {
		t.Fatalf("BBDiscovery: %v", err)
	}
	got := arena.Words(meta.Tier2Start, meta.Tier2Start+4*bytecode.WordSize)
	if got[1].Op != bytecode.POP_JUMP_IF_FALSE || got[1].Arg != 3 {
		t.Fatalf("test opcode not preserved: %+v", got[1])
	}
	if got[2].Op != bytecode.BB_BRANCH {
		t.Fatalf("word 2 = %+v, want BB_BRANCH", got[2])
	}
	if StubID(got[3]) != 0 {
		t.Fatalf("taken id = %d, want 0 (this is the only BB so far)", StubID(got[3]))
	}
}

func TestBBDiscoveryMaxBBsBailout(t *testing.T) {
	words := []bytecode.Word{{Op: bytecode.RETURN_VALUE}}
	arena := newTestArena(t)
	table := NewMetaTable()
	index := NewJumpIndex(nil)

	for i := 0; i < MaxBBsPerCodeObject; i++ {
		table.Publish(0, 0, typectx.New(0), 0)
	}
	if _, err := BBDiscovery(words, 0, typectx.New(0), arena, table, index); err != ErrTooManyBBs {
		t.Fatalf("BBDiscovery at cap = %v, want ErrTooManyBBs", err)
	}
}
