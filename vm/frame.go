// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vm is the host collaborator of spec.md §6: the Tier-1 dispatch
// loop, the warm-up trigger, and the external hooks wiring
// internal/specialize into a running program. Grounded on exec/vm.go's
// VM/context shape — a single dispatch loop reading one instruction at a
// time off a program counter, with locals and an operand stack as plain
// slices — generalized to a second, type-specialized instruction stream
// the same loop can switch onto mid-function.
package vm

import (
	"sync"

	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/internal/specialize"
	"github.com/go-interpreter/wagon-tier2/internal/telemetry"
	"github.com/go-interpreter/wagon-tier2/typectx"
	"github.com/go-interpreter/wagon-tier2/typesys"
)

// Value is one operand-stack or local-slot value. It stands in for
// whatever boxed/tagged representation a real host uses; this toy VM
// only needs enough of one to drive BINARY_OP/COMPARE_OP/FOR_ITER far
// enough to exercise the specializer end to end (Testable Property 1),
// so it carries a single int64 payload rather than a real object model.
type Value struct {
	Type *typesys.Type
	I    int64
}

// Int returns a known-int Value.
func Int(i int64) Value { return Value{Type: typesys.Int, I: i} }

// Tier names which instruction stream a Frame is currently executing.
type Tier int

const (
	Tier1 Tier = iota
	Tier2
)

func (t Tier) String() string {
	if t == Tier2 {
		return "tier2"
	}
	return "tier1"
}

// CodeObject is one compiled unit: its Tier-1 word stream, plus whatever
// Tier-2 state Warmup has produced for it, if any. Grounded on
// exec.compiledFunction (exec/vm.go), generalized with a
// *specialize.Info handle in place of a flat native-code buffer.
type CodeObject struct {
	Words   []bytecode.Word
	NLocals int

	Counters *telemetry.Counters

	mu           sync.Mutex
	bootstrapped bool
	info         *specialize.Info
}

// NewCodeObject wraps a Tier-1 word stream for execution. words is
// retained, not copied: Bootstrap's quick-form substitution (spec.md
// §4.8) mutates it in place the first time the code object warms up.
func NewCodeObject(words []bytecode.Word, nlocals int, counters *telemetry.Counters) *CodeObject {
	return &CodeObject{Words: words, NLocals: nlocals, Counters: counters}
}

// Info returns the code object's Tier2Info, or nil if it has never
// warmed up (or warm-up failed, or Tier 2 was later disabled).
func (co *CodeObject) Info() *specialize.Info {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.info
}

// Frame is one activation of a CodeObject, grounded on exec.context
// (exec/vm.go) — generalized from a single flat pc into a (Tier, Pos)
// pair, since Pos's unit differs by tier: a Tier-1 Pos is a word index
// into Code.Words (matching bytecode.Cursor's own indexing), a Tier-2
// Pos is a byte offset into Code.Info().Arena() (matching BBMeta.
// Tier2Start's unit).
type Frame struct {
	Code   *CodeObject
	Locals []Value
	Stack  []Value

	Tier Tier
	Pos  int

	// CurrentBB is the id of the BB Pos currently falls within, valid
	// only while Tier == Tier2; the GenerateNextBB/LocateBackwardBB hooks
	// use it as the stub's "owning BB" (spec.md §6).
	CurrentBB uint16

	// pendingFlag is the most recently computed branch condition (from
	// COMPARE_OP, POP_JUMP_IF_*, or the FOR_ITER has-next check),
	// consumed by the BB_BRANCH stub that follows it in a Tier-2 stream
	// (spec.md §4.5: the preserved test opcode no longer has a usable
	// Tier-2-space target of its own, so it communicates its outcome to
	// the stub through the frame instead of jumping directly).
	pendingFlag bool

	done   bool
	result Value
}

// NewFrame starts a fresh activation of co, with its first len(args)
// locals set from args and the rest zero-valued, at the start of its
// Tier-1 stream.
func NewFrame(co *CodeObject, args ...Value) *Frame {
	locals := make([]Value, co.NLocals)
	copy(locals, args)
	return &Frame{Code: co, Locals: locals, Tier: Tier1, Pos: 0}
}

func (f *Frame) push(v Value) { f.Stack = append(f.Stack, v) }

func (f *Frame) pop() Value {
	v := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return v
}

// snapshotContext builds the abstract TypeContext for the frame's
// current concrete state (spec.md §3/§4.2): the bridge between this
// package's tagged runtime values and internal/specialize's
// type-identity-only view. Every call into GenerateBB/LocateBackwardBB
// needs one of these; it is built fresh from whatever the frame actually
// holds at the moment of the call, since the VM only ever needs it at a
// BB boundary (warm-up, first-taken branch, first-taken backward edge),
// never mid-BB.
func (f *Frame) snapshotContext() *typectx.Context {
	ctx := typectx.New(len(f.Locals))
	for i, v := range f.Locals {
		ctx.StoreLocal(i, v.Type)
	}
	for _, v := range f.Stack {
		ctx.Push(v.Type)
	}
	return ctx
}

// Run drives the frame to completion and returns its return value,
// dispatching one instruction at a time from whichever tier f.Tier
// currently names — exec.(*VM).execCode's loop (exec/vm.go),
// generalized to two instruction streams instead of one.
func (f *Frame) Run() Value {
	for !f.done {
		f.step()
	}
	return f.result
}

// fetchTier1 decodes the next Tier-1 instruction and advances Pos past
// its cache tail, landing on the "afterCache" position BBDiscovery's
// erasure and branch-stub arithmetic also uses as its reference point
// (internal/specialize/discovery.go), so the same displacement a branch
// instruction carries means the same thing to both this loop and the
// specializer.
func (f *Frame) fetchTier1() (op bytecode.Op, arg uint32, ok bool) {
	cur := bytecode.NewCursor(f.Code.Words, f.Pos)
	op, arg, _, ok = cur.Next()
	if !ok {
		return 0, 0, false
	}
	f.Pos = cur.Pos + bytecode.CacheEntries(op)
	return op, arg, true
}

// fetchTier2 decodes the next Tier-2 instruction directly out of the
// arena, folding any EXTENDED_ARG prefix exactly as bytecode.Cursor does
// for a Tier-1 stream (spec.md §9: Tier 2 is the one place EXTENDED_ARG
// legitimately precedes another instruction). start is the byte offset
// the fold began at — the Branch Rewriter's stubOffset convention
// (internal/specialize/rewrite.go) — which the caller needs when a fetch
// lands on an unresolved stub.
func (f *Frame) fetchTier2() (op bytecode.Op, arg uint32, start int) {
	arena := f.Code.Info().Arena()
	start = f.Pos
	var hi uint32
	for {
		w := arena.WordAt(f.Pos)
		f.Pos += bytecode.WordSize
		if w.Op == bytecode.EXTENDED_ARG {
			hi = (hi | uint32(w.Arg)) << 8
			continue
		}
		return w.Op, hi | uint32(w.Arg), start
	}
}

// enterTier2At switches the frame onto the Tier-2 stream at a byte
// offset a hook just returned, recovering the owning BB id via
// Info.BBAt so CurrentBB stays valid for whatever stub is reached next.
func (f *Frame) enterTier2At(offset int) {
	f.Tier = Tier2
	f.Pos = offset
	if meta := f.Code.Info().BBAt(offset); meta != nil {
		f.CurrentBB = meta.ID
	}
}

// deoptToTier1 drops the frame back to the generic instruction stream at
// a Tier-1 word index a hook reported as its fallback, per spec.md §6's
// "always a Tier-1 offset to resume at on failure" contract. bbID is the
// BB the frame fell back out of, recorded alongside reason so an operator
// can see which BBs are actually taking the fallback path (SUPPLEMENTED
// FEATURES #2 of SPEC_FULL.md).
func (f *Frame) deoptToTier1(tier1Pos int, reason string, bbID uint16) {
	f.Tier = Tier1
	f.Pos = tier1Pos
	f.Code.Counters.RecordFallback(reason, bbID)
}

// doForIter implements this toy VM's iterator protocol stand-in, shared
// between Tier-1 FOR_ITER and Tier-2 BB_TEST_ITER so both tiers observe
// identical has-next decisions (Testable Property 1): the top of stack
// is treated as a remaining-iterations counter. A real host's FOR_ITER
// drives an actual iterator object; this package exists to exercise the
// specializer, not to implement one, so a plain counter is enough to
// make a loop genuinely run and terminate.
func (f *Frame) doForIter() bool {
	i := len(f.Stack) - 1
	if f.Stack[i].I <= 0 {
		f.Stack = f.Stack[:i]
		return false
	}
	f.Stack[i].I--
	return true
}
