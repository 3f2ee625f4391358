// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import "github.com/go-interpreter/wagon-tier2/typectx"

// MaxBBsPerCodeObject bounds how many BBs a single code object may
// accumulate before the specializer stops growing its arena further and
// leaves the remainder on Tier 1 permanently — the supplemented bailout
// of SPEC_FULL.md, closing the loop on spec.md §7's "no retries" note
// with an explicit, testable cap rather than only "Tier2Info unset".
const MaxBBsPerCodeObject = 64

// BBMeta is the BBMetadata of spec.md §3: id, Tier-2 start offset,
// Tier-1 resumption offset, and the owning type context.
type BBMeta struct {
	ID         uint16
	Tier2Start int // byte offset into the owning Arena
	Tier1End   int // Tier-1 word index past the last instruction consumed
	Context    *typectx.Context

	// BranchArg is the original Tier-1 oparg of the branch instruction
	// this BB ends with (POP_JUMP_IF_FALSE/TRUE's displacement, or
	// FOR_ITER's), zero for a BB that doesn't end in a branch stub. The
	// `vm` package's GenerateNextBB hook uses it as the "taken" jumpBy
	// (Tier1End + BranchArg), so the VM never has to re-decode Tier-1
	// bytes to recover a displacement Discovery already had in hand.
	BranchArg uint32
}

// MetaTable is the grow-by-doubling BB Metadata Table of spec.md §3,
// modeled on exec/vm.go's compiledFuncs slice and
// exec/internal/compile's BranchTable: an append-only Go slice that
// callers address by dense integer id, never by pointer into the slice
// (the slice itself may be reallocated by append; only ids are held
// across calls).
type MetaTable struct {
	entries []BBMeta
}

// NewMetaTable returns an empty table.
func NewMetaTable() *MetaTable {
	return &MetaTable{}
}

// Len returns the number of published entries.
func (t *MetaTable) Len() int { return len(t.entries) }

// NextID returns the id that would be assigned to the next call to
// Publish. The Emitter reads this to stamp a branch stub's cache with
// "the id that will be assigned to the next BB created by this code
// object" (spec.md §4.5) before that BB actually exists.
func (t *MetaTable) NextID() uint16 { return uint16(len(t.entries)) }

// Publish appends a new entry and returns it. Assigning and appending in
// one call is what resolves the branch-stub-id-race Open Question of
// spec.md §9: a reader of NextID and a writer of Publish must both hold
// the owning Info's mutex, so the id a stub recorded is always either not
// yet published (stub still a stub) or published as exactly that id —
// never published under a different id.
func (t *MetaTable) Publish(tier2Start, tier1End int, ctx *typectx.Context, branchArg uint32) *BBMeta {
	id := t.NextID()
	t.entries = append(t.entries, BBMeta{
		ID:         id,
		Tier2Start: tier2Start,
		Tier1End:   tier1End,
		Context:    ctx,
		BranchArg:  branchArg,
	})
	return &t.entries[id]
}

// Get returns the entry for id. The caller must have already established
// id < Len(); Get does not bounds-check, matching the teacher's
// compiledFuncs[fnIndex]-style direct indexing once a caller has
// validated the index.
func (t *MetaTable) Get(id uint16) *BBMeta {
	return &t.entries[id]
}
