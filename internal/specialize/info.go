// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import (
	"sync"

	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/internal/telemetry"
	"github.com/go-interpreter/wagon-tier2/typectx"
)

// Info is Tier2Info of spec.md §3/§5: the per-code-object aggregate a
// host frame holds onto once Bootstrap succeeds. Every field it guards is
// reached exclusively through its methods, each of which except EntryID
// and Arena takes mu for its whole body (entryID never changes after
// construction, and Arena hands out the arena for lock-free reads) —
// spec.md §5's "single per-code-object mutex... held across
// arena growth, metadata append, jump-version insertion, and branch-stub
// rewrite".
type Info struct {
	mu sync.Mutex

	words []bytecode.Word // the Tier-1 source this Info was bootstrapped from
	arena *Arena
	table *MetaTable
	index *JumpIndex

	entryID  uint16
	disabled bool

	counters *telemetry.Counters
}

func newInfo(words []bytecode.Word, arena *Arena, table *MetaTable, index *JumpIndex, entryID uint16, counters *telemetry.Counters) *Info {
	return &Info{
		words:    words,
		arena:    arena,
		table:    table,
		index:    index,
		entryID:  entryID,
		counters: counters,
	}
}

// EntryID returns the id of the BB Bootstrap discovered first.
func (info *Info) EntryID() uint16 { return info.entryID }

// Disabled reports whether specialization has been permanently switched
// off for this code object (spec.md §5: once abandoned mid-flight, a
// code object never re-enters Tier 2).
func (info *Info) Disabled() bool {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.disabled
}

// Disable permanently switches off specialization for this code object.
// Nothing in this module calls it outside tests: the vm package only
// reads Disabled, and a hook that fails mid-run falls back to Tier 1
// without setting it.
func (info *Info) Disable() {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.disabled = true
}

// BB returns the published metadata for id. The caller must already know
// id < Len() (e.g. from a value this Info itself handed back earlier).
func (info *Info) BB(id uint16) *BBMeta {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.table.Get(id)
}

// BBAt returns the BB whose Tier2Start equals tier2Offset, or nil if
// none does. The vm package uses this to recover "which BB did I just
// land in" after GenerateNextBB/LocateBackwardBB hand back a bare arena
// offset (spec.md §6's hook signatures return an offset, not an id).
func (info *Info) BBAt(tier2Offset int) *BBMeta {
	info.mu.Lock()
	defer info.mu.Unlock()
	for i := uint16(0); i < uint16(info.table.Len()); i++ {
		if m := info.table.Get(i); m.Tier2Start == tier2Offset {
			return m
		}
	}
	return nil
}

// Len returns the number of BBs published so far, for disasm's full-table
// walk (spec.md §3's metadata table is append-only and densely indexed by
// id, so [0, Len()) always names every live BB).
func (info *Info) Len() int {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.table.Len()
}

// Arena exposes the owning BB Scratch Arena for disassembly and for the
// VM's Tier-2 fetch-decode-execute loop, which reads published words by
// offset without needing Info's mutex (spec.md §5: "emitted-BB execution
// needs no synchronization beyond the one-shot aligned word publish").
func (info *Info) Arena() *Arena { return info.arena }

// GenerateBB is the mutex-protected core of the VM's GenerateNextBB hook
// (spec.md §6): it runs BB Discovery starting at tier1Start under the
// owning lock, so a branch stub's "next id" prediction and the id
// actually assigned by Publish can never interleave with another
// goroutine's BBDiscovery call for the same code object (spec.md §9's
// branch-stub-id-race resolution). On success it returns the metadata of
// the BB generated; the caller (vm.GenerateNextBB) reads Tier2Start out
// of it to resume Tier-2 execution.
func (info *Info) GenerateBB(tier1Start int, incoming *typectx.Context) (*BBMeta, error) {
	info.mu.Lock()
	defer info.mu.Unlock()
	meta, err := BBDiscovery(info.words, tier1Start, incoming, info.arena, info.table, info.index)
	if err != nil {
		return nil, err
	}
	info.counters.RecordBBEmitted()
	return meta, nil
}

// LocateBackwardBB is the mutex-protected core of the VM's
// LocateBackwardBB hook (spec.md §6/§4.7): given the Tier-1 offset a
// backward jump targets and the current type context, it returns an
// already-specialized version of that loop header if the Jump Target
// Index's nearest-match selection finds a usable one, generating and
// registering a fresh version via GenerateBB otherwise (scenario S6: once
// MaxVersions versions already exist, this returns ErrTooManyVersions and
// the VM falls back to Tier 1 for that back-edge permanently).
func (info *Info) LocateBackwardBB(tier1Target int, current *typectx.Context) (meta *BBMeta, err error) {
	info.mu.Lock()
	defer info.mu.Unlock()

	i, known := info.index.IndexOf(tier1Target)
	if !known {
		// Not a registered loop header at all: Bootstrap's single
		// backward-jump scan missed it, which only happens for a
		// malformed stream. Treat as an ordinary discovery start.
		return info.generateAndRegisterLocked(tier1Target, current, -1)
	}

	// Resolve's nearest-match selection (SPEC_FULL.md §4.7) always
	// succeeds once at least one version is registered, even a poor
	// match; reuse it only when the match is exact, so that distinct
	// incoming type contexts still earn their own version up to
	// MaxVersions (scenario S6) instead of silently sharing one.
	if id, ok, hit := info.index.Resolve(tier1Target, i, current, info.table); ok {
		if info.table.Get(id).Context.Diff(current) == 0 {
			if hit {
				info.counters.LoopCacheHit()
			} else {
				info.counters.LoopCacheMiss()
			}
			return info.table.Get(id), nil
		}
	}

	return info.generateAndRegisterLocked(tier1Target, current, i)
}

// generateAndRegisterLocked runs discovery for a fresh version of the
// loop header at Tier-1 offset tier1Start and registers it in the Jump
// Target Index slot atTarget (already resolved by the caller; -1 when
// tier1Start is not a registered loop header). Must be called with mu held.
func (info *Info) generateAndRegisterLocked(tier1Start int, incoming *typectx.Context, atTarget int) (*BBMeta, error) {
	meta, nextStart, split, err := discoverOneBB(info.words, tier1Start, incoming, info.arena, info.table, info.index, atTarget)
	if err != nil {
		return nil, err
	}
	if split {
		// A fall-through into a second registered target mid-scan: keep
		// discovering until a BB actually starting at tier1Start (or
		// falling through past it) is produced. BBDiscovery's loop
		// implements exactly this; reuse it rather than duplicating the
		// loop here.
		return BBDiscovery(info.words, nextStart, meta.Context, info.arena, info.table, info.index)
	}
	info.counters.RecordBBEmitted()
	return meta, nil
}
