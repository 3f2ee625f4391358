// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"

	"github.com/go-interpreter/wagon-tier2/typectx"
)

// MaxVersions is K of spec.md §4.7/§7/scenario S6: the most specialized
// BBs that may begin at the same backward-jump target offset.
const MaxVersions = 5

// linearScanThreshold is the point past which IndexOf switches from a
// linear scan to a binary search, per spec.md §4.7.
const linearScanThreshold = 40

// versionCacheSize bounds the loop-resolution memo (SPEC_FULL.md §4.7).
const versionCacheSize = 256

const versionSentinel = int32(-1)

// JumpIndex is the Jump Target Index of spec.md §3/§4.7: a sorted array
// of backward-jump target offsets, and for each one an up-to-K array of
// specialized BB ids that begin there.
type JumpIndex struct {
	offsets  []int
	versions [][MaxVersions]int32
	cache    *lru.Cache
}

type resolveKey struct {
	sourceOffset int
	fingerprint  string
}

// NewJumpIndex builds the index from the sorted, deduplicated set of
// backward-jump target offsets collected by a single scan of the code
// object at Bootstrap (spec.md §4.7).
func NewJumpIndex(offsets []int) *JumpIndex {
	sort.Ints(offsets)
	deduped := offsets[:0]
	for i, o := range offsets {
		if i == 0 || o != deduped[len(deduped)-1] {
			deduped = append(deduped, o)
		}
	}
	versions := make([][MaxVersions]int32, len(deduped))
	for i := range versions {
		for k := range versions[i] {
			versions[i][k] = versionSentinel
		}
	}
	cache, _ := lru.New(versionCacheSize)
	return &JumpIndex{offsets: deduped, versions: versions, cache: cache}
}

// IndexOf finds the position of tier1Offset in the sorted target array,
// linear-scanning for small indexes and binary-searching past
// linearScanThreshold entries, exactly as spec.md §4.7 prescribes.
func (j *JumpIndex) IndexOf(tier1Offset int) (int, bool) {
	if len(j.offsets) <= linearScanThreshold {
		for i, o := range j.offsets {
			if o == tier1Offset {
				return i, true
			}
		}
		return 0, false
	}
	i := sort.SearchInts(j.offsets, tier1Offset)
	if i < len(j.offsets) && j.offsets[i] == tier1Offset {
		return i, true
	}
	return 0, false
}

// Register appends id to the first free slot of target index i's version
// array, failing with ErrTooManyVersions once all MaxVersions slots are
// filled (scenario S6).
func (j *JumpIndex) Register(i int, id uint16) error {
	for k := 0; k < MaxVersions; k++ {
		if j.versions[i][k] == versionSentinel {
			j.versions[i][k] = int32(id)
			// A new version can be a closer match than a memoized
			// answer, so drop the memo rather than serve a stale pick.
			j.cache.Purge()
			return nil
		}
	}
	return ErrTooManyVersions
}

// Versions returns the densely-packed, non-sentinel BB ids registered at
// target index i (Invariant 3 of spec.md §3).
func (j *JumpIndex) Versions(i int) []uint16 {
	var ids []uint16
	for _, v := range j.versions[i] {
		if v == versionSentinel {
			break
		}
		ids = append(ids, uint16(v))
	}
	return ids
}

func fingerprint(ctx *typectx.Context) string {
	// A cheap, comparable key built from the type identities in the
	// context: good enough for cache keying (a false cache miss merely
	// costs a re-run of the diff heuristic, never a wrong answer — see
	// SPEC_FULL.md §4.7).
	s := make([]byte, 0, (len(ctx.Locals)+len(ctx.Stack))*9)
	for _, t := range ctx.Locals {
		s = fmt.Appendf(s, "%p|", t)
	}
	s = append(s, '#')
	for _, t := range ctx.Stack {
		s = fmt.Appendf(s, "%p|", t)
	}
	return string(s)
}

// Resolve picks the best-matching version registered at target index i
// for the current type context, memoizing the outcome in an LRU cache
// keyed by (source offset, context fingerprint) so a hot loop's
// steady-state back-edge skips the diff scan entirely on repeat visits
// (SPEC_FULL.md §4.7). hit reports whether the memo already had the
// answer; it is purely an observability signal; disabling the cache never
// changes which id is returned for a given (i, current) pair.
func (j *JumpIndex) Resolve(sourceOffset, i int, current *typectx.Context, table *MetaTable) (id uint16, ok bool, hit bool) {
	key := resolveKey{sourceOffset: sourceOffset, fingerprint: fingerprint(current)}
	if v, found := j.cache.Get(key); found {
		return v.(uint16), true, true
	}

	ids := j.Versions(i)
	if len(ids) == 0 {
		return 0, false, false
	}
	best := ids[0]
	bestDiff := table.Get(best).Context.Diff(current)
	for _, cand := range ids[1:] {
		d := table.Get(cand).Context.Diff(current)
		if d < bestDiff {
			bestDiff = d
			best = cand
		}
	}
	j.cache.Add(key, best)
	return best, true, false
}
