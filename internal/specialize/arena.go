// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import (
	"sync/atomic"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/go-interpreter/wagon-tier2/bytecode"
)

// minArenaSize is the smallest mapping Arena will ever allocate, so that
// a tiny code object doesn't force a grow on its second BB.
const minArenaSize = 4096

// arenaInitialMultiplier sizes a fresh arena at roughly 3x the Tier-1
// byte length (spec.md §4.3), since specialization can expand a branch
// into a stub plus cache tail.
const arenaInitialMultiplier = 3

// Arena is the BB Scratch Arena of spec.md §3/§4.3: a single, append-only,
// growable buffer of emitted Tier-2 instruction words for one code
// object. It is backed by an anonymous edsrzf/mmap-go mapping rather than
// a plain Go slice, repurposing wagon's native-code allocator dependency
// (exec/internal/compile's MMapAllocator) for bytecode instead of machine
// code: the emitted stream is fetched by offset, never scanned by the Go
// garbage collector, and growth (which must not be observed as pointer
// invalidation, per spec.md §9's design note) is modeled honestly as "new
// mapping, copy the live bytes, drop the old mapping" specifically
// because every caller is required to address into it by offset, never
// by a cached slice or pointer.
type Arena struct {
	mem   mmap.MMap
	water int

	// volatile backs the handful of words the Branch Rewriter overwrites
	// after other goroutines may already be reading Tier-2 code
	// lock-free (spec.md §5, §4.9). Go's sync/atomic has no 16-bit
	// primitive, and widening a plain byte-pair write to atomic.Uint32
	// in place would clobber the two neighboring bytes; so a rewrite
	// discriminant word gets its own independently-addressable uint32
	// the moment Discovery emits it (see MarkVolatile), and WordAt reads
	// through this map first. Every other word in the arena is never
	// touched after Append and stays plain mmap bytes.
	volatile map[int]*uint32
}

// NewArena allocates a fresh Arena sized for a code object whose Tier-1
// encoding is tier1Bytes long.
func NewArena(tier1Bytes int) (*Arena, error) {
	size := tier1Bytes * arenaInitialMultiplier
	if size < minArenaSize {
		size = minArenaSize
	}
	mem, err := mmapAlloc(size)
	if err != nil {
		return nil, ErrOutOfMemory
	}
	return &Arena{mem: mem}, nil
}

func mmapAlloc(size int) (mmap.MMap, error) {
	return mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
}

// Len returns the number of bytes appended so far (the "water level").
func (a *Arena) Len() int { return a.water }

// Cap returns the arena's current backing capacity in bytes.
func (a *Arena) Cap() int { return len(a.mem) }

// Reserve ensures at least n additional bytes are available past the
// current water level, growing by the check-and-reallocate rule of
// spec.md §4.3 (reallocate at 2*(water_level+requested) when
// insufficient) if not. It reports ErrArenaExhausted, never
// ErrOutOfMemory, on allocation failure, so callers can distinguish an
// arena-specific bailout from a metadata-table one.
func (a *Arena) Reserve(n int) error {
	if a.water+n <= len(a.mem) {
		return nil
	}
	newSize := 2 * (a.water + n)
	newMem, err := mmapAlloc(newSize)
	if err != nil {
		return ErrArenaExhausted
	}
	copy(newMem, a.mem[:a.water])
	old := a.mem
	a.mem = newMem
	old.Unmap()
	return nil
}

// Append writes words to the arena, growing first if necessary, and
// returns the byte offset at which they were written. This offset — never
// a pointer or a cached sub-slice — is what BBMetadata and the Jump
// Target Index store.
func (a *Arena) Append(words []bytecode.Word) (offset int, err error) {
	n := len(words) * bytecode.WordSize
	if err := a.Reserve(n); err != nil {
		return 0, err
	}
	offset = a.water
	for i, w := range words {
		base := offset + i*bytecode.WordSize
		a.mem[base] = byte(w.Op)
		a.mem[base+1] = w.Arg
	}
	a.water += n
	return offset, nil
}

// WordAt decodes the Word at byte offset off. The offset must have been
// returned by Append or computed from one by a whole multiple of
// bytecode.WordSize.
func (a *Arena) WordAt(off int) bytecode.Word {
	if p, ok := a.volatile[off]; ok {
		v := atomic.LoadUint32(p)
		return bytecode.Word{Op: bytecode.Op(v >> 8), Arg: uint8(v)}
	}
	return bytecode.Word{Op: bytecode.Op(a.mem[off]), Arg: a.mem[off+1]}
}

// SetWord overwrites the Word at byte offset off in place. If off was
// marked volatile, the write goes through the atomic overlay (still not
// the one-shot discriminant publish itself — see SetWordAtomic — but
// consistent with whatever the overlay currently holds); otherwise it is
// a plain mmap byte write. Reserved for the Branch Rewriter (spec.md
// §4.9).
func (a *Arena) SetWord(off int, w bytecode.Word) {
	if p, ok := a.volatile[off]; ok {
		atomic.StoreUint32(p, uint32(w.Op)<<8|uint32(w.Arg))
		return
	}
	a.mem[off] = byte(w.Op)
	a.mem[off+1] = w.Arg
}

// MarkVolatile registers off — which must hold w, already written by
// Append — as a rewrite discriminant: a word the Branch Rewriter may
// later overwrite while other goroutines are fetching and decoding
// already-published Tier-2 code without holding the owning Info's mutex.
// BB Discovery calls this immediately after appending any BB containing
// a BB_BRANCH or BB_JUMP_BACKWARD_LAZY word (the two stub opcodes the
// Branch Rewriter overwrites); ordinary words, BB_TEST_ITER included, are
// never marked and stay plain mmap bytes.
func (a *Arena) MarkVolatile(off int, w bytecode.Word) {
	if a.volatile == nil {
		a.volatile = make(map[int]*uint32)
	}
	v := new(uint32)
	*v = uint32(w.Op)<<8 | uint32(w.Arg)
	a.volatile[off] = v
}

// SetWordAtomic republishes the word at off — which must already be
// volatile — with a single atomic.StoreUint32, the one-shot aligned
// publish of spec.md §5: a concurrent lock-free reader observes either
// the word MarkVolatile (or the previous SetWordAtomic) installed, or
// this one, never a torn mix of the two.
func (a *Arena) SetWordAtomic(off int, w bytecode.Word) {
	p, ok := a.volatile[off]
	if !ok {
		a.SetWord(off, w)
		return
	}
	atomic.StoreUint32(p, uint32(w.Op)<<8|uint32(w.Arg))
}

// Words decodes the arena's [from, to) byte range as a Word slice, for
// disassembly and tests.
func (a *Arena) Words(from, to int) []bytecode.Word {
	n := (to - from) / bytecode.WordSize
	words := make([]bytecode.Word, n)
	for i := range words {
		words[i] = a.WordAt(from + i*bytecode.WordSize)
	}
	return words
}

// Close releases the arena's backing mapping. The owning code object
// calls this when it is released (spec.md §3, "Lifecycle").
func (a *Arena) Close() error {
	return a.mem.Unmap()
}
