// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import "errors"

// All internal failures collapse to one of these sentinel values
// (spec.md §7). None of them ever reaches code running under the VM:
// Bootstrap and the runtime hooks report failure as a boolean plus a
// Tier-1 fallback offset, never as a Go error returned to a caller
// outside this package.
var (
	// ErrUnsupportedProgram identifies Bootstrap's forbidden-opcode
	// early return (a code object contains a Forbidden opcode anywhere);
	// reasonFor maps it to the matching telemetry reason.
	ErrUnsupportedProgram = errors.New("specialize: forbidden opcode present")
	// ErrUninterestingProgram identifies Bootstrap's no-optimizable-opcode
	// early return (a code object contains no Optimizable opcode at all);
	// reasonFor maps it to the matching telemetry reason.
	ErrUninterestingProgram = errors.New("specialize: no optimizable opcode")
	// ErrOutOfMemory is returned when NewArena cannot create the arena's
	// initial mapping.
	ErrOutOfMemory = errors.New("specialize: allocation failed")
	// ErrTooManyVersions is returned when a backward-jump target has
	// already accumulated MaxVersions specialized BBs.
	ErrTooManyVersions = errors.New("specialize: too many versions of loop header")
	// ErrArenaExhausted is returned when the arena's grow attempt itself
	// fails (distinct from ErrOutOfMemory, which covers only the initial
	// mapping).
	ErrArenaExhausted = errors.New("specialize: arena grow refused")
	// ErrTooManyBBs is returned when a code object's BB count reaches
	// MaxBBsPerCodeObject (the supplemented bailout of SPEC_FULL.md).
	ErrTooManyBBs = errors.New("specialize: code object exceeded max BB count")
)
