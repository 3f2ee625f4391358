// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import (
	"github.com/go-interpreter/wagon-tier2/bytecode"
	"github.com/go-interpreter/wagon-tier2/classify"
	"github.com/go-interpreter/wagon-tier2/internal/telemetry"
	"github.com/go-interpreter/wagon-tier2/typectx"
)

// Bootstrap is the entry gate of spec.md §4.8: it decides, once per code
// object and before any Tier-2 execution, whether the object is eligible
// for specialization at all, and if so produces the Info that the VM's
// Warmup hook installs on it.
//
// Bootstrap never returns a Go error to its caller: every failure mode
// collapses to ok=false, matching the runtime contract of spec.md §6 in
// which the VM always has a Tier-1 path to fall back to. The sentinel
// errors in errors.go exist for this function's internal control flow and
// for tests, not for callers outside this package.
//
// Spec.md §7 describes Bootstrap's return shape as
// "(tier2EntryOffset int, ok bool)"; this implementation also returns the
// *Info the VM must retain to call GenerateNextBB and LocateBackwardBB
// later, since an offset alone does not let a caller address into the
// arena or metadata table it came from. tier2Entry is that same offset,
// surfaced directly so Warmup does not need to re-derive it from info.
func Bootstrap(words []bytecode.Word, nlocals int, counters *telemetry.Counters) (info *Info, tier2Entry int, ok bool) {
	counters.RecordBootstrapAttempt()

	if classify.HasForbiddenOpcode(words) {
		counters.RecordBootstrapAbandoned(reasonFor(ErrUnsupportedProgram))
		return nil, 0, false
	}
	if !classify.HasOptimizableOpcode(words) {
		counters.RecordBootstrapAbandoned(reasonFor(ErrUninterestingProgram))
		return nil, 0, false
	}

	substituteQuickForms(words)

	arena, err := NewArena(len(words) * bytecode.WordSize)
	if err != nil {
		counters.RecordBootstrapAbandoned(telemetry.ReasonOutOfMemory)
		return nil, 0, false
	}

	table := NewMetaTable()
	index := NewJumpIndex(ScanBackwardJumpTargets(words))

	entry, err := BBDiscovery(words, 0, typectx.New(nlocals), arena, table, index)
	if err != nil {
		arena.Close()
		counters.RecordBootstrapAbandoned(reasonFor(err))
		return nil, 0, false
	}

	counters.RecordBootstrapSuccess()
	counters.RecordBBEmitted()
	info = newInfo(words, arena, table, index, entry.ID, counters)
	return info, entry.Tier2Start, true
}

// substituteQuickForms rewrites RESUME and JUMP_BACKWARD words in place
// to their quick forms before discovery ever runs, so every later pass —
// the backward-jump scan, the classifier, the emitter — only ever sees
// the quick opcodes (spec.md §4.8).
func substituteQuickForms(words []bytecode.Word) {
	for i, w := range words {
		if q, ok := bytecode.QuickForm(w.Op); ok {
			words[i].Op = q
		}
	}
}

// reasonFor maps a BBDiscovery failure to the telemetry reason label
// that best describes it.
func reasonFor(err error) string {
	switch err {
	case ErrUnsupportedProgram:
		return telemetry.ReasonForbiddenOpcode
	case ErrUninterestingProgram:
		return telemetry.ReasonUninteresting
	case ErrTooManyVersions:
		return telemetry.ReasonTooManyVersions
	case ErrArenaExhausted:
		return telemetry.ReasonArenaExhausted
	case ErrTooManyBBs:
		return telemetry.ReasonTooManyBBs
	case ErrOutOfMemory:
		return telemetry.ReasonOutOfMemory
	default:
		return telemetry.ReasonOutOfMemory
	}
}
