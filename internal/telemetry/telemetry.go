// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package telemetry provides the specializer's observational counters.
// Nothing in internal/specialize or vm branches on a value read from this
// package; it exists purely so an operator running a long-lived host
// process can see how much of its bytecode is actually getting
// specialized, matching the ambient-metrics framing of SPEC_FULL.md.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters groups every metric the specializer emits. Construct one with
// New and share it across every code object in a process; the metrics are
// process-wide, not per-code-object.
type Counters struct {
	BootstrapAttempts  prometheus.Counter
	BootstrapSuccesses prometheus.Counter
	BootstrapAbandoned *prometheus.CounterVec

	BBsEmitted  prometheus.Counter
	ArenaGrows  prometheus.Counter
	Fallbacks   *prometheus.CounterVec
	LoopCache   *prometheus.CounterVec
}

// Reason labels for BootstrapAbandoned and Fallbacks.
const (
	ReasonForbiddenOpcode   = "forbidden_opcode"
	ReasonUninteresting     = "uninteresting"
	ReasonOutOfMemory       = "out_of_memory"
	ReasonTooManyVersions   = "too_many_versions"
	ReasonArenaExhausted    = "arena_exhausted"
	ReasonTooManyBBs        = "too_many_bbs"
	ReasonBranchUnresolved  = "branch_unresolved"
	ReasonLoopUnresolved    = "loop_unresolved"
)

// New constructs a fresh, unregistered set of counters. Call Register to
// attach them to a *prometheus.Registry; tests typically leave them
// unregistered to avoid collisions between parallel test cases.
func New() *Counters {
	return &Counters{
		BootstrapAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tier2",
			Name:      "bootstrap_attempts_total",
			Help:      "Number of times Bootstrap was invoked for a code object.",
		}),
		BootstrapSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tier2",
			Name:      "bootstrap_successes_total",
			Help:      "Number of code objects that entered Tier 2.",
		}),
		BootstrapAbandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tier2",
			Name:      "bootstrap_abandoned_total",
			Help:      "Number of code objects that failed Bootstrap, by reason.",
		}, []string{"reason"}),
		BBsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tier2",
			Name:      "bbs_emitted_total",
			Help:      "Number of basic blocks emitted into scratch arenas.",
		}),
		ArenaGrows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tier2",
			Name:      "arena_grows_total",
			Help:      "Number of times a BB Scratch Arena was reallocated.",
		}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tier2",
			Name:      "tier1_fallbacks_total",
			Help:      "Number of times execution fell back to Tier 1, by reason and owning BB id.",
		}, []string{"reason", "bb_id"}),
		LoopCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tier2",
			Name:      "loop_resolution_cache_total",
			Help:      "Loop back-edge version resolution cache hits and misses.",
		}, []string{"result"}),
	}
}

// Register attaches every metric to reg. Safe to call at most once per
// Counters value.
func (c *Counters) Register(reg *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		c.BootstrapAttempts, c.BootstrapSuccesses, c.BootstrapAbandoned,
		c.BBsEmitted, c.ArenaGrows, c.Fallbacks, c.LoopCache,
	}
	for _, coll := range collectors {
		if err := reg.Register(coll); err != nil {
			return err
		}
	}
	return nil
}

// LoopCacheHit and LoopCacheMiss record a single Jump Target Index
// resolution outcome.
func (c *Counters) LoopCacheHit()  { c.LoopCache.WithLabelValues("hit").Inc() }
func (c *Counters) LoopCacheMiss() { c.LoopCache.WithLabelValues("miss").Inc() }

// RecordBootstrapAttempt, RecordBootstrapSuccess, and
// RecordBootstrapAbandoned record one Bootstrap outcome apiece.
func (c *Counters) RecordBootstrapAttempt()  { c.BootstrapAttempts.Inc() }
func (c *Counters) RecordBootstrapSuccess()  { c.BootstrapSuccesses.Inc() }
func (c *Counters) RecordBootstrapAbandoned(reason string) {
	c.BootstrapAbandoned.WithLabelValues(reason).Inc()
}

// RecordBBEmitted and RecordArenaGrow record one BB Discovery success and
// one arena reallocation, respectively.
func (c *Counters) RecordBBEmitted()  { c.BBsEmitted.Inc() }
func (c *Counters) RecordArenaGrow()  { c.ArenaGrows.Inc() }

// RecordFallback records one Tier-1 fallback, by reason and the id of the
// BB the frame fell back out of (SUPPLEMENTED FEATURES #2 of SPEC_FULL.md).
func (c *Counters) RecordFallback(reason string, bbID uint16) {
	c.Fallbacks.WithLabelValues(reason, strconv.Itoa(int(bbID))).Inc()
}
