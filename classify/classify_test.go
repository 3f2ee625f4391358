// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classify

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/go-interpreter/wagon-tier2/bytecode"
)

// TestCategoryOverlaps checks that the five control-flow categories are
// pairwise disjoint except for the exception-raising opcodes
// RAISE_VARARGS and RERAISE, which are both Forbidden and a ScopeExit.
func TestCategoryOverlaps(t *testing.T) {
	categories := []mapset.Set[bytecode.Op]{
		Forbidden, ScopeExit, ForwardJump, BackwardJump, Branch,
	}
	names := []string{"Forbidden", "ScopeExit", "ForwardJump", "BackwardJump", "Branch"}

	for i := range categories {
		for j := i + 1; j < len(categories); j++ {
			want := mapset.NewSet[bytecode.Op]()
			if names[i] == "Forbidden" && names[j] == "ScopeExit" {
				want = mapset.NewSet(bytecode.RAISE_VARARGS, bytecode.RERAISE)
			}
			if inter := categories[i].Intersect(categories[j]); !inter.Equal(want) {
				t.Errorf("%s and %s overlap: %v, want %v", names[i], names[j], inter, want)
			}
		}
	}
}

func TestIsForbidden(t *testing.T) {
	if !IsForbidden(bytecode.YIELD_VALUE) {
		t.Error("YIELD_VALUE should be forbidden")
	}
	if IsForbidden(bytecode.LOAD_FAST) {
		t.Error("LOAD_FAST should not be forbidden")
	}
}

func TestHasForbiddenOpcode(t *testing.T) {
	clean := []bytecode.Word{{Op: bytecode.LOAD_FAST}, {Op: bytecode.RETURN_VALUE}}
	if HasForbiddenOpcode(clean) {
		t.Error("clean program reported as forbidden")
	}

	dirty := []bytecode.Word{{Op: bytecode.LOAD_FAST}, {Op: bytecode.YIELD_VALUE}}
	if !HasForbiddenOpcode(dirty) {
		t.Error("program with YIELD_VALUE not reported as forbidden")
	}
}

func TestHasOptimizableOpcode(t *testing.T) {
	none := []bytecode.Word{{Op: bytecode.LOAD_FAST}, {Op: bytecode.RETURN_VALUE}}
	if HasOptimizableOpcode(none) {
		t.Error("program with no optimizable opcode reported as interesting")
	}

	some := []bytecode.Word{{Op: bytecode.BINARY_OP}}
	if !HasOptimizableOpcode(some) {
		t.Error("program with BINARY_OP not reported as interesting")
	}
}

func TestIsBranchCoversAllBranchFamilies(t *testing.T) {
	for _, op := range []bytecode.Op{
		bytecode.POP_JUMP_IF_FALSE,
		bytecode.POP_JUMP_IF_TRUE,
		bytecode.FOR_ITER,
		bytecode.COMPARE_AND_BRANCH,
	} {
		if !IsBranch(op) {
			t.Errorf("%s should be classified as Branch", op)
		}
	}
}
