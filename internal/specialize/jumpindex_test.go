// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package specialize

import (
	"testing"

	"github.com/go-interpreter/wagon-tier2/typectx"
	"github.com/go-interpreter/wagon-tier2/typesys"
)

func TestIndexOfLinearAndBinary(t *testing.T) {
	offsets := []int{10, 20, 30}
	j := NewJumpIndex(offsets)

	if i, ok := j.IndexOf(20); !ok || i != 1 {
		t.Fatalf("IndexOf(20) = %d, %v, want 1, true", i, ok)
	}
	if _, ok := j.IndexOf(25); ok {
		t.Fatal("IndexOf(25) should not be found")
	}

	// Force the binary-search path.
	big := make([]int, 50)
	for i := range big {
		big[i] = i * 2
	}
	jb := NewJumpIndex(big)
	if i, ok := jb.IndexOf(60); !ok || i != 30 {
		t.Fatalf("IndexOf(60) = %d, %v, want 30, true", i, ok)
	}
}

func TestRegisterAndVersionExhaustion(t *testing.T) {
	j := NewJumpIndex([]int{5})
	for k := uint16(0); k < MaxVersions; k++ {
		if err := j.Register(0, k); err != nil {
			t.Fatalf("Register(%d) = %v", k, err)
		}
	}
	if err := j.Register(0, MaxVersions); err != ErrTooManyVersions {
		t.Fatalf("Register past K = %v, want ErrTooManyVersions", err)
	}
	ids := j.Versions(0)
	if len(ids) != MaxVersions {
		t.Fatalf("Versions() = %v, want %d entries", ids, MaxVersions)
	}
}

func TestResolvePicksNearestContext(t *testing.T) {
	j := NewJumpIndex([]int{0})
	table := NewMetaTable()

	exact := typectx.New(1)
	exact.StoreLocal(0, typesys.Int)
	tooFar := typectx.New(1)
	tooFar.StoreLocal(0, typesys.String)

	exactMeta := table.Publish(0, 0, exact, 0)
	farMeta := table.Publish(8, 0, tooFar, 0)
	if err := j.Register(0, exactMeta.ID); err != nil {
		t.Fatal(err)
	}
	if err := j.Register(0, farMeta.ID); err != nil {
		t.Fatal(err)
	}

	query := typectx.New(1)
	query.StoreLocal(0, typesys.Int)

	id, ok, hit := j.Resolve(100, 0, query, table)
	if !ok || hit {
		t.Fatalf("first Resolve: id=%d ok=%v hit=%v", id, ok, hit)
	}
	if id != exactMeta.ID {
		t.Fatalf("Resolve chose id %d, want the exact-match id %d", id, exactMeta.ID)
	}

	id2, ok2, hit2 := j.Resolve(100, 0, query, table)
	if !ok2 || !hit2 || id2 != id {
		t.Fatalf("second Resolve should be a cache hit returning the same id: id=%d ok=%v hit=%v", id2, ok2, hit2)
	}
}

func TestResolveNoVersions(t *testing.T) {
	j := NewJumpIndex([]int{0})
	table := NewMetaTable()
	if _, ok, _ := j.Resolve(1, 0, typectx.New(0), table); ok {
		t.Fatal("Resolve should fail when no versions are registered")
	}
}
