// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package typectx implements the per-basic-block abstract interpretation
// state described in spec.md §3/§4.2: a vector of "known type or unknown"
// for each local slot, plus an operand-stack type shadow.
package typectx

import "github.com/go-interpreter/wagon-tier2/typesys"

// Context is the TypeContext of spec.md §3. A nil entry in either slice
// means "unknown".
type Context struct {
	Locals []*typesys.Type
	Stack  []*typesys.Type
}

// New returns an all-unknown Context sized for nlocals local slots, the
// initial type context built at Bootstrap (spec.md §4.8).
func New(nlocals int) *Context {
	return &Context{Locals: make([]*typesys.Type, nlocals)}
}

// Clone returns a deep copy, used when a BB begins with an immutable
// snapshot of its predecessor's context (spec.md §4.2: "each BB owns a
// copy of its incoming type context; shared ownership is unnecessary and
// avoided").
func (c *Context) Clone() *Context {
	clone := &Context{
		Locals: make([]*typesys.Type, len(c.Locals)),
		Stack:  make([]*typesys.Type, len(c.Stack)),
	}
	copy(clone.Locals, c.Locals)
	copy(clone.Stack, c.Stack)
	return clone
}

// StoreLocal updates the type recorded for local slot i, as when the
// Emitter processes a local store.
func (c *Context) StoreLocal(i int, t *typesys.Type) {
	c.Locals[i] = t
}

// LoadLocal returns the type currently recorded for local slot i.
func (c *Context) LoadLocal(i int) *typesys.Type {
	if i < 0 || i >= len(c.Locals) {
		return nil
	}
	return c.Locals[i]
}

// Push records the type of a value pushed onto the operand stack.
func (c *Context) Push(t *typesys.Type) {
	c.Stack = append(c.Stack, t)
}

// Pop removes and returns the type on top of the operand stack shadow. It
// returns nil if the shadow is empty, which only happens for a malformed
// instruction stream (the Emitter never pops more than the stack shadow
// holds for well-formed Tier-1 input).
func (c *Context) Pop() *typesys.Type {
	if len(c.Stack) == 0 {
		return nil
	}
	t := c.Stack[len(c.Stack)-1]
	c.Stack = c.Stack[:len(c.Stack)-1]
	return t
}

// Peek returns the type n entries below the top of the stack shadow
// without popping (n=0 is the top), used by the Emitter's two-instruction
// lookbehind for binary-op operand types (spec.md §4.5).
func (c *Context) Peek(n int) *typesys.Type {
	i := len(c.Stack) - 1 - n
	if i < 0 {
		return nil
	}
	return c.Stack[i]
}

// Diff counts the number of local slots and stack shadow entries that
// disagree between c and other, used by the Jump Target Index's
// nearest-match version selection (spec.md §4.7/§9, the "richer
// implementation" extension point). When the two stack depths differ,
// every stack entry of both Contexts counts as a mismatch on top of the
// local-slot mismatches, since they cannot describe the same program
// point.
func (c *Context) Diff(other *Context) int {
	if other == nil {
		return len(c.Locals) + len(c.Stack) + 1
	}
	mismatches := 0
	for i := range c.Locals {
		var o *typesys.Type
		if i < len(other.Locals) {
			o = other.Locals[i]
		}
		if c.Locals[i] != o {
			mismatches++
		}
	}
	if len(c.Stack) != len(other.Stack) {
		return mismatches + len(c.Stack) + len(other.Stack)
	}
	for i := range c.Stack {
		if c.Stack[i] != other.Stack[i] {
			mismatches++
		}
	}
	return mismatches
}
