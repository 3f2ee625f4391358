// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-interpreter/wagon-tier2/bytecode"
)

// program is a parsed .tier2 source file: a Tier-1 word stream plus the
// two directives a bare word list can't carry on its own.
type program struct {
	words   []bytecode.Word
	nlocals int
	args    []int64
}

// loadProgram reads path's text assembly: blank lines and lines starting
// with "#" are ignored; ".locals N" sets nlocals; ".args v1,v2,..." sets
// the default arguments "run"/"trace" start the frame with; every other
// non-blank line is "MNEMONIC" or "MNEMONIC ARG", one bytecode.Word each.
// EXTENDED_ARG is never written by hand: an arg needing one is expanded
// with bytecode.EncodeOparg, the same helper the Emitter itself uses.
func loadProgram(path string) (*program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &program{nlocals: 1}
	lineNo := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, ".locals") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ".locals")))
			if err != nil {
				return nil, fmt.Errorf("line %d: bad .locals directive: %w", lineNo, err)
			}
			p.nlocals = n
			continue
		}
		if strings.HasPrefix(line, ".args") {
			raw := strings.TrimSpace(strings.TrimPrefix(line, ".args"))
			for _, field := range strings.Split(raw, ",") {
				field = strings.TrimSpace(field)
				if field == "" {
					continue
				}
				v, err := strconv.ParseInt(field, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad .args value %q: %w", lineNo, field, err)
				}
				p.args = append(p.args, v)
			}
			continue
		}

		fields := strings.Fields(line)
		op, ok := bytecode.Lookup(fields[0])
		if !ok {
			return nil, fmt.Errorf("line %d: unknown opcode %q", lineNo, fields[0])
		}
		var arg uint32
		if len(fields) > 1 {
			v, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad operand %q: %w", lineNo, fields[1], err)
			}
			arg = uint32(v)
		}
		p.words = append(p.words, bytecode.EncodeOparg(op, arg)...)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p, nil
}
