// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tier2ctl runs, traces, and reports specializer metrics for a
// toy bytecode program, grounded on chriskillpack-bbcdisasm/cmd/bbc-disasm's
// urfave/cli command table and go-interpreter/wagon/cmd/wasm-dump's
// dump-a-file-and-print shape.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"

	"github.com/go-interpreter/wagon-tier2/disasm"
	"github.com/go-interpreter/wagon-tier2/internal/telemetry"
	"github.com/go-interpreter/wagon-tier2/vm"
)

func main() {
	log.SetPrefix("tier2ctl: ")
	log.SetFlags(0)

	app := cli.NewApp()
	app.Name = "tier2ctl"
	app.Usage = "run and inspect the Tier-2 Basic-Block Specializer against a toy program"
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "run a program to completion and print its result",
			ArgsUsage: "program.tier2",
			Action:    runCommand,
		},
		{
			Name:      "trace",
			Usage:     "run a program, printing its Tier-1 source and the Tier-2 it generated",
			ArgsUsage: "program.tier2",
			Action:    traceCommand,
		},
		{
			Name:      "stats",
			Usage:     "run a program and print the specializer's telemetry counters",
			ArgsUsage: "program.tier2",
			Action:    statsCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadAndRun(c *cli.Context) (*program, *vm.CodeObject, *vm.Frame, vm.Value, error) {
	args := c.Args()
	if len(args) < 1 {
		return nil, nil, nil, vm.Value{}, cli.NewExitError("missing program argument", 1)
	}
	p, err := loadProgram(args[0])
	if err != nil {
		return nil, nil, nil, vm.Value{}, cli.NewExitError(fmt.Sprintf("loading %s: %v", args[0], err), 1)
	}

	counters := telemetry.New()
	co := vm.NewCodeObject(p.words, p.nlocals, counters)

	values := make([]vm.Value, len(p.args))
	for i, a := range p.args {
		values[i] = vm.Int(a)
	}
	f := vm.NewFrame(co, values...)
	result := f.Run()
	return p, co, f, result, nil
}

func runCommand(c *cli.Context) error {
	_, _, f, result, err := loadAndRun(c)
	if err != nil {
		return err
	}
	fmt.Printf("result = %d (tier %v)\n", result.I, f.Tier)
	return nil
}

func traceCommand(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return cli.NewExitError("missing program argument", 1)
	}
	p, err := loadProgram(args[0])
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("loading %s: %v", args[0], err), 1)
	}

	fmt.Println("-- tier 1 --")
	disasm.Tier1(os.Stdout, p.words)

	counters := telemetry.New()
	co := vm.NewCodeObject(p.words, p.nlocals, counters)
	values := make([]vm.Value, len(p.args))
	for i, a := range p.args {
		values[i] = vm.Int(a)
	}
	f := vm.NewFrame(co, values...)
	result := f.Run()
	fmt.Printf("result = %d (tier %v)\n", result.I, f.Tier)

	if info := co.Info(); info != nil {
		fmt.Println("-- tier 2 --")
		disasm.Tier2(os.Stdout, info)
	} else {
		fmt.Println("-- tier 2: not specialized --")
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return cli.NewExitError("missing program argument", 1)
	}
	p, err := loadProgram(args[0])
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("loading %s: %v", args[0], err), 1)
	}

	counters := telemetry.New()
	reg := prometheus.NewRegistry()
	if err := counters.Register(reg); err != nil {
		return cli.NewExitError(fmt.Sprintf("registering metrics: %v", err), 1)
	}

	co := vm.NewCodeObject(p.words, p.nlocals, counters)
	values := make([]vm.Value, len(p.args))
	for i, a := range p.args {
		values[i] = vm.Int(a)
	}
	f := vm.NewFrame(co, values...)
	result := f.Run()
	fmt.Printf("result = %d (tier %v)\n\n", result.I, f.Tier)

	return printStats(os.Stdout, reg)
}
