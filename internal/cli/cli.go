// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cli implements the qRcmd "monitor" command table spec.md §6
// enumerates: swdp_scan, jtag_scan, frequency, targets, morse, tpwr,
// and traceswo. It satisfies internal/gdbserver's Monitor interface.
package cli

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"periph.io/x/blackmagic/internal/probe"
	"periph.io/x/blackmagic/internal/target"
)

// Monitor dispatches qRcmd commands against a *probe.Probe. Scan
// results are echoed, colourised, to out as they're
// produced — matching periph-extra's screen.Dev pattern of writing
// through a go-colorable writer — in addition to being returned as
// the plain-text GDB console reply.
type Monitor struct {
	P      *probe.Probe
	Faults *faultLog

	out    io.Writer
	Logger *log.Logger
}

// New builds a Monitor over p, logging to a colourised stdout when
// one is attached to a terminal (github.com/mattn/go-isatty), falling
// back to an uncoloured pass-through otherwise — the same TTY check
// periph-extra's screen package assumes implicitly via colorable.
func New(p *probe.Probe) *Monitor {
	out := colorable.NewColorableStdout()
	logger := log.New(out, "bmd: ", log.LstdFlags)
	return &Monitor{P: p, Faults: &faultLog{}, out: out, Logger: logger}
}

// ansi wraps s in an SGR colour code when stdout is a real terminal;
// otherwise it returns s unchanged so a captured GDB log stays clean.
func (m *Monitor) ansi(code, s string) string {
	if !isatty.IsTerminal(uintptr(1)) {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

// Exec runs one monitor command line, per spec.md §6's table.
func (m *Monitor) Exec(args string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(args))
	if len(fields) == 0 {
		return "", nil
	}
	cmd, rest := fields[0], fields[1:]
	switch cmd {
	case "swdp_scan":
		return m.swdpScan()
	case "jtag_scan":
		return m.jtagScan()
	case "frequency":
		return m.frequency(rest)
	case "targets":
		return m.targets(), nil
	case "morse":
		return m.Faults.Morse(), nil
	case "tpwr":
		return m.tpwr(rest)
	case "traceswo":
		return "traceswo: SWO capture is not supported by this build", nil
	default:
		return "", fmt.Errorf("unrecognised monitor command %q", cmd)
	}
}

func (m *Monitor) swdpScan() (string, error) {
	targets, err := m.P.ScanSWD()
	if err != nil {
		m.Faults.Record("WireProtocol")
		return "", err
	}
	if len(targets) == 0 {
		m.Logger.Print(m.ansi("33", "swdp_scan: no targets found"))
		return "no targets found", nil
	}
	var b strings.Builder
	for i, t := range targets {
		fmt.Fprintf(&b, "%d: %s designer=%#03x part=%#04x\n", i, t.DriverName, t.Designer, t.Part)
	}
	m.Logger.Print(m.ansi("32", b.String()))
	return b.String(), nil
}

func (m *Monitor) jtagScan() (string, error) {
	const maxChain = 8
	targets, err := m.P.ScanJTAG(maxChain)
	if err != nil {
		m.Faults.Record("WireProtocol")
		return "", err
	}
	if len(targets) == 0 {
		return "no devices found in JTAG chain", nil
	}
	var b strings.Builder
	for i, t := range targets {
		fmt.Fprintf(&b, "%d: %s\n", i, t.DriverName)
	}
	m.Logger.Print(m.ansi("32", b.String()))
	return b.String(), nil
}

func (m *Monitor) frequency(args []string) (string, error) {
	if len(args) == 0 {
		return fmt.Sprintf("frequency: %s", m.P.Frequency()), nil
	}
	hz, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return "", fmt.Errorf("frequency: %q is not a number", args[0])
	}
	got, err := m.P.SetFrequency(uint32(hz))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("frequency set to %s", got), nil
}

func (m *Monitor) targets() string {
	all := m.P.Registry.All()
	if len(all) == 0 {
		return "no targets attached; run swdp_scan or jtag_scan first"
	}
	var b strings.Builder
	for i, t := range all {
		state := "unknown"
		if t.Core != nil {
			if st, err := t.Core.HaltPoll(); err == nil {
				switch st {
				case target.StateRunning:
					state = "running"
				case target.StateHalted:
					state = "halted"
				case target.StateResetHalted:
					state = "reset-halted"
				case target.StateLost:
					state = "lost"
				}
			}
		}
		fmt.Fprintf(&b, "%d: %s (%s) %s\n", i, t.DriverName, t.Kind, state)
	}
	return b.String()
}

func (m *Monitor) tpwr(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("tpwr: expected 0 or 1")
	}
	switch args[0] {
	case "0":
		if err := m.P.SetTargetPower(false); err != nil {
			return "", err
		}
		return "target power off", nil
	case "1":
		if err := m.P.SetTargetPower(true); err != nil {
			return "", err
		}
		return "target power on", nil
	default:
		return "", fmt.Errorf("tpwr: expected 0 or 1, got %q", args[0])
	}
}
