// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cli

import (
	"strings"
	"testing"

	"periph.io/x/blackmagic/internal/probe"
	"periph.io/x/blackmagic/internal/wire/simbus"
)

func TestExecTargetsEmptyRegistry(t *testing.T) {
	p := probe.New(simbus.New(), nil, nil)
	m := New(p)
	out, err := m.Exec("targets")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !strings.Contains(out, "no targets attached") {
		t.Fatalf("got %q", out)
	}
}

func TestExecFrequencySetAndQuery(t *testing.T) {
	p := probe.New(simbus.New(), nil, nil)
	m := New(p)
	if _, err := m.Exec("frequency 4000000"); err != nil {
		t.Fatalf("Exec set: %v", err)
	}
	out, err := m.Exec("frequency")
	if err != nil {
		t.Fatalf("Exec query: %v", err)
	}
	if !strings.Contains(out, "4") {
		t.Fatalf("got %q", out)
	}
}

func TestExecTpwrNoPinErrors(t *testing.T) {
	p := probe.New(simbus.New(), nil, nil)
	m := New(p)
	if _, err := m.Exec("tpwr 1"); err == nil {
		t.Fatal("expected error with no target-power pin")
	}
}

func TestExecUnknownCommand(t *testing.T) {
	p := probe.New(simbus.New(), nil, nil)
	m := New(p)
	if _, err := m.Exec("frobnicate"); err == nil {
		t.Fatal("expected error for unrecognised command")
	}
}

func TestExecMorseNoFaultsYet(t *testing.T) {
	p := probe.New(simbus.New(), nil, nil)
	m := New(p)
	out, err := m.Exec("morse")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if out != "no faults recorded" {
		t.Fatalf("got %q", out)
	}
}

func TestMorseEncodeKnownWord(t *testing.T) {
	got := morseEncode("SOS")
	want := "... --- ..."
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFaultLogRingWraps(t *testing.T) {
	var f faultLog
	for i := 0; i < 10; i++ {
		f.Record("BusFault")
	}
	last := f.Last()
	if len(last) != 8 {
		t.Fatalf("got %d entries, want 8", len(last))
	}
}
