// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package riscv

import (
	"testing"

	"periph.io/x/blackmagic/internal/target"
)

// fakeDMI is a register-map fake DMI that completes every abstract
// command instantly (busy always reads back clear).
type fakeDMI map[uint8]uint32

func (d fakeDMI) ReadDMI(addr uint8) (uint32, error)    { return d[addr], nil }
func (d fakeDMI) WriteDMI(addr uint8, v uint32) error {
	d[addr] = v
	return nil
}

func newFakeCore(t *testing.T) (*Core, fakeDMI) {
	t.Helper()
	d := fakeDMI{}
	c, err := New(d, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, d
}

func TestHaltSetsHaltreqAndPolls(t *testing.T) {
	c, d := newFakeCore(t)
	d[dmStatus] = dmstatusAllhalted | dmstatusAnyhalted // one selected hart, halted
	if err := c.Halt(); err != nil {
		t.Fatalf("Halt: %v", err)
	}
	st, err := c.HaltPoll()
	if err != nil {
		t.Fatalf("HaltPoll: %v", err)
	}
	if st != target.StateHalted {
		t.Fatalf("state = %v, want StateHalted", st)
	}
}

func TestRegsWriteThenReadGPR(t *testing.T) {
	c, _ := newFakeCore(t)
	if err := c.writeReg(regnoGPRBase+5, 0xDEADBEEF); err != nil {
		t.Fatalf("writeReg: %v", err)
	}
	v, err := c.readReg(regnoGPRBase + 5)
	if err != nil {
		t.Fatalf("readReg: %v", err)
	}
	if v != 0xDEADBEEF {
		t.Fatalf("got %#x", v)
	}
}

func TestTriggerModuleAllocEncodesExecuteBreakpoint(t *testing.T) {
	c, _ := newFakeCore(t)
	bw := &target.Breakwatch{Kind: target.BreakwatchHardware, Addr: 0x80000000}
	if err := c.BreakwatchSet(bw); err != nil {
		t.Fatalf("BreakwatchSet: %v", err)
	}
	v, err := c.readReg(csrTdata1)
	if err != nil {
		t.Fatalf("readReg tdata1: %v", err)
	}
	if v&mcontrolMExec == 0 {
		t.Fatalf("tdata1 = %#x, want EXECUTE bit set", v)
	}
	if err := c.BreakwatchClear(bw); err != nil {
		t.Fatalf("BreakwatchClear: %v", err)
	}
}

func TestTriggerModuleExhaustion(t *testing.T) {
	c, _ := newFakeCore(t)
	for i := 0; i < maxTriggers; i++ {
		bw := &target.Breakwatch{Kind: target.BreakwatchWatchWrite, Addr: uint32(0x1000 * i), Size: 4}
		if err := c.BreakwatchSet(bw); err != nil {
			t.Fatalf("slot %d: %v", i, err)
		}
	}
	overflow := &target.Breakwatch{Kind: target.BreakwatchWatchWrite, Addr: 0xFFFF0000, Size: 4}
	if err := c.BreakwatchSet(overflow); err != target.ErrNoHwResource {
		t.Fatalf("expected ErrNoHwResource, got %v", err)
	}
}
