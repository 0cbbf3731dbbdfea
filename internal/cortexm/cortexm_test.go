// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cortexm

import (
	"testing"

	"periph.io/x/blackmagic/internal/target"
)

// fakeMem is a sparse register image, the minimal MemAP a unit test
// needs. A DHCSR write replaces only the control half, leaving the
// status bits in [31:16] as the test set them. A DCRSR write answers
// S_REGRDY immediately and moves DCRDR to or from a per-selector core
// register file kept at fakeCoreRegBase.
type fakeMem map[uint32]uint32

// fakeCoreRegBase keys the fake's core register file, at addresses
// the Core never accesses.
const fakeCoreRegBase uint32 = 0x100

func (m fakeMem) ReadMem32(addr uint32) (uint32, error) { return m[addr], nil }
func (m fakeMem) WriteMem32(addr, v uint32) error {
	switch addr {
	case regDHCSR:
		m[addr] = m[addr]&^0xFFFF | v&0xFFFF
	case regDCRSR:
		m[addr] = v
		if sel := fakeCoreRegBase + v&0x1F; v&(1<<16) != 0 {
			m[sel] = m[regDCRDR]
		} else {
			m[regDCRDR] = m[sel]
		}
		m[regDHCSR] |= dhcsrSRegrdy
	default:
		m[addr] = v
	}
	return nil
}

func newFakeCore(t *testing.T) (*Core, fakeMem) {
	t.Helper()
	m := fakeMem{regDHCSR: dhcsrSRegrdy}
	c, err := New(m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, m
}

func TestHaltSetsSHaltAndPolled(t *testing.T) {
	c, m := newFakeCore(t)
	m[regDHCSR] = dhcsrSHalt // simulate the core reporting halted immediately
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

func TestRegsRoundTrip(t *testing.T) {
	c, _ := newFakeCore(t)
	in := make([]byte, regCount*4)
	for i := range in {
		in[i] = byte(i)
	}
	if err := c.RegsWrite(in); err != nil {
		t.Fatalf("RegsWrite: %v", err)
	}
	out, err := c.RegsRead()
	if err != nil {
		t.Fatalf("RegsRead: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len(out)=%d want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("byte %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestFPBAllocFreeAndExhaustion(t *testing.T) {
	c, _ := newFakeCore(t)
	bw := &target.Breakwatch{Kind: target.BreakwatchHardware, Addr: 0x08000100}
	for i := 0; i < maxFPBSlots; i++ {
		b := &target.Breakwatch{Kind: target.BreakwatchHardware, Addr: uint32(0x08000100 + i*4)}
		if err := c.BreakwatchSet(b); err != nil {
			t.Fatalf("slot %d: BreakwatchSet: %v", i, err)
		}
	}
	overflow := &target.Breakwatch{Kind: target.BreakwatchHardware, Addr: 0x09000000}
	if err := c.BreakwatchSet(overflow); err != target.ErrNoHwResource {
		t.Fatalf("expected ErrNoHwResource, got %v", err)
	}
	if err := c.BreakwatchClear(bw); err != nil {
		t.Fatalf("BreakwatchClear: %v", err)
	}
}

func TestDWTWatchpointAllocEncodesFunction(t *testing.T) {
	c, m := newFakeCore(t)
	bw := &target.Breakwatch{Kind: target.BreakwatchWatchWrite, Addr: 0x20000000, Size: 4}
	if err := c.BreakwatchSet(bw); err != nil {
		t.Fatalf("BreakwatchSet: %v", err)
	}
	slot := bw.Reserved[0]
	if got := m[regDWTFUNCTION0+slot*dwtStride]; got != dwtFuncWrite {
		t.Fatalf("FUNCTION = %d, want %d", got, dwtFuncWrite)
	}
	if err := c.BreakwatchClear(bw); err != nil {
		t.Fatalf("BreakwatchClear: %v", err)
	}
	if got := m[regDWTFUNCTION0+slot*dwtStride]; got != dwtFuncDisabled {
		t.Fatalf("FUNCTION after clear = %d, want disabled", got)
	}
}
