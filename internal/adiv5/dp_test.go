// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package adiv5

import (
	"testing"

	"periph.io/x/conn/v3/physic"
)

// fakeSWD is a scripted SWDBus: callers push expected ACKs / read
// data and the fake walks through them on each SeqIn/SeqOut pair, the
// same injection style ftdi/driver_test.go uses for d2xx.Handle.
type fakeSWD struct {
	acks    []uint32
	reads   []uint32
	writes  []uint32
	resets  int
	turns   int
}

func (f *fakeSWD) SeqOut(data uint32, cycles int) error {
	f.writes = append(f.writes, data)
	return nil
}
func (f *fakeSWD) SeqOutParity(data uint32, cycles int) error { return f.SeqOut(data, cycles) }
func (f *fakeSWD) SeqIn(cycles int) (uint32, error) {
	if cycles == 3 {
		v := f.acks[0]
		f.acks = f.acks[1:]
		return v, nil
	}
	v := f.reads[0]
	f.reads = f.reads[1:]
	return v, nil
}
func (f *fakeSWD) SeqInParity(cycles int) (uint32, bool, error) {
	v, err := f.SeqIn(cycles)
	return v, true, err
}
func (f *fakeSWD) Turnaround(toHost bool) error { f.turns++; return nil }
func (f *fakeSWD) LineReset() error             { f.resets++; return nil }
func (f *fakeSWD) SetClock(freq physic.Frequency) (physic.Frequency, error) {
	return freq, nil
}

func TestRequestByteParity(t *testing.T) {
	// IDCODE read: APnDP=0, RnW=1, A=0b00.
	b := requestByte(false, true, 0)
	if b&1 == 0 {
		t.Fatal("start bit must be set")
	}
	if b&(1<<7) == 0 {
		t.Fatal("park bit must be set")
	}
	if b&(1<<2) == 0 {
		t.Fatal("RnW bit must be set for a read")
	}
}

func TestDPReadRegOK(t *testing.T) {
	f := &fakeSWD{acks: []uint32{ackOK}, reads: []uint32{0x2BA01477}}
	dp := &DP{bus: f}
	v, err := dp.ReadReg(dpIDCODE)
	if err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	if v != 0x2BA01477 {
		t.Fatalf("got %#x", v)
	}
}

func TestDPReadRegWaitThenOK(t *testing.T) {
	f := &fakeSWD{acks: []uint32{ackWAIT, ackOK}, reads: []uint32{0x12345678}}
	dp := &DP{bus: f}
	v, err := dp.ReadReg(dpIDCODE)
	if err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	if v != 0x12345678 {
		t.Fatalf("got %#x", v)
	}
}

func TestDPReadRegFaultClearsSticky(t *testing.T) {
	f := &fakeSWD{acks: []uint32{ackFAULT, ackOK}}
	dp := &DP{bus: f}
	_, err := dp.ReadReg(dpIDCODE)
	if err != ErrFault {
		t.Fatalf("expected ErrFault, got %v", err)
	}
	if dp.selectValid {
		t.Fatal("clearSticky must invalidate the SELECT cache")
	}
}

func TestSelectAPCachesWrites(t *testing.T) {
	f := &fakeSWD{acks: []uint32{ackOK}}
	dp := &DP{bus: f}
	if err := dp.selectAP(3, 0); err != nil {
		t.Fatalf("selectAP: %v", err)
	}
	// One SELECT write records two entries: the request byte and the
	// data phase.
	if len(f.writes) != 2 {
		t.Fatalf("expected 2 recorded writes, got %d", len(f.writes))
	}
	// Same APSEL/bank again must not re-issue the write.
	if err := dp.selectAP(3, 0); err != nil {
		t.Fatalf("selectAP: %v", err)
	}
	if len(f.writes) != 2 {
		t.Fatalf("expected SELECT write to be cached, got %d writes", len(f.writes))
	}
}

func TestMemReadBlockEmptyIsNoop(t *testing.T) {
	ap := &AP{Class: APClassMEM}
	if err := ap.ReadBlock(0x20000000, nil); err != nil {
		t.Fatalf("empty ReadBlock must succeed: %v", err)
	}
}

func TestShiftLane(t *testing.T) {
	cases := []struct {
		addr uint32
		want uint
	}{{0, 0}, {1, 8}, {2, 16}, {3, 24}, {5, 8}}
	for _, c := range cases {
		if got := shiftLane(c.addr, 1); got != c.want {
			t.Errorf("shiftLane(%d)=%d want %d", c.addr, got, c.want)
		}
	}
}
