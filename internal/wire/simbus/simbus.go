// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package simbus is an in-memory fake of wire.SWDBus and
// wire.JTAGBus, in the same spirit as ftdi's tests inject a fake
// d2xx handle: it lets the ADIv5 engine and everything above it be
// exercised without real hardware.
package simbus

import (
	"math/bits"

	"periph.io/x/blackmagic/internal/wire"
	"periph.io/x/conn/v3/physic"
)

// Bus is a scriptable fake transport. A test scripts the target's
// answer by setting LastRead and checks what was driven through
// LastWritten.
type Bus struct {
	// Regs is a register map for the caller's own use (a test or a
	// higher-level fake target); Bus itself never reads or writes it.
	Regs map[uint8]uint32

	// LastWritten records the last SeqOut value; LastRead is the value
	// every SeqIn returns, masked to the requested cycle count.
	LastWritten uint32
	LastRead    uint32

	clock    physic.Frequency
	tap      wire.TAPState
	resetHit bool
}

// New returns a ready-to-use fake bus.
func New() *Bus {
	return &Bus{Regs: map[uint8]uint32{}, tap: wire.TAPTestLogicReset}
}

func (b *Bus) SeqIn(cycles int) (uint32, error) {
	v := b.LastRead
	if cycles < 32 {
		v &= (1 << uint(cycles)) - 1
	}
	return v, nil
}

func (b *Bus) SeqInParity(cycles int) (uint32, bool, error) {
	v, err := b.SeqIn(cycles)
	if err != nil {
		return 0, false, err
	}
	return v, bits.OnesCount32(v)%2 == 1, nil
}

func (b *Bus) SeqOut(data uint32, cycles int) error {
	if cycles < 32 {
		data &= (1 << uint(cycles)) - 1
	}
	b.LastWritten = data
	return nil
}

func (b *Bus) SeqOutParity(data uint32, cycles int) error {
	return b.SeqOut(data, cycles)
}

func (b *Bus) Turnaround(toHost bool) error { return nil }

func (b *Bus) LineReset() error {
	b.resetHit = true
	return nil
}

func (b *Bus) SetClock(f physic.Frequency) (physic.Frequency, error) {
	b.clock = f
	return f, nil
}

// JTAG side of the fake: tracks the navigated TAP state so tests can
// assert on it, but does not model a real shift register.

func (b *Bus) TMS(tms uint8, count int) error { return nil }

func (b *Bus) ShiftIR(out []byte, n int) ([]byte, error) {
	return make([]byte, len(out)), nil
}

func (b *Bus) ShiftDR(out []byte, n int) ([]byte, error) {
	return make([]byte, len(out)), nil
}

func (b *Bus) GotoState(target wire.TAPState) error {
	b.tap = target
	return nil
}

func (b *Bus) Reset() error {
	b.tap = wire.TAPTestLogicReset
	b.resetHit = true
	return nil
}

// TAP returns the last state reached via GotoState/Reset.
func (b *Bus) TAP() wire.TAPState { return b.tap }

// ResetSeen reports whether LineReset or Reset was ever invoked, and
// clears the flag.
func (b *Bus) ResetSeen() bool {
	v := b.resetHit
	b.resetHit = false
	return v
}
