// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package wire implements the low-level SWD and JTAG bit-bang
// transports that sit directly on the physical debug pins.
//
// Every primitive here ends on a falling clock edge and assumes it
// was preceded by one; this is what lets reads and writes compose
// without glitching the line. A turnaround must be inserted by the
// caller whenever SWDIO changes direction.
package wire

import (
	"errors"

	"periph.io/x/conn/v3/physic"
)

// ErrWireProtocol is returned when the physical line disagrees with
// the protocol: a parity mismatch, a TAP state the navigator cannot
// reach, or no response at all from the target.
var ErrWireProtocol = errors.New("wire: protocol violation")

// SWDBus is the set of primitives a Serial-Wire-Debug transport must
// provide on top of a shared SWCLK output and bidirectional SWDIO.
type SWDBus interface {
	// SeqIn reads up to 32 bits, LSB-first, sampled immediately
	// before each rising edge.
	SeqIn(cycles int) (uint32, error)
	// SeqInParity is SeqIn plus a trailing bit checked as odd parity
	// of the result; ok is false on mismatch.
	SeqInParity(cycles int) (value uint32, ok bool, err error)
	// SeqOut drives up to 32 bits, LSB-first, changing data on
	// falling edges.
	SeqOut(data uint32, cycles int) error
	// SeqOutParity is SeqOut plus one extra cycle carrying the odd
	// parity bit of data.
	SeqOutParity(data uint32, cycles int) error
	// Turnaround inserts one clock cycle of high-Z on SWDIO. toHost
	// is true when the line is about to be driven by the host after
	// the turnaround (i.e. the target was driving before).
	Turnaround(toHost bool) error
	// LineReset drives SWDIO high for at least 50 cycles followed by
	// the JTAG-to-SWD or target-select sequence, to recover a wire
	// that has lost sync.
	LineReset() error
	// SetClock sets the target clock rate and returns the achieved
	// rate, which may be lower than requested.
	SetClock(f physic.Frequency) (physic.Frequency, error)
}

// JTAGBus is the set of primitives a JTAG transport must provide:
// TMS/TDI clocking, TDO sampling, and a TAP state-machine navigator.
type JTAGBus interface {
	// TMS clocks count bits of TMS (LSB-first in bits), leaving TDI
	// unchanged, and returns the TAP to a new state as a side effect
	// of the sequence driven by the caller.
	TMS(bits uint8, count int) error
	// ShiftIR clocks an arbitrary-length bitstream through the
	// current instruction register, from the Shift-IR state, and
	// returns what came back on TDO.
	ShiftIR(out []byte, bits int) ([]byte, error)
	// ShiftDR is ShiftIR for the data register.
	ShiftDR(out []byte, bits int) ([]byte, error)
	// GotoState moves the TAP from its currently-tracked state to
	// target using the minimal TMS sequence.
	GotoState(target TAPState) error
	// Reset drives at least 5 TMS=1 cycles to force Test-Logic-Reset
	// regardless of current state.
	Reset() error
	SetClock(f physic.Frequency) (physic.Frequency, error)
}
