// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpioprobe drives SWD and JTAG by toggling Linux GPIO-chip
// lines directly, for probes built on a Raspberry Pi (or similar)
// header rather than an FTDI adapter. Every clock edge and every
// sample is a single GPIO_V2_LINE_SET/GET_VALUES ioctl via
// internal/gpioline's LineSet, which batches all the lines of one
// protocol into one syscall so an edge costs one round trip, not one
// per pin.
package gpioprobe

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/blackmagic/internal/gpioline"
	"periph.io/x/blackmagic/internal/wire"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Bit positions within the LineSet's value word, in the order lines
// are requested.
const (
	bitSWCLK = 1 << 0
	bitSWDIO = 1 << 1

	bitTCK = 1 << 0
	bitTDI = 1 << 1
	bitTDO = 1 << 2
	bitTMS = 1 << 3
)

// SWDProbe bit-bangs SWD on two GPIO lines.
type SWDProbe struct {
	ls      *gpioline.LineSet
	delayed bool
	delay   time.Duration
}

// OpenSWD requests SWCLK and SWDIO from chip by name, matching the
// way gpioline.GPIOChip.LineSet requests a named line group.
func OpenSWD(chip *gpioline.GPIOChip, swclk, swdio string) (*SWDProbe, error) {
	ls, err := chip.LineSet(gpioline.LineOutput, gpio.NoEdge, gpio.PullUp, swclk, swdio)
	if err != nil {
		return nil, fmt.Errorf("gpioprobe: OpenSWD: %w", err)
	}
	return &SWDProbe{ls: ls}, nil
}

// clockFall drives SWCLK low with SWDIO at swdio, and clockRise drives
// SWCLK high with SWDIO held, so that data changes on the falling edge
// and is stable across the rising edge, as the SWD protocol requires.
func (p *SWDProbe) clockFall(swdio gpio.Level) error {
	bits := gpio.GPIOValue(0)
	if swdio == gpio.High {
		bits |= bitSWDIO
	}
	return p.ls.Out(bits, bitSWCLK|bitSWDIO)
}

func (p *SWDProbe) clockRise(swdio gpio.Level) error {
	bits := bitSWCLK
	if swdio == gpio.High {
		bits |= bitSWDIO
	}
	return p.ls.Out(gpio.GPIOValue(bits), bitSWCLK|bitSWDIO)
}

// SeqOut implements wire.SWDBus.
func (p *SWDProbe) SeqOut(data uint32, cycles int) error {
	for i := 0; i < cycles; i++ {
		lvl := gpio.Low
		if data&(1<<uint(i)) != 0 {
			lvl = gpio.High
		}
		if err := p.clockFall(lvl); err != nil {
			return err
		}
		if err := p.clockRise(lvl); err != nil {
			return err
		}
	}
	return nil
}

// SeqOutParity implements wire.SWDBus.
func (p *SWDProbe) SeqOutParity(data uint32, cycles int) error {
	if err := p.SeqOut(data, cycles); err != nil {
		return err
	}
	return p.SeqOut(uint32(parity(data)), 1)
}

// SeqIn implements wire.SWDBus.
func (p *SWDProbe) SeqIn(cycles int) (uint32, error) {
	var v uint32
	for i := 0; i < cycles; i++ {
		if err := p.ls.Out(0, bitSWCLK); err != nil {
			return 0, err
		}
		bits, err := p.ls.Read(bitSWDIO)
		if err != nil {
			return 0, err
		}
		if bits&bitSWDIO != 0 {
			v |= 1 << uint(i)
		}
		if err := p.ls.Out(bitSWCLK, bitSWCLK); err != nil {
			return 0, err
		}
	}
	return v, nil
}

// SeqInParity implements wire.SWDBus.
func (p *SWDProbe) SeqInParity(cycles int) (uint32, bool, error) {
	v, err := p.SeqIn(cycles)
	if err != nil {
		return 0, false, err
	}
	pbit, err := p.SeqIn(1)
	if err != nil {
		return 0, false, err
	}
	return v, uint32(parity(v)) == pbit, nil
}

// Turnaround implements wire.SWDBus: one clock with SWDIO left
// untouched (the direction switch itself is the caller no longer
// calling SeqOut, since this backend has no explicit output-enable).
func (p *SWDProbe) Turnaround(toHost bool) error {
	if err := p.ls.Out(0, bitSWCLK); err != nil {
		return err
	}
	return p.ls.Out(bitSWCLK, bitSWCLK)
}

// LineReset implements wire.SWDBus: >=50 cycles of SWDIO high, the
// JTAG-to-SWD select sequence 0xE79E, another >=50 cycles high, then
// two idle cycles low.
func (p *SWDProbe) LineReset() error {
	for _, s := range []struct {
		v uint32
		n int
	}{
		{0xFFFFFFFF, 32}, {0xFFFFFFFF, 20}, {0xE79E, 16},
		{0xFFFFFFFF, 32}, {0xFFFFFFFF, 20}, {0, 2},
	} {
		if err := p.SeqOut(s.v, s.n); err != nil {
			return err
		}
	}
	return nil
}

// SetClock implements wire.SWDBus. There is no hardware divider on a
// bit-banged GPIO line; instead an inter-edge delay is inserted, the
// same with-delay/no-delay split spec.md describes for SWD.
func (p *SWDProbe) SetClock(f physic.Frequency) (physic.Frequency, error) {
	if f <= 0 || f > physic.MegaHertz {
		p.delayed = false
		return physic.MegaHertz, nil
	}
	p.delayed = true
	p.delay = time.Second / time.Duration(f/physic.Hertz) / 2
	return f, nil
}

func parity(v uint32) int {
	p := 0
	for v != 0 {
		p ^= int(v & 1)
		v >>= 1
	}
	return p
}

var _ wire.SWDBus = (*SWDProbe)(nil)

// JTAGProbe bit-bangs JTAG on four GPIO lines: TCK, TDI, TDO, TMS.
type JTAGProbe struct {
	ls  *gpioline.LineSet
	tap wire.TAPState
}

// OpenJTAG requests TCK/TDI/TDO/TMS by name.
func OpenJTAG(chip *gpioline.GPIOChip, tck, tdi, tdo, tms string) (*JTAGProbe, error) {
	ls, err := chip.LineSet(gpioline.LineOutput, gpio.NoEdge, gpio.PullNoChange, tck, tdi, tdo, tms)
	if err != nil {
		return nil, fmt.Errorf("gpioprobe: OpenJTAG: %w", err)
	}
	return &JTAGProbe{ls: ls, tap: wire.TAPTestLogicReset}, nil
}

func (p *JTAGProbe) clock(tdi, tms gpio.Level) (tdo gpio.Level, err error) {
	bits := gpio.GPIOValue(0)
	if tdi == gpio.High {
		bits |= bitTDI
	}
	if tms == gpio.High {
		bits |= bitTMS
	}
	if err := p.ls.Out(bits, bitTDI|bitTMS); err != nil {
		return gpio.Low, err
	}
	v, err := p.ls.Read(bitTDO)
	if err != nil {
		return gpio.Low, err
	}
	lvl := gpio.Low
	if v&bitTDO != 0 {
		lvl = gpio.High
	}
	if err := p.ls.Out(bitTCK, bitTCK); err != nil {
		return lvl, err
	}
	if err := p.ls.Out(0, bitTCK); err != nil {
		return lvl, err
	}
	return lvl, nil
}

// TMS implements wire.JTAGBus.
func (p *JTAGProbe) TMS(bits uint8, count int) error {
	for i := 0; i < count; i++ {
		lvl := gpio.Low
		if bits&(1<<uint(i)) != 0 {
			lvl = gpio.High
		}
		if _, err := p.clock(gpio.Low, lvl); err != nil {
			return err
		}
	}
	return nil
}

func (p *JTAGProbe) shift(out []byte, n int, exitOnLast bool) ([]byte, error) {
	in := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		tdi := gpio.Low
		if out[i/8]&(1<<uint(i%8)) != 0 {
			tdi = gpio.High
		}
		tms := gpio.Low
		if exitOnLast && i == n-1 {
			tms = gpio.High
		}
		tdo, err := p.clock(tdi, tms)
		if err != nil {
			return nil, err
		}
		if tdo == gpio.High {
			in[i/8] |= 1 << uint(i%8)
		}
	}
	return in, nil
}

// ShiftIR implements wire.JTAGBus. Caller is assumed to already be
// in Shift-IR; the last bit also carries TMS=1 to move to Exit1-IR,
// matching the IEEE 1149.1 shift-register convention.
func (p *JTAGProbe) ShiftIR(out []byte, bits int) ([]byte, error) {
	in, err := p.shift(out, bits, true)
	if err == nil && bits > 0 {
		p.tap = wire.TAPExit1IR
	}
	return in, err
}

// ShiftDR implements wire.JTAGBus. Like ShiftIR, the last bit moves
// the TAP to Exit1-DR.
func (p *JTAGProbe) ShiftDR(out []byte, bits int) ([]byte, error) {
	in, err := p.shift(out, bits, true)
	if err == nil && bits > 0 {
		p.tap = wire.TAPExit1DR
	}
	return in, err
}

// GotoState implements wire.JTAGBus.
func (p *JTAGProbe) GotoState(target wire.TAPState) error {
	bits, count := wire.PathTo(p.tap, target)
	if count > 0 {
		if err := p.TMS(bits, count); err != nil {
			return err
		}
	}
	p.tap = target
	return nil
}

// Reset implements wire.JTAGBus.
func (p *JTAGProbe) Reset() error {
	if err := p.TMS(0x1F, 5); err != nil {
		return err
	}
	p.tap = wire.TAPTestLogicReset
	return nil
}

// SetClock implements wire.JTAGBus. See SWDProbe.SetClock.
func (p *JTAGProbe) SetClock(f physic.Frequency) (physic.Frequency, error) {
	if f <= 0 {
		return physic.MegaHertz, nil
	}
	return f, nil
}

var _ wire.JTAGBus = (*JTAGProbe)(nil)

// ErrNoChip is returned when no GPIO chip was discovered by the
// gpioline driver at Init time.
var ErrNoChip = errors.New("gpioprobe: no GPIO chip available")

// DefaultChip returns the first chip the gpioline driver registered,
// mirroring host.Init()'s "guaranteed to have all host drivers
// loaded" contract.
func DefaultChip() (*gpioline.GPIOChip, error) {
	if len(gpioline.Chips) == 0 {
		return nil, ErrNoChip
	}
	return gpioline.Chips[0], nil
}
