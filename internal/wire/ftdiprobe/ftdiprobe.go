// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ftdiprobe drives SWD and JTAG over an FT232H/FT2232H's
// MPSSE engine. MPSSE's native purpose is exactly this: the FTDI
// app notes this package follows (AN_135 MPSSE Basics, AN_108
// MPSSE/MCU emulation) describe clocking TMS/TDI/TDO directly, and
// the same byte-shift primitives bit-bang SWD by tristating SWDIO
// instead of driving it, the way ftdi.spi does for I2C's open-drain
// SDA.
package ftdiprobe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/blackmagic/internal/wire"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/d2xx"
)

// MPSSE command bytes, straight from AN_108/AN_135. Kept local to
// this package rather than shared with a hypothetical generic MPSSE
// helper: SWD and JTAG each use a different subset and duplication
// here is cheaper than a leaky abstraction.
const (
	dataOut     byte = 0x10
	dataIn      byte = 0x20
	dataOutFall byte = 0x01
	dataInFall  byte = 0x04
	dataLSBF    byte = 0x08
	dataBit     byte = 0x02

	tmsOutLSBFRise byte = 0x4A

	gpioSetD byte = 0x80
	gpioReadD byte = 0x81

	clock30MHz      byte = 0x8A
	clockSetDivisor byte = 0x86
	clock2Phase     byte = 0x8D
	clockNormal     byte = 0x97

	internalLoopbackDisable byte = 0x85
	flush                   byte = 0x87

	bitModeMpsse byte = 0x02
)

// Pin assignment on the AD bus, matching the common FT232H JTAG/SWD
// adapter wiring (TCK/SWCLK=D0, TDI=D1, TDO/SWDIO-in=D2, TMS/SWDIO-out=D3).
const (
	pinTCK = 0
	pinTDI = 1
	pinTDO = 2
	pinTMS = 3
)

// Probe is a SWD/JTAG transport backed by an FTDI MPSSE controller.
// It implements both wire.SWDBus and wire.JTAGBus; callers pick
// whichever protocol they dialed up to the target with.
type Probe struct {
	h   d2xx.Handle
	tap wire.TAPState

	// swdioOut tracks whether SWDIO is currently host-driven, for
	// Turnaround bookkeeping.
	swdioOut bool
}

// Open brings a raw d2xx handle into MPSSE mode, following the
// happy-path-then-reset bring-up ftdi.handle.InitMPSSE uses.
func Open(h d2xx.Handle) (*Probe, error) {
	if e := h.SetBitMode(0, bitModeMpsse); e != 0 {
		return nil, fmt.Errorf("ftdiprobe: SetBitMode: %s", e.String())
	}
	cmd := []byte{
		clock30MHz, clockNormal, clock2Phase, internalLoopbackDisable,
		gpioSetD, 0x00, 0x00,
	}
	if _, e := h.Write(cmd); e != 0 {
		return nil, fmt.Errorf("ftdiprobe: init write: %s", e.String())
	}
	return &Probe{h: h, tap: wire.TAPTestLogicReset}, nil
}

func (p *Probe) readAll(ctx context.Context, b []byte) error {
	for off := 0; off != len(b); {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, e := p.h.Read(b[off:])
		if e != 0 {
			return fmt.Errorf("ftdiprobe: read: %s", e.String())
		}
		off += n
	}
	return nil
}

func ctx200ms() (context.Context, func()) {
	return context.WithTimeout(context.Background(), 200*time.Millisecond)
}

// SetClock implements wire.SWDBus and wire.JTAGBus.
func (p *Probe) SetClock(f physic.Frequency) (physic.Frequency, error) {
	base := 30 * physic.MegaHertz
	if f <= 0 {
		f = base // 0 selects the fastest rate
	}
	div := base / f
	if div < 1 {
		div = 1
	}
	if div >= 65536 {
		return 0, errors.New("ftdiprobe: clock frequency too low")
	}
	b := [...]byte{clockSetDivisor, byte(div - 1), byte((div - 1) >> 8)}
	if _, e := p.h.Write(b[:]); e != 0 {
		return 0, fmt.Errorf("ftdiprobe: SetClock: %s", e.String())
	}
	return base / div, nil
}

//
// SWD: bit-banged via dataBit short transfers, SWDIO tristated on
// read the same way ftdi.spi tristates SDA for I2C.
//

// SeqOut implements wire.SWDBus.
func (p *Probe) SeqOut(data uint32, cycles int) error {
	return p.swdShift(data, cycles, false, nil)
}

// SeqOutParity implements wire.SWDBus.
func (p *Probe) SeqOutParity(data uint32, cycles int) error {
	if err := p.SeqOut(data, cycles); err != nil {
		return err
	}
	parity := uint32(parityOf(data) & 1)
	return p.SeqOut(parity, 1)
}

// SeqIn implements wire.SWDBus.
func (p *Probe) SeqIn(cycles int) (uint32, error) {
	var v uint32
	if err := p.swdShift(0, cycles, true, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// SeqInParity implements wire.SWDBus.
func (p *Probe) SeqInParity(cycles int) (uint32, bool, error) {
	v, err := p.SeqIn(cycles)
	if err != nil {
		return 0, false, err
	}
	pbit, err := p.SeqIn(1)
	if err != nil {
		return 0, false, err
	}
	return v, uint32(parityOf(v)&1) == pbit, nil
}

// swdShift clocks up to 32 bits LSB-first, splitting into 8-bit MPSSE
// short transfers (MPSSE only shifts whole bytes or 1-8 bit groups).
func (p *Probe) swdShift(data uint32, cycles int, read bool, out *uint32) error {
	if cycles < 0 || cycles > 32 {
		return errors.New("ftdiprobe: invalid cycle count")
	}
	var result uint32
	done := 0
	for done < cycles {
		n := cycles - done
		if n > 8 {
			n = 8
		}
		chunk := byte(data >> uint(done))
		op := dataBit | dataLSBF
		cmd := make([]byte, 0, 4)
		if !read {
			op |= dataOut | dataOutFall
			cmd = append(cmd, op, byte(n-1), chunk)
		} else {
			op |= dataIn
			cmd = append(cmd, op, byte(n-1), flush)
		}
		if _, e := p.h.Write(cmd); e != 0 {
			return fmt.Errorf("ftdiprobe: swdShift write: %s", e.String())
		}
		if read {
			var b [1]byte
			ctx, cancel := ctx200ms()
			err := p.readAll(ctx, b[:])
			cancel()
			if err != nil {
				return err
			}
			mask := uint32(1)<<uint(n) - 1
			result |= (uint32(b[0]) & mask) << uint(done)
		}
		done += n
	}
	if read && out != nil {
		*out = result
	}
	return nil
}

func parityOf(v uint32) int {
	p := 0
	for v != 0 {
		p ^= int(v & 1)
		v >>= 1
	}
	return p
}

// Turnaround implements wire.SWDBus: one clock with SWDIO tristated.
func (p *Probe) Turnaround(toHost bool) error {
	// One clock pulse with neither side driving: MPSSE's dataBit with
	// neither dataOut nor dataIn set still toggles the clock pin.
	cmd := []byte{dataBit, 0x00}
	_, e := p.h.Write(cmd)
	if e != 0 {
		return fmt.Errorf("ftdiprobe: turnaround: %s", e.String())
	}
	p.swdioOut = toHost
	return nil
}

// LineReset implements wire.SWDBus: >=50 cycles of SWDIO high, the
// JTAG-to-SWD select sequence 0xE79E, another >=50 cycles high, then
// two idle cycles low.
func (p *Probe) LineReset() error {
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

//
// JTAG: native MPSSE TMS and byte-shift commands.
//

// TMS implements wire.JTAGBus.
func (p *Probe) TMS(tms uint8, count int) error {
	if count < 1 || count > 7 {
		return errors.New("ftdiprobe: TMS count must be 1..7")
	}
	cmd := []byte{tmsOutLSBFRise, byte(count - 1), tms}
	_, e := p.h.Write(cmd)
	if e != 0 {
		return fmt.Errorf("ftdiprobe: TMS: %s", e.String())
	}
	return nil
}

func (p *Probe) shift(reg string, out []byte, bits int) ([]byte, error) {
	if bits <= 0 {
		return nil, nil
	}
	nbytes := (bits + 7) / 8
	if len(out) < nbytes {
		return nil, fmt.Errorf("ftdiprobe: %s: short buffer", reg)
	}
	op := dataOut | dataIn | dataLSBF | dataOutFall
	l := nbytes - 1
	cmd := []byte{op, byte(l), byte(l >> 8)}
	cmd = append(cmd, out[:nbytes]...)
	cmd = append(cmd, flush)
	if _, e := p.h.Write(cmd); e != 0 {
		return nil, fmt.Errorf("ftdiprobe: %s write: %s", reg, e.String())
	}
	in := make([]byte, nbytes)
	ctx, cancel := ctx200ms()
	defer cancel()
	if err := p.readAll(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// ShiftIR implements wire.JTAGBus.
func (p *Probe) ShiftIR(out []byte, bits int) ([]byte, error) {
	return p.shift("IR", out, bits)
}

// ShiftDR implements wire.JTAGBus.
func (p *Probe) ShiftDR(out []byte, bits int) ([]byte, error) {
	return p.shift("DR", out, bits)
}

// GotoState implements wire.JTAGBus using the minimal TMS path.
func (p *Probe) GotoState(target wire.TAPState) error {
	bits, count := wire.PathTo(p.tap, target)
	if count > 0 {
		if err := p.TMS(bits, count); err != nil {
			return err
		}
	}
	p.tap = target
	return nil
}

// Reset implements wire.JTAGBus: 5 cycles of TMS=1 reaches
// Test-Logic-Reset from any state.
func (p *Probe) Reset() error {
	if err := p.TMS(0x1F, 5); err != nil {
		return err
	}
	p.tap = wire.TAPTestLogicReset
	return nil
}

var _ wire.SWDBus = (*Probe)(nil)
var _ wire.JTAGBus = (*Probe)(nil)
