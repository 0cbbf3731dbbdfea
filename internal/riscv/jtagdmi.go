// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package riscv

import "periph.io/x/blackmagic/internal/wire"

// irDMI is the JTAG instruction the RISC-V debug spec (§6.1.4)
// reserves for Debug Module Interface access. Debug Transport Modules
// disagree on IR width but agree on this 5-bit encoding for the
// common case of a single TAP with a 5-bit IR.
const (
	irDMI  = 0x11
	irBits = 5
)

// dmiAbits/dmiBits are the on-wire dmi register layout for a 7-bit
// address Debug Module, RISC-V debug spec §6.1.5: 2 op bits, 32 data
// bits, then the address, LSB-first.
const (
	dmiAbits = 7
	dmiBits  = 2 + 32 + dmiAbits
)

const (
	dmiOpNop uint8 = iota
	dmiOpRead
	dmiOpWrite
)

// JTAGDMI implements DMI by shifting the dmi scan register through a
// wire.JTAGBus: the same narrow-interface-over-a-shared-bus idiom
// internal/wire/ftdiprobe gives ShiftIR/ShiftDR, applied here to the
// one DMI consumer actually needs.
type JTAGDMI struct {
	jtag wire.JTAGBus
}

// NewJTAGDMI wraps jtag as a RISC-V DMI, selecting the dmi
// instruction once up front so ReadDMI/WriteDMI only ever need to
// navigate Shift-DR.
func NewJTAGDMI(jtag wire.JTAGBus) (*JTAGDMI, error) {
	d := &JTAGDMI{jtag: jtag}
	if err := d.selectDMI(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *JTAGDMI) selectDMI() error {
	if err := d.jtag.GotoState(wire.TAPShiftIR); err != nil {
		return err
	}
	_, err := d.jtag.ShiftIR([]byte{irDMI}, irBits)
	return err
}

// encodeDMI/decodeDMI pack and unpack the 41-bit dmi register into
// the byte slice ShiftDR wants, LSB-first.
func encodeDMI(addr uint8, data uint32, op uint8) []byte {
	v := uint64(op&0x3) | uint64(data)<<2 | uint64(addr&0x7f)<<34
	b := make([]byte, (dmiBits+7)/8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func decodeDMI(b []byte) (addr uint8, data uint32, op uint8) {
	var v uint64
	for i, x := range b {
		v |= uint64(x) << (8 * i)
	}
	return uint8(v >> 34), uint32(v >> 2), uint8(v & 0x3)
}

// xfer shifts one dmi scan from Shift-DR and returns what came back.
// dmi access is pipelined (RISC-V debug spec §6.1.5): the data
// returned by a scan belongs to the *previous* scan's operation, not
// the one just issued.
func (d *JTAGDMI) xfer(addr uint8, data uint32, op uint8) (uint32, error) {
	if err := d.jtag.GotoState(wire.TAPShiftDR); err != nil {
		return 0, err
	}
	in, err := d.jtag.ShiftDR(encodeDMI(addr, data, op), dmiBits)
	if err != nil {
		return 0, err
	}
	_, rdata, _ := decodeDMI(in)
	return rdata, nil
}

// ReadDMI implements DMI.ReadDMI: issue the read, then shift a nop to
// retrieve the pipelined result.
func (d *JTAGDMI) ReadDMI(addr uint8) (uint32, error) {
	if _, err := d.xfer(addr, 0, dmiOpRead); err != nil {
		return 0, err
	}
	return d.xfer(0, 0, dmiOpNop)
}

// WriteDMI implements DMI.WriteDMI.
func (d *JTAGDMI) WriteDMI(addr uint8, v uint32) error {
	_, err := d.xfer(addr, v, dmiOpWrite)
	return err
}
