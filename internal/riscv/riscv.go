// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package riscv implements target.Core for RISC-V cores behind a
// Debug Module, per spec.md §5.2: abstract register access via the
// command/data0/data1 registers, memory access by program-buffer
// execution, and the trigger module (tselect/tdata1/tdata2) for
// hardware breakpoints and watchpoints, following the upstream
// RISC-V debug spec's encodings verbatim as spec.md requires.
package riscv

import (
	"encoding/binary"
	"errors"
	"time"

	"periph.io/x/blackmagic/internal/target"
)

// DMI is the Debug Module Interface: a 7-bit register address, 32-bit
// data, read/write cycle, normally carried over a JTAG "dmi" scan
// register. internal/wire's JTAGBus supplies the underlying shift;
// this interface is the abstraction internal/riscv actually consumes,
// the same narrowing internal/cortexm does over *adiv5.AP.
type DMI interface {
	ReadDMI(addr uint8) (uint32, error)
	WriteDMI(addr uint8, v uint32) error
}

// Debug Module register addresses, RISC-V debug spec §3.14.
const (
	dmData0       uint8 = 0x04
	dmData1       uint8 = 0x05
	dmControl     uint8 = 0x10
	dmStatus      uint8 = 0x11
	dmAbstractcs  uint8 = 0x16
	dmCommand     uint8 = 0x17
	dmProgbuf0    uint8 = 0x20
)

const (
	dmcontrolHaltreq        uint32 = 1 << 31
	dmcontrolResumereq      uint32 = 1 << 30
	dmcontrolAckhavereset   uint32 = 1 << 28
	dmcontrolHartselloShift        = 16
	dmcontrolNdmreset       uint32 = 1 << 1
	dmcontrolDmactive       uint32 = 1 << 0
)

const (
	dmstatusAllhalted  uint32 = 1 << 9
	dmstatusAnyhalted  uint32 = 1 << 8
	dmstatusAllrunning uint32 = 1 << 11
	dmstatusAllresumeack uint32 = 1 << 17
)

const (
	abstractcsBusy    uint32 = 1 << 12
	abstractcsCmderrMask uint32 = 0x7 << 8
)

// command.cmdtype=0 (access register): aarsize[22:20], postexec[18],
// transfer[17], write[16], regno[15:0].
const (
	cmdAccessRegister uint32 = 0 << 24
	aarSize32         uint32 = 2 << 20
	cmdPostexec       uint32 = 1 << 18
	cmdTransfer       uint32 = 1 << 17
	cmdWrite          uint32 = 1 << 16
)

// regno encoding: GPRs live at 0x1000+n, CSRs at their own CSR number.
const regnoGPRBase uint16 = 0x1000

// CSR numbers the trigger module and dpc use.
const (
	csrDpc    uint16 = 0x7B1
	csrTselect uint16 = 0x7A0
	csrTdata1  uint16 = 0x7A1
	csrTdata2  uint16 = 0x7A2
)

// tdata1 (mcontrol) field layout, RISC-V debug spec §5.1's "match
// control" trigger type 2.
const (
	mcontrolType2   uint32 = 2 << 28
	mcontrolDmode   uint32 = 1 << 27
	mcontrolMExec   uint32 = 1 << 2 // EXECUTE
	mcontrolMLoad   uint32 = 1 << 0 // LOAD
	mcontrolMStore  uint32 = 1 << 1 // STORE
	mcontrolMMatchEqual uint32 = 0 << 7
	mcontrolMAction  uint32 = 1 << 12 // enter debug mode
	mcontrolM        uint32 = 1 << 6  // match in M-mode
)

const pollTimeout = 250 * time.Millisecond

// regCount mirrors GDB's RISC-V32 g-packet: x0-x31 plus pc.
const regCount = 33

// Core implements target.Core for one RISC-V hart.
type Core struct {
	dmi  DMI
	hart uint32

	tm TriggerModule

	halted bool
}

// New brings up the Debug Module (dmactive) with the targeted hart
// selected. It does not halt the hart.
func New(dmi DMI, hart uint32) (*Core, error) {
	c := &Core{dmi: dmi, hart: hart}
	if err := dmi.WriteDMI(dmControl, dmcontrolDmactive|c.hartsel()); err != nil {
		return nil, err
	}
	c.tm.core = c
	return c, nil
}

func (c *Core) hartsel() uint32 { return (c.hart & 0x3FF) << dmcontrolHartselloShift }

func (c *Core) waitNotBusy() error {
	deadline := time.Now().Add(pollTimeout)
	for {
		v, err := c.dmi.ReadDMI(dmAbstractcs)
		if err != nil {
			return err
		}
		if v&abstractcsBusy == 0 {
			if v&abstractcsCmderrMask != 0 {
				// Clear sticky cmderr by writing 1s, the spec's documented
				// acknowledgement.
				_ = c.dmi.WriteDMI(dmAbstractcs, abstractcsCmderrMask)
				return errors.New("riscv: abstract command error")
			}
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("riscv: abstractcs busy timeout")
		}
	}
}

// readReg reads one GPR/CSR through the abstract register access
// command.
func (c *Core) readReg(regno uint16) (uint32, error) {
	cmd := cmdAccessRegister | aarSize32 | cmdTransfer | uint32(regno)
	if err := c.dmi.WriteDMI(dmCommand, cmd); err != nil {
		return 0, err
	}
	if err := c.waitNotBusy(); err != nil {
		return 0, err
	}
	return c.dmi.ReadDMI(dmData0)
}

func (c *Core) writeReg(regno uint16, v uint32) error {
	if err := c.dmi.WriteDMI(dmData0, v); err != nil {
		return err
	}
	cmd := cmdAccessRegister | aarSize32 | cmdTransfer | cmdWrite | uint32(regno)
	if err := c.dmi.WriteDMI(dmCommand, cmd); err != nil {
		return err
	}
	return c.waitNotBusy()
}

// MemRead/MemWrite use the program-buffer fallback spec.md §5.2
// names: stage the address into a scratch GPR (x10/a0), execute a
// load/store via the program buffer's postexec bit, then read the
// result back out of the same scratch register. A store first stages
// the value in x11/a1.
const scratchReg = regnoGPRBase + 10 // x10 / a0

func (c *Core) MemRead(addr uint32, b []byte) error {
	for i := 0; i+4 <= len(b); i += 4 {
		v, err := c.loadWord(addr + uint32(i))
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(b[i:], v)
	}
	return nil
}

func (c *Core) MemWrite(addr uint32, b []byte) error {
	for i := 0; i+4 <= len(b); i += 4 {
		if err := c.storeWord(addr+uint32(i), binary.LittleEndian.Uint32(b[i:])); err != nil {
			return err
		}
	}
	return nil
}

// Program buffer contents loadWord/storeWord write into
// progbuf0/progbuf1: one load or store through a0, then ebreak to
// return control to the Debug Module.
const (
	progLW     uint32 = 0x00052503 // lw a0, 0(a0)
	progSW     uint32 = 0x00b52023 // sw a1, 0(a0)
	progEBreak uint32 = 0x00100073 // ebreak
)

func (c *Core) loadWord(addr uint32) (uint32, error) {
	if err := c.writeReg(scratchReg, addr); err != nil {
		return 0, err
	}
	if err := c.dmi.WriteDMI(dmProgbuf0, progLW); err != nil {
		return 0, err
	}
	if err := c.dmi.WriteDMI(dmProgbuf0+1, progEBreak); err != nil {
		return 0, err
	}
	cmd := cmdAccessRegister | aarSize32 | cmdTransfer | cmdPostexec | uint32(scratchReg)
	if err := c.dmi.WriteDMI(dmCommand, cmd); err != nil {
		return 0, err
	}
	if err := c.waitNotBusy(); err != nil {
		return 0, err
	}
	return c.readReg(scratchReg)
}

func (c *Core) storeWord(addr, v uint32) error {
	if err := c.writeReg(scratchReg, addr); err != nil {
		return err
	}
	if err := c.writeReg(regnoGPRBase+11, v); err != nil { // x11 / a1
		return err
	}
	if err := c.dmi.WriteDMI(dmProgbuf0, progSW); err != nil {
		return err
	}
	if err := c.dmi.WriteDMI(dmProgbuf0+1, progEBreak); err != nil {
		return err
	}
	cmd := cmdAccessRegister | aarSize32 | cmdTransfer | cmdPostexec | uint32(scratchReg)
	if err := c.dmi.WriteDMI(dmCommand, cmd); err != nil {
		return err
	}
	return c.waitNotBusy()
}

// RegsRead returns x0-x31 and pc as GDB's RISC-V32 g-packet expects.
func (c *Core) RegsRead() ([]byte, error) {
	out := make([]byte, regCount*4)
	for i := 0; i < 32; i++ {
		v, err := c.readReg(regnoGPRBase + uint16(i))
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	pc, err := c.readReg(csrDpc)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(out[32*4:], pc)
	return out, nil
}

func (c *Core) RegsWrite(b []byte) error {
	for i := 0; i < 32 && (i+1)*4 <= len(b); i++ {
		if err := c.writeReg(regnoGPRBase+uint16(i), binary.LittleEndian.Uint32(b[i*4:])); err != nil {
			return err
		}
	}
	if (32+1)*4 <= len(b) {
		if err := c.writeReg(csrDpc, binary.LittleEndian.Uint32(b[32*4:])); err != nil {
			return err
		}
	}
	return nil
}

// HaltPoll reads dmstatus for this hart without issuing any request.
func (c *Core) HaltPoll() (target.RunState, error) {
	v, err := c.dmi.ReadDMI(dmStatus)
	if err != nil {
		return target.StateLost, err
	}
	if v&dmstatusAnyhalted != 0 {
		c.halted = true
		return target.StateHalted, nil
	}
	c.halted = false
	return target.StateRunning, nil
}

// Halt sets dmcontrol.haltreq and waits for allhalted.
func (c *Core) Halt() error {
	if err := c.dmi.WriteDMI(dmControl, dmcontrolDmactive|c.hartsel()|dmcontrolHaltreq); err != nil {
		return err
	}
	deadline := time.Now().Add(pollTimeout)
	for {
		v, err := c.dmi.ReadDMI(dmStatus)
		if err != nil {
			return err
		}
		if v&dmstatusAllhalted != 0 {
			break
		}
		if time.Now().After(deadline) {
			return errors.New("riscv: halt timeout")
		}
	}
	c.halted = true
	return c.dmi.WriteDMI(dmControl, dmcontrolDmactive|c.hartsel())
}

// Resume clears haltreq and sets resumereq, per spec.md §5.2.
func (c *Core) Resume() error {
	if err := c.dmi.WriteDMI(dmControl, dmcontrolDmactive|c.hartsel()|dmcontrolResumereq); err != nil {
		return err
	}
	c.halted = false
	return c.dmi.WriteDMI(dmControl, dmcontrolDmactive|c.hartsel())
}

// Step writes dcsr.step before resuming, per spec.md §5.2's "step by
// writing dcsr.step before resume".
const csrDcsr uint16 = 0x7B0
const dcsrStep uint32 = 1 << 2

func (c *Core) Step() error {
	dcsr, err := c.readReg(csrDcsr)
	if err != nil {
		return err
	}
	if err := c.writeReg(csrDcsr, dcsr|dcsrStep); err != nil {
		return err
	}
	if err := c.Resume(); err != nil {
		return err
	}
	deadline := time.Now().Add(pollTimeout)
	for {
		v, err := c.dmi.ReadDMI(dmStatus)
		if err != nil {
			return err
		}
		if v&dmstatusAllhalted != 0 {
			c.halted = true
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("riscv: step timeout")
		}
	}
}

// Reset pulses ndmreset, then writes ackhavereset to acknowledge the
// reset. It does not wait for the Debug Module to report havereset.
func (c *Core) Reset() error {
	if err := c.dmi.WriteDMI(dmControl, dmcontrolDmactive|c.hartsel()|dmcontrolNdmreset); err != nil {
		return err
	}
	if err := c.dmi.WriteDMI(dmControl, dmcontrolDmactive|c.hartsel()); err != nil {
		return err
	}
	return c.dmi.WriteDMI(dmControl, dmcontrolDmactive|c.hartsel()|dmcontrolAckhavereset)
}

// BreakwatchSet/BreakwatchClear delegate to the trigger module.
func (c *Core) BreakwatchSet(bw *target.Breakwatch) error {
	slot, err := c.tm.alloc(bw)
	if err != nil {
		return err
	}
	bw.Reserved[0] = uint32(slot)
	return nil
}

func (c *Core) BreakwatchClear(bw *target.Breakwatch) error {
	return c.tm.free(int(bw.Reserved[0]))
}

// RegFileXML is the target-description XML for a bare RV32I core.
func (c *Core) RegFileXML() []byte { return []byte(riscv32TargetXML) }

const riscv32TargetXML = `<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target>
  <architecture>riscv:rv32</architecture>
  <feature name="org.gnu.gdb.riscv.cpu">
    <reg name="pc" bitsize="32" type="code_ptr"/>
  </feature>
</target>
`

var _ target.Core = (*Core)(nil)
