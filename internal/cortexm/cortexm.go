// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cortexm implements target.Core for ARM Cortex-M cores: the
// DHCSR halt/resume/step state machine, DCRSR/DCRDR register-file
// access, and the FPB/DWT hardware breakpoint/watchpoint comparator
// allocators, per spec.md §5.1.
//
// It polls DHCSR the way ftdi/handle.go polls the FTDI status byte
// with a deadline loop rather than blocking indefinitely.
package cortexm

import (
	"encoding/binary"
	"errors"
	"time"

	"periph.io/x/blackmagic/internal/target"
)

// MemAP is the subset of *adiv5.AP the core needs; kept as an
// interface so tests can fake it without constructing a real DP/AP.
type MemAP interface {
	ReadMem32(addr uint32) (uint32, error)
	WriteMem32(addr, v uint32) error
}

// Debug register addresses, System Control Space, per ARMv7-M/ARMv8-M.
const (
	regDHCSR uint32 = 0xE000EDF0
	regDCRSR uint32 = 0xE000EDF4
	regDCRDR uint32 = 0xE000EDF8
	regDEMCR uint32 = 0xE000EDFC
	regAIRCR uint32 = 0xE000ED0C
)

const (
	dhcsrKey       uint32 = 0xA05F0000
	dhcsrDebugen   uint32 = 1 << 0
	dhcsrHalt      uint32 = 1 << 1
	dhcsrStep      uint32 = 1 << 2
	dhcsrMaskints  uint32 = 1 << 3
	dhcsrSRegrdy   uint32 = 1 << 16
	dhcsrSHalt     uint32 = 1 << 17
	dhcsrSLockup   uint32 = 1 << 19
	dhcsrSResetSt  uint32 = 1 << 25
)

const (
	aircrVectkey     uint32 = 0x05FA << 16
	aircrSysresetreq uint32 = 1 << 2
	aircrVectclractive uint32 = 1 << 1
)

const demcrVcCorereset uint32 = 1 << 0
const demcrDwtena uint32 = 1 << 24

// pollTimeout bounds every DHCSR-status wait, the same fail-fast
// contract spec.md's SWD_WAIT_TIMEOUT gives the ADIv5 transport.
const pollTimeout = 250 * time.Millisecond

// regCount is the number of 32-bit registers GDB's g/G packet
// exchanges for a Cortex-M: r0-r12, sp, lr, pc, xpsr. msp/psp/control
// exist on every core but aren't part of GDB's org.gnu.gdb.arm.m-profile
// feature, so they're reachable only via DCRSR's banked-register
// selectors, not g/G.
const regCount = 17

// dcrsr register selector indices, per the ARMv7-M debug core
// register bank.
const (
	dcrselR0  = 0
	dcrselSP  = 13
	dcrselLR  = 14
	dcrselPC  = 15
	dcrselPSR = 16
)

// Core implements target.Core for one Cortex-M CPU reachable through
// a MEM-AP.
type Core struct {
	mem MemAP

	fpb FPB
	dwt DWT

	halted bool
}

// New wraps mem as a Cortex-M debug core: it sets C_DEBUGEN, enables
// the DWT (DEMCR.TRCENA) and reads the FPB/DWT comparator counts. It
// neither halts the core nor arms reset vector catch.
func New(mem MemAP) (*Core, error) {
	c := &Core{mem: mem}
	if err := c.writeDHCSR(dhcsrDebugen); err != nil {
		return nil, err
	}
	if err := mem.WriteMem32(regDEMCR, demcrDwtena); err != nil {
		return nil, err
	}
	if err := c.fpb.attach(mem); err != nil {
		return nil, err
	}
	if err := c.dwt.attach(mem); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Core) writeDHCSR(bits uint32) error {
	return c.mem.WriteMem32(regDHCSR, dhcsrKey|dhcsrDebugen|bits)
}

func (c *Core) readDHCSR() (uint32, error) {
	return c.mem.ReadMem32(regDHCSR)
}

// MemRead/MemWrite pass straight through to the owning MEM-AP;
// Cortex-M has no separate "core bus" view from the debugger's side.
func (c *Core) MemRead(addr uint32, b []byte) error {
	if rb, ok := c.mem.(interface{ ReadBlock(uint32, []byte) error }); ok {
		return rb.ReadBlock(addr, b)
	}
	for i := 0; i+4 <= len(b); i += 4 {
		v, err := c.mem.ReadMem32(addr+uint32(i))
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(b[i:], v)
	}
	return nil
}

func (c *Core) MemWrite(addr uint32, b []byte) error {
	if wb, ok := c.mem.(interface{ WriteBlock(uint32, []byte) error }); ok {
		return wb.WriteBlock(addr, b)
	}
	for i := 0; i+4 <= len(b); i += 4 {
		v := binary.LittleEndian.Uint32(b[i:])
		if err := c.mem.WriteMem32(addr+uint32(i), v); err != nil {
			return err
		}
	}
	return nil
}

// readCoreReg reads one register through DCRSR/DCRDR, spinning on
// S_REGRDY per the ARMv7-M debug core register access protocol.
func (c *Core) readCoreReg(sel uint32) (uint32, error) {
	if err := c.mem.WriteMem32(regDCRSR, sel&0x1F); err != nil {
		return 0, err
	}
	deadline := time.Now().Add(pollTimeout)
	for {
		v, err := c.readDHCSR()
		if err != nil {
			return 0, err
		}
		if v&dhcsrSRegrdy != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, errors.New("cortexm: S_REGRDY timeout")
		}
	}
	return c.mem.ReadMem32(regDCRDR)
}

func (c *Core) writeCoreReg(sel uint32, v uint32) error {
	if err := c.mem.WriteMem32(regDCRDR, v); err != nil {
		return err
	}
	if err := c.mem.WriteMem32(regDCRSR, sel&0x1F|1<<16); err != nil {
		return err
	}
	deadline := time.Now().Add(pollTimeout)
	for {
		s, err := c.readDHCSR()
		if err != nil {
			return err
		}
		if s&dhcsrSRegrdy != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("cortexm: S_REGRDY timeout")
		}
	}
}

// RegsRead returns r0-r12, sp, lr, pc, xpsr as the little-endian blob
// GDB's g packet expects.
func (c *Core) RegsRead() ([]byte, error) {
	out := make([]byte, regCount*4)
	for i := 0; i < regCount; i++ {
		v, err := c.readCoreReg(uint32(i))
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out, nil
}

// RegsWrite is RegsRead's G-packet counterpart.
func (c *Core) RegsWrite(b []byte) error {
	for i := 0; i < regCount && (i+1)*4 <= len(b); i++ {
		if err := c.writeCoreReg(uint32(i), binary.LittleEndian.Uint32(b[i*4:])); err != nil {
			return err
		}
	}
	return nil
}

// HaltPoll reads DHCSR without blocking and reports the run state.
func (c *Core) HaltPoll() (target.RunState, error) {
	v, err := c.readDHCSR()
	if err != nil {
		return target.StateLost, err
	}
	if v&dhcsrSLockup != 0 {
		return target.StateLost, nil
	}
	if v&dhcsrSResetSt != 0 && v&dhcsrSHalt != 0 {
		c.halted = true
		return target.StateResetHalted, nil
	}
	if v&dhcsrSHalt != 0 {
		c.halted = true
		return target.StateHalted, nil
	}
	c.halted = false
	return target.StateRunning, nil
}

// Halt asserts C_HALT and waits for S_HALT, per spec.md §5.1.
func (c *Core) Halt() error {
	if err := c.writeDHCSR(dhcsrHalt); err != nil {
		return err
	}
	deadline := time.Now().Add(pollTimeout)
	for {
		v, err := c.readDHCSR()
		if err != nil {
			return err
		}
		if v&dhcsrSHalt != 0 {
			c.halted = true
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("cortexm: halt timeout")
		}
	}
}

// Resume clears C_HALT/C_STEP, letting the core run free.
func (c *Core) Resume() error {
	c.halted = false
	return c.writeDHCSR(0)
}

// Step writes C_STEP|C_MASKINTS with C_HALT clear, so the halted core
// executes exactly one instruction and halts again, per spec.md §5.1's
// single-step contract; once S_HALT is seen it re-asserts C_HALT.
func (c *Core) Step() error {
	if err := c.writeDHCSR(dhcsrStep | dhcsrMaskints); err != nil {
		return err
	}
	deadline := time.Now().Add(pollTimeout)
	for {
		v, err := c.readDHCSR()
		if err != nil {
			return err
		}
		if v&dhcsrSHalt != 0 {
			c.halted = true
			return c.writeDHCSR(dhcsrHalt)
		}
		if time.Now().After(deadline) {
			return errors.New("cortexm: step timeout")
		}
	}
}

// Reset asserts SYSRESETREQ and waits for S_RESET_ST to clear again
// (the reset pulse completing), per spec.md §5.1's reset semantics.
func (c *Core) Reset() error {
	if err := c.mem.WriteMem32(regAIRCR, aircrVectkey|aircrSysresetreq); err != nil {
		return err
	}
	deadline := time.Now().Add(pollTimeout)
	for {
		v, err := c.readDHCSR()
		if err != nil {
			return err
		}
		if v&dhcsrSResetSt == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("cortexm: reset pulse timeout")
		}
	}
}

// BreakwatchSet allocates a hardware slot from the FPB (software and
// hardware breakpoints both use FPB literal-comparator slots on
// Cortex-M) or the DWT (watchpoints), per spec.md §5.1/§6.
func (c *Core) BreakwatchSet(bw *target.Breakwatch) error {
	switch bw.Kind {
	case target.BreakwatchSoftware, target.BreakwatchHardware:
		slot, err := c.fpb.alloc(bw.Addr)
		if err != nil {
			return err
		}
		bw.Reserved[0] = uint32(slot)
		return nil
	default:
		slot, err := c.dwt.alloc(bw)
		if err != nil {
			return err
		}
		bw.Reserved[0] = uint32(slot)
		return nil
	}
}

// BreakwatchClear frees the hardware slot bw.Reserved[0] names.
func (c *Core) BreakwatchClear(bw *target.Breakwatch) error {
	switch bw.Kind {
	case target.BreakwatchSoftware, target.BreakwatchHardware:
		return c.fpb.free(int(bw.Reserved[0]))
	default:
		return c.dwt.free(int(bw.Reserved[0]))
	}
}

// RegFileXML is the target-description XML GDB's qXfer:features:read
// serves for a plain ARMv7-M core (no FPU). It advertises the
// standard 17-register org.gnu.gdb.arm.m-profile feature only; msp,
// psp and control are debuggable (DCRSR reaches them) but have no
// conventional g/G packet slot, so they're left off this set rather
// than invented a private encoding for.
func (c *Core) RegFileXML() []byte {
	return []byte(cortexMTargetXML)
}

const cortexMTargetXML = `<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target>
  <architecture>arm</architecture>
  <feature name="org.gnu.gdb.arm.m-profile">
    <reg name="r0" bitsize="32"/>
    <reg name="r1" bitsize="32"/>
    <reg name="r2" bitsize="32"/>
    <reg name="r3" bitsize="32"/>
    <reg name="r4" bitsize="32"/>
    <reg name="r5" bitsize="32"/>
    <reg name="r6" bitsize="32"/>
    <reg name="r7" bitsize="32"/>
    <reg name="r8" bitsize="32"/>
    <reg name="r9" bitsize="32"/>
    <reg name="r10" bitsize="32"/>
    <reg name="r11" bitsize="32"/>
    <reg name="r12" bitsize="32"/>
    <reg name="sp" bitsize="32" type="data_ptr"/>
    <reg name="lr" bitsize="32"/>
    <reg name="pc" bitsize="32" type="code_ptr"/>
    <reg name="xpsr" bitsize="32"/>
  </feature>
</target>
`

var _ target.Core = (*Core)(nil)
