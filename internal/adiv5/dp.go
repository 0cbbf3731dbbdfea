// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package adiv5 implements the ARM ADIv5 Debug Port / Access Port
// register protocol: the request/ACK/data cycle, WAIT/FAULT
// recovery, SELECT-register banking, and MEM-AP memory transfers.
//
// It is structured the way ftdi/spi.go structures a bus: a
// long-lived Probe (one per physical wire transport) spawns DPs,
// each DP spawns APs, mirroring Port->Conn in the teacher.
package adiv5

import (
	"errors"
	"time"

	"periph.io/x/blackmagic/internal/wire"
)

// SWDWaitTimeout is spec.md's SWD_WAIT_TIMEOUT: total time the
// engine will spin on WAIT before giving up.
const SWDWaitTimeout = 250 * time.Millisecond

// DP register addresses (A[3:2] field of the request byte).
const (
	dpIDCODE byte = 0x0 // read
	dpABORT  byte = 0x0 // write
	dpCTRLSTAT byte = 0x4
	dpRESEND byte = 0x8 // read
	dpSELECT byte = 0x8 // write
	dpRDBUFF byte = 0xC // read-only
)

// CTRL/STAT bits relevant to fault recovery.
const (
	ctrlstatSTICKYORUN = 1 << 1
	ctrlstatSTICKYCMP  = 1 << 4
	ctrlstatSTICKYERR  = 1 << 5
	ctrlstatWDATAERR   = 1 << 7
	ctrlstatCDBGPWRUPACK = 1 << 29
	ctrlstatCDBGPWRUPREQ = 1 << 28
	ctrlstatCSYSPWRUPACK = 1 << 31
	ctrlstatCSYSPWRUPREQ = 1 << 30
)

// ABORT bits.
const (
	abortDAPABORT  = 1 << 0
	abortSTKCMPCLR = 1 << 1
	abortSTKERRCLR = 1 << 2
	abortWDERRCLR  = 1 << 3
	abortORUNERRCLR = 1 << 4
)

// ACK values returned by the target in the ACK phase.
const (
	ackOK    = 0b001
	ackWAIT  = 0b010
	ackFAULT = 0b100
)

// Version distinguishes ADIv5 from ADIv6 addressing, per spec.md §3.
type Version int

const (
	ADIv5 Version = iota
	ADIv6
)

// DP is one Debug Port: the root of the ADI hierarchy, directly
// reachable over the wire. There is at most one DP per wire
// transport, per spec.md §3.
type DP struct {
	bus     wire.SWDBus
	version Version

	// designer/part are only populated when TARGETID was read; ADIv5
	// makes no such guarantee.
	designer uint16
	part     uint16

	idcode uint32

	// selectCache avoids redundant SELECT writes, per spec.md §4.2
	// "AP access banking".
	selectCache    uint32
	selectValid    bool

	// aps is the arena of discovered Access Ports, indexed by APSEL;
	// cross-references elsewhere are by index, not pointer, per
	// spec.md Design Notes §9.
	aps []AP
}

// NewDP brings up a Debug Port over bus: line reset, JTAG-to-SWD
// sequence (implicit in LineReset for an SWD-only bus), and an
// initial IDCODE read to confirm the target answers.
func NewDP(bus wire.SWDBus) (*DP, error) {
	if err := bus.LineReset(); err != nil {
		return nil, err
	}
	dp := &DP{bus: bus, version: ADIv5}
	idcode, err := dp.ReadReg(dpIDCODE)
	if err != nil {
		return nil, err
	}
	dp.idcode = idcode
	return dp, nil
}

// IDCODE returns the IDCODE read when the DP was brought up.
func (dp *DP) IDCODE() uint32 { return dp.idcode }

// requestByte builds the 8-bit ADIv5 SWD request.
func requestByte(apnNotDp, rnw bool, a32 byte) byte {
	b := byte(1) // start
	if apnNotDp {
		b |= 1 << 1
	}
	if rnw {
		b |= 1 << 2
	}
	b |= (a32 & 0x3) << 3
	// parity is odd parity over APnDP, RnW, and the two address bits.
	p := 0
	for _, bit := range []bool{apnNotDp, rnw, a32&1 != 0, (a32>>1)&1 != 0} {
		if bit {
			p ^= 1
		}
	}
	if p%2 == 1 {
		b |= 1 << 5
	}
	b |= 1 << 7 // park
	return b
}

// xfer runs one ADIv5 request/ack/data cycle. regAddr is the raw
// register address (0x0, 0x4, 0x8 or 0xC); its A[3:2] bits are
// extracted here for the request byte.
func (dp *DP) xfer(apnNotDp, rnw bool, regAddr byte, wdata uint32) (uint32, error) {
	a32 := (regAddr >> 2) & 0x3
	req := requestByte(apnNotDp, rnw, a32)

	deadline := time.Now().Add(SWDWaitTimeout)
	for {
		if err := dp.bus.SeqOut(uint32(req), 8); err != nil {
			return 0, ErrProtocol
		}
		if err := dp.bus.Turnaround(false); err != nil {
			return 0, ErrProtocol
		}
		ack, err := dp.bus.SeqIn(3)
		if err != nil {
			return 0, ErrProtocol
		}
		switch ack {
		case ackOK:
			if rnw {
				if err := dp.bus.Turnaround(true); err != nil {
					return 0, ErrProtocol
				}
				v, ok, err := dp.bus.SeqInParity(32)
				if err != nil {
					return 0, ErrProtocol
				}
				if !ok {
					return 0, ErrProtocol
				}
				return v, nil
			}
			if err := dp.bus.Turnaround(true); err != nil {
				return 0, ErrProtocol
			}
			if err := dp.bus.SeqOutParity(wdata, 32); err != nil {
				return 0, ErrProtocol
			}
			return 0, nil
		case ackWAIT:
			if time.Now().After(deadline) {
				return 0, ErrWait
			}
			if err := dp.bus.Turnaround(true); err != nil {
				return 0, ErrProtocol
			}
			continue
		case ackFAULT:
			dp.clearSticky()
			return 0, ErrFault
		default:
			_ = dp.bus.LineReset()
			return 0, ErrProtocol
		}
	}
}

// clearSticky writes ABORT to clear every sticky CTRL/STAT error bit,
// per spec.md §4.2's FAULT handling contract.
func (dp *DP) clearSticky() {
	a32 := (dpABORT >> 2) & 0x3
	req := requestByte(false, false, a32)
	_ = dp.bus.SeqOut(uint32(req), 8)
	_ = dp.bus.Turnaround(false)
	_, _ = dp.bus.SeqIn(3)
	_ = dp.bus.Turnaround(true)
	_ = dp.bus.SeqOutParity(abortSTKERRCLR|abortSTKCMPCLR|abortWDERRCLR|abortORUNERRCLR, 32)
	dp.selectValid = false
}

// ReadReg reads one of the four DP registers (IDCODE, CTRL/STAT,
// RESEND, RDBUFF).
func (dp *DP) ReadReg(addr byte) (uint32, error) {
	return dp.xfer(false, true, addr, 0)
}

// WriteReg writes one of the four DP registers (ABORT, CTRL/STAT,
// SELECT).
func (dp *DP) WriteReg(addr byte, v uint32) error {
	_, err := dp.xfer(false, false, addr, v)
	return err
}

// PowerUp asserts CDBGPWRUPREQ/CSYSPWRUPREQ and waits for the
// matching ACKs, as required before any AP access.
func (dp *DP) PowerUp() error {
	if err := dp.WriteReg(dpCTRLSTAT, ctrlstatCDBGPWRUPREQ|ctrlstatCSYSPWRUPREQ); err != nil {
		return err
	}
	deadline := time.Now().Add(SWDWaitTimeout)
	for {
		v, err := dp.ReadReg(dpCTRLSTAT)
		if err != nil {
			return err
		}
		if v&(ctrlstatCDBGPWRUPACK|ctrlstatCSYSPWRUPACK) == ctrlstatCDBGPWRUPACK|ctrlstatCSYSPWRUPACK {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("adiv5: power-up ack timeout")
		}
	}
}

// selectAP ensures the DP's SELECT register points at apsel/apbank,
// using the cache spec.md §4.2 describes to avoid redundant writes.
func (dp *DP) selectAP(apsel uint8, apbank uint8) error {
	v := uint32(apsel)<<24 | uint32(apbank&0xF)<<4
	if dp.selectValid && dp.selectCache == v {
		return nil
	}
	if err := dp.WriteReg(dpSELECT, v); err != nil {
		return err
	}
	dp.selectCache = v
	dp.selectValid = true
	return nil
}

// readRDBUFF flushes a pending posted AP read, per spec.md §4.2
// "Posted reads".
func (dp *DP) readRDBUFF() (uint32, error) {
	return dp.ReadReg(dpRDBUFF)
}
