// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cortexmgeneric

import (
	"encoding/binary"
	"errors"
	"time"

	"periph.io/x/blackmagic/internal/flash"
)

// Generic Flash Program/Erase Controller register layout: the
// unlock-key/status/control scheme most Cortex-M vendors' on-chip
// NOR controllers copy (STMicroelectronics' FPEC is the best-known
// instance, and what this register map is named after), at its most
// common base address.
const (
	fpecBase = 0x40022000
	fpecKeyr = fpecBase + 0x04
	fpecSR   = fpecBase + 0x0C
	fpecCR   = fpecBase + 0x10
	fpecAR   = fpecBase + 0x14
)

const (
	fpecKey1 uint32 = 0x45670123
	fpecKey2 uint32 = 0xCDEF89AB
)

const (
	fpecCRPG   uint32 = 1 << 0
	fpecCRPER  uint32 = 1 << 1
	fpecCRSTRT uint32 = 1 << 6
	fpecSRBSY  uint32 = 1 << 0
)

// genericFPEC implements flash.Driver over the register layout above.
// It assumes a single flash bank and halfword program granularity,
// which is the common case for this family of controllers; a vendor
// row with a different controller registers its own Driver instead
// of using this one.
type genericFPEC struct {
	mem      flash.MemAccessor
	unlocked bool
}

func (d *genericFPEC) writeReg(addr uint32, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return d.mem.MemWrite(addr, b[:])
}

func (d *genericFPEC) readReg(addr uint32) (uint32, error) {
	var b [4]byte
	if err := d.mem.MemRead(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (d *genericFPEC) waitBusy() error {
	deadline := time.Now().Add(flash.OpTimeout)
	for {
		sr, err := d.readReg(fpecSR)
		if err != nil {
			return err
		}
		if sr&fpecSRBSY == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("cortexmgeneric: flash controller busy past FLASH_OP_TIMEOUT")
		}
	}
}

// Prepare unlocks the controller with the fixed key sequence; it is
// idempotent so a Transaction touching several regions only unlocks
// once.
func (d *genericFPEC) Prepare() error {
	if d.unlocked {
		return nil
	}
	if err := d.writeReg(fpecKeyr, fpecKey1); err != nil {
		return err
	}
	if err := d.writeReg(fpecKeyr, fpecKey2); err != nil {
		return err
	}
	d.unlocked = true
	return nil
}

func (d *genericFPEC) Erase(sectorAddr uint32) error {
	if err := d.writeReg(fpecCR, fpecCRPER); err != nil {
		return err
	}
	if err := d.writeReg(fpecAR, sectorAddr); err != nil {
		return err
	}
	if err := d.writeReg(fpecCR, fpecCRPER|fpecCRSTRT); err != nil {
		return err
	}
	if err := d.waitBusy(); err != nil {
		return err
	}
	return d.writeReg(fpecCR, 0)
}

func (d *genericFPEC) Write(addr uint32, data []byte) error {
	if err := d.writeReg(fpecCR, fpecCRPG); err != nil {
		return err
	}
	if err := d.mem.MemWrite(addr, data); err != nil {
		return err
	}
	if err := d.waitBusy(); err != nil {
		return err
	}
	return d.writeReg(fpecCR, 0)
}

func (d *genericFPEC) Done() error { return nil }

// genericFlashBase/genericFlashSize/genericFlashBlockSize describe the
// smallest plausible Cortex-M NOR layout: enough for qXfer:memory-map
// and vFlash* to exercise a real region without assuming a specific
// part's real capacity.
const (
	genericFlashBase      uint32 = 0x08000000
	genericFlashSize      uint32 = 128 * 1024
	genericFlashBlockSize uint32 = 1024
	genericFlashWriteSize uint32 = 2
)

func buildGenericFlash(mem flash.MemAccessor) (*flash.Map, error) {
	r := &flash.Region{
		Start:     genericFlashBase,
		Length:    genericFlashSize,
		BlockSize: genericFlashBlockSize,
		WriteSize: genericFlashWriteSize,
		Driver:    &genericFPEC{mem: mem},
	}
	return flash.NewMap([]*flash.Region{r}), nil
}
