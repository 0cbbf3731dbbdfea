// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cortexm

import "periph.io/x/blackmagic/internal/target"

// FPB register addresses (Flash Patch and Breakpoint unit).
const (
	regFPCTRL  uint32 = 0xE0002000
	regFPCOMP0 uint32 = 0xE0002008
)

const (
	fpCtrlKey     uint32 = 1 << 1
	fpCtrlEnable  uint32 = 1 << 0
	fpCompEnable  uint32 = 1 << 0
	fpCompReplaceLow  uint32 = 0b01 << 30
	fpCompReplaceHigh uint32 = 0b10 << 30
)

// maxFPBSlots is spec.md §5.1's "8 instruction breakpoint
// comparators, the number every Cortex-M0/M3/M4/M7 implements".
const maxFPBSlots = 8

// FPB is the 8-slot instruction breakpoint comparator allocator,
// shared by both software and hardware breakpoint requests on
// Cortex-M (there is no separate software-breakpoint mechanism in
// this runtime; spec.md §6 leaves that choice to the core driver).
type FPB struct {
	mem  MemAP
	used [maxFPBSlots]bool
	addr [maxFPBSlots]uint32
}

func (f *FPB) attach(mem MemAP) error {
	f.mem = mem
	return mem.WriteMem32(regFPCTRL, fpCtrlKey|fpCtrlEnable)
}

// alloc claims the lowest free comparator slot and programs it to
// break on addr, per spec.md §5.1's "lowest free slot" allocation
// policy (Design Notes §9).
func (f *FPB) alloc(addr uint32) (int, error) {
	for i, u := range f.used {
		if u && f.addr[i] == addr {
			return i, nil // idempotent: same address reuses its slot
		}
	}
	for i, u := range f.used {
		if !u {
			replace := fpCompReplaceLow
			if addr&2 != 0 {
				replace = fpCompReplaceHigh
			}
			v := (addr & 0x1FFFFFFC) | replace | fpCompEnable
			if err := f.mem.WriteMem32(regFPCOMP0+uint32(i)*4, v); err != nil {
				return 0, err
			}
			f.used[i] = true
			f.addr[i] = addr
			return i, nil
		}
	}
	return 0, target.ErrNoHwResource
}

// free disables and releases slot.
func (f *FPB) free(slot int) error {
	if slot < 0 || slot >= maxFPBSlots || !f.used[slot] {
		return nil
	}
	if err := f.mem.WriteMem32(regFPCOMP0+uint32(slot)*4, 0); err != nil {
		return err
	}
	f.used[slot] = false
	return nil
}
