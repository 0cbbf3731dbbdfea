// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cortexm

import (
	"math/bits"

	"periph.io/x/blackmagic/internal/target"
)

// DWT register addresses (Data Watchpoint and Trace unit).
const (
	regDWTCOMP0     uint32 = 0xE0001020
	regDWTMASK0     uint32 = 0xE0001024
	regDWTFUNCTION0 uint32 = 0xE0001028
	dwtStride       uint32 = 0x10
)

// DWT_FUNCTIONn.FUNCTION encodings for a data-match comparator, per
// the ARMv7-M Architecture Reference Manual.
const (
	dwtFuncDisabled uint32 = 0
	dwtFuncWrite    uint32 = 5
	dwtFuncRead     uint32 = 6
	dwtFuncAccess   uint32 = 7
)

// maxDWTSlots is spec.md §5.1's 4 data watchpoint comparators.
const maxDWTSlots = 4

// DWT is the 4-slot data watchpoint comparator allocator.
type DWT struct {
	mem  MemAP
	used [maxDWTSlots]bool
}

func (d *DWT) attach(mem MemAP) error {
	d.mem = mem
	return nil
}

// alloc claims the lowest free comparator slot and programs it for
// bw's address/size/kind, encoding size as log2(size) in the MASK
// register per the architecture's "ignore the low N address bits"
// contract.
func (d *DWT) alloc(bw *target.Breakwatch) (int, error) {
	fn := dwtFuncAccess
	switch bw.Kind {
	case target.BreakwatchWatchRead:
		fn = dwtFuncRead
	case target.BreakwatchWatchWrite:
		fn = dwtFuncWrite
	case target.BreakwatchWatchAccess:
		fn = dwtFuncAccess
	}
	mask := maskFor(bw.Size)
	for i, u := range d.used {
		if u {
			continue
		}
		if err := d.mem.WriteMem32(regDWTCOMP0+i32(i), bw.Addr); err != nil {
			return 0, err
		}
		if err := d.mem.WriteMem32(regDWTMASK0+i32(i), mask); err != nil {
			return 0, err
		}
		if err := d.mem.WriteMem32(regDWTFUNCTION0+i32(i), fn); err != nil {
			return 0, err
		}
		d.used[i] = true
		return i, nil
	}
	return 0, target.ErrNoHwResource
}

// free disables slot.
func (d *DWT) free(slot int) error {
	if slot < 0 || slot >= maxDWTSlots || !d.used[slot] {
		return nil
	}
	if err := d.mem.WriteMem32(regDWTFUNCTION0+i32(slot), dwtFuncDisabled); err != nil {
		return err
	}
	d.used[slot] = false
	return nil
}

func i32(slot int) uint32 { return uint32(slot) * dwtStride }

// maskFor returns the DWT_MASKn value (number of address bits to
// ignore) for a watchpoint of the given byte size, rounding up to the
// next power of two the way the hardware comparator requires.
func maskFor(size int) uint32 {
	if size <= 1 {
		return 0
	}
	return uint32(bits.Len(uint(size - 1)))
}
