// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package coresight walks a CoreSight ROM table tree, discovering
// debug components by their fixed-offset identification blocks, the
// way allwinner/address.go walks a bounded table of address-decode
// rows — here the table lives in live target memory instead of a
// static slice.
package coresight

import "fmt"

// MemAccessor is the minimal memory-read capability the walker
// needs; internal/target.Core and internal/adiv5.AP both satisfy it.
type MemAccessor interface {
	ReadMem32(addr uint32) (uint32, error)
}

// maxDepth and maxEntries are spec.md §4.3's bounds: "8 is sufficient
// in practice" and "960 per ADIv5 spec".
const (
	maxDepth   = 8
	maxEntries = 960
)

// ComponentClass is the decoded CIDR[15:12] component class field.
type ComponentClass uint8

const (
	ClassGenericVerification ComponentClass = 0x0
	ClassROMTable            ComponentClass = 0x1
	ClassCoreSight           ComponentClass = 0x9
	ClassPeripheral          ComponentClass = 0xF
)

// Component is one recognized node in the tree: a CPU debug block,
// ETM, ITM, TPIU, or a ROM table itself.
type Component struct {
	Base     uint64
	Class    ComponentClass
	Designer uint16
	Part     uint16
}

// ErrBadComponent is what readCIDR returns when CIDR doesn't match the
// expected 0xB105000D preamble pattern. Walk does not return it: a
// node that fails the check is skipped.
type ErrBadComponent struct{ Base uint64 }

func (e *ErrBadComponent) Error() string {
	return fmt.Sprintf("coresight: bad component ID at %#x", e.Base)
}

// readCIDR reads CIDR0..3 at base+0xFF0..0xFFC and validates the
// fixed preamble bytes 0x0D, 0x_0, 0x05, 0xB1 (CIDR1's low nibble is
// reserved; its high nibble carries the component class).
func readCIDR(mem MemAccessor, base uint64) (ComponentClass, error) {
	var b [4]byte
	for i := 0; i < 4; i++ {
		v, err := mem.ReadMem32(uint32(base + 0xFF0 + uint64(i*4)))
		if err != nil {
			return 0, err
		}
		b[i] = byte(v)
	}
	if b[0] != 0x0D || b[2] != 0x05 || b[3] != 0xB1 {
		return 0, &ErrBadComponent{Base: base}
	}
	return ComponentClass((b[1] >> 4) & 0xF), nil
}

func readPIDR(mem MemAccessor, base uint64) (designer, part uint16, err error) {
	var b [5]byte
	offsets := [5]uint64{0xFE0, 0xFE4, 0xFE8, 0xFEC, 0xFD0}
	for i, off := range offsets {
		v, e := mem.ReadMem32(uint32(base + off))
		if e != nil {
			return 0, 0, e
		}
		b[i] = byte(v)
	}
	part = uint16(b[0]) | uint16(b[1]&0xF)<<8
	jep106Cont := (b[4] >> 4) & 0xF
	jep106Code := (b[1]>>4)&0xF | (b[2]&0x7)<<4
	designer = uint16(jep106Cont)<<7 | uint16(jep106Code)
	return designer, part, nil
}

// Callback is invoked once per recognized component.
type Callback func(Component)

// Walk descends a ROM table tree rooted at base, emitting cb for
// every recognized component, per spec.md §4.3 steps 1-4.
func Walk(mem MemAccessor, base uint64, cb Callback) error {
	return walk(mem, base, 0, cb, new(int))
}

func walk(mem MemAccessor, base uint64, depth int, cb Callback, entries *int) error {
	if depth > maxDepth {
		return nil
	}
	class, err := readCIDR(mem, base)
	if err != nil {
		// Tolerate unreadable/garbage nodes: the walk is read-only and
		// best-effort per spec.md §4.3's "overlapping tables are
		// tolerated" note.
		return nil
	}
	designer, part, err := readPIDR(mem, base)
	if err != nil {
		return nil
	}
	cb(Component{Base: base, Class: class, Designer: designer, Part: part})

	if class != ClassROMTable && class != ClassCoreSight {
		return nil
	}
	for i := 0; *entries < maxEntries; i++ {
		entryAddr := uint32(base + uint64(i*4))
		entry, err := mem.ReadMem32(entryAddr)
		if err != nil {
			return err
		}
		*entries++
		if entry == 0 {
			break // a zero entry terminates the table
		}
		if entry&1 == 0 {
			continue // present bit clear
		}
		// The offset is a signed 24-bit (or 12-bit legacy) value; we
		// keep the common ADIv5 32-bit-aligned signed-offset form.
		offset := int32(entry &^ 0xFFF)
		child := uint64(int64(base) + int64(offset))
		if err := walk(mem, child, depth+1, cb, entries); err != nil {
			return err
		}
	}
	return nil
}
