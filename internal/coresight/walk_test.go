// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package coresight

import "testing"

// fakeMem is a sparse memory image addressed by uint32; addresses not
// in the map read as zero.
type fakeMem map[uint32]uint32

func (m fakeMem) ReadMem32(addr uint32) (uint32, error) { return m[addr], nil }

func setCIDRPIDR(m fakeMem, base uint64, class byte, designerCont, designerCode byte, part uint16) {
	m[uint32(base+0xFF0)] = 0x0D
	m[uint32(base+0xFF4)] = uint32(class) << 4
	m[uint32(base+0xFF8)] = 0x05
	m[uint32(base+0xFFC)] = 0xB1
	m[uint32(base+0xFE0)] = uint32(part & 0xFF)
	m[uint32(base+0xFE4)] = uint32(part>>8)&0xF | uint32(designerCode&0xF)<<4
	m[uint32(base+0xFE8)] = uint32(designerCode>>4) & 0x7
	m[uint32(base+0xFEC)] = 0
	m[uint32(base+0xFD0)] = uint32(designerCont) << 4
}

func TestWalkSingleComponent(t *testing.T) {
	m := fakeMem{}
	setCIDRPIDR(m, 0xE000E000, byte(ClassPeripheral), 0x4, 0x3B, 0x471)

	var got []Component
	if err := Walk(m, 0xE000E000, func(c Component) { got = append(got, c) }); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 component, got %d", len(got))
	}
	if got[0].Base != 0xE000E000 {
		t.Errorf("base = %#x", got[0].Base)
	}
}

func TestWalkRecursesIntoROMTable(t *testing.T) {
	m := fakeMem{}
	const romBase = 0xE00FF000
	const childBase = 0xE000E000
	setCIDRPIDR(m, romBase, byte(ClassROMTable), 0, 0, 0)
	setCIDRPIDR(m, childBase, byte(ClassPeripheral), 0x4, 0x3B, 0x471)

	offset := int32(int64(childBase) - int64(romBase))
	m[uint32(romBase)] = uint32(offset) | 1 // present bit set
	m[uint32(romBase+4)] = 0                // terminator

	var got []Component
	if err := Walk(m, romBase, func(c Component) { got = append(got, c) }); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected rom table + child, got %d", len(got))
	}
	if got[1].Base != childBase {
		t.Errorf("child base = %#x want %#x", got[1].Base, childBase)
	}
}

func TestWalkToleratesGarbageComponent(t *testing.T) {
	m := fakeMem{} // all zero -> CIDR preamble check fails
	var got []Component
	if err := Walk(m, 0x1000, func(c Component) { got = append(got, c) }); err != nil {
		t.Fatalf("Walk must tolerate bad components, got error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no components, got %d", len(got))
	}
}
