// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cortexmgeneric

import (
	"encoding/binary"
	"testing"
)

// fakeFlashMem is a byte-addressable register/memory fake for
// genericFPEC: SR always reads back "not busy" so Prepare/Erase/Write
// complete without a polling loop.
type fakeFlashMem struct {
	regs map[uint32]uint32
}

func (f *fakeFlashMem) MemRead(addr uint32, b []byte) error {
	v := f.regs[addr]
	if addr == fpecSR {
		v = 0 // never busy
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

func (f *fakeFlashMem) MemWrite(addr uint32, b []byte) error {
	if len(b) == 4 {
		f.regs[addr] = binary.LittleEndian.Uint32(b)
	}
	return nil
}

func TestGenericFPECPrepareUnlocksOnce(t *testing.T) {
	m := &fakeFlashMem{regs: map[uint32]uint32{}}
	d := &genericFPEC{mem: m}
	if err := d.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if m.regs[fpecKeyr] != fpecKey2 {
		t.Fatalf("expected the keyr to hold the last key written, got %#x", m.regs[fpecKeyr])
	}
	if !d.unlocked {
		t.Fatal("expected unlocked=true")
	}
}

func TestGenericFPECEraseSetsPERAndSTRT(t *testing.T) {
	m := &fakeFlashMem{regs: map[uint32]uint32{}}
	d := &genericFPEC{mem: m}
	if err := d.Erase(0x08001000); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if m.regs[fpecAR] != 0x08001000 {
		t.Fatalf("got AR=%#x", m.regs[fpecAR])
	}
	if m.regs[fpecCR] != 0 {
		t.Fatalf("expected CR cleared after erase completes, got %#x", m.regs[fpecCR])
	}
}

func TestBuildGenericFlashProducesOneRegion(t *testing.T) {
	m := &fakeFlashMem{regs: map[uint32]uint32{}}
	fm, err := buildGenericFlash(m)
	if err != nil {
		t.Fatalf("buildGenericFlash: %v", err)
	}
	r := fm.Find(genericFlashBase)
	if r == nil {
		t.Fatal("expected a region containing the base address")
	}
	if r.BlockSize != genericFlashBlockSize || r.WriteSize != genericFlashWriteSize {
		t.Fatalf("got BlockSize=%d WriteSize=%d", r.BlockSize, r.WriteSize)
	}
}
