// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package flash

import (
	"errors"
	"testing"
)

// fakeDriver models a vendor Flash controller: erased sectors read as
// 0xFF until Write lands real bytes, the way real NOR flash behaves.
type fakeDriver struct {
	mem            map[uint32]byte
	prepared, done bool
	failWrite      bool
}

func newFakeDriver() *fakeDriver { return &fakeDriver{mem: map[uint32]byte{}} }

func (f *fakeDriver) Prepare() error { f.prepared = true; return nil }
func (f *fakeDriver) Erase(sectorAddr uint32) error {
	for i := uint32(0); i < 0x400; i++ {
		f.mem[sectorAddr+i] = 0xFF
	}
	return nil
}
func (f *fakeDriver) Write(addr uint32, data []byte) error {
	if f.failWrite {
		return errors.New("injected write failure")
	}
	for i, b := range data {
		f.mem[addr+uint32(i)] = b
	}
	return nil
}
func (f *fakeDriver) Done() error { f.done = true; return nil }

func newTestRegion(d Driver) *Region {
	return &Region{Start: 0x08000000, Length: 0x10000, BlockSize: 0x400, WriteSize: 0x100, Driver: d}
}

func TestEraseWriteDoneRoundTrip(t *testing.T) {
	d := newFakeDriver()
	m := NewMap([]*Region{newTestRegion(d)})
	tx := NewTransaction(m)

	if err := tx.Erase(0x08000000, 0x400); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	data := make([]byte, 0x400)
	for i := range data {
		data[i] = 0xAA
	}
	if err := tx.Write(0x08000000, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tx.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if !d.prepared || !d.done {
		t.Fatal("expected prepare and done to have run")
	}
	for i := uint32(0); i < 0x400; i++ {
		if d.mem[0x08000000+i] != 0xAA {
			t.Fatalf("byte %d = %#x, want 0xaa", i, d.mem[0x08000000+i])
		}
	}
}

func TestWritePartialGranulePaddedOnDone(t *testing.T) {
	d := newFakeDriver()
	m := NewMap([]*Region{newTestRegion(d)})
	tx := NewTransaction(m)

	if err := tx.Erase(0x08000000, 0x400); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	// 4 bytes of a 0x100-byte write granule: Done must 0xFF-pad the
	// remaining 252 bytes.
	if err := tx.Write(0x08000000, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tx.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if d.mem[0x08000000] != 1 || d.mem[0x08000003] != 4 {
		t.Fatal("leading bytes not written as given")
	}
	if d.mem[0x08000004] != 0xFF {
		t.Fatalf("pad byte = %#x, want 0xff", d.mem[0x08000004])
	}
}

func TestWriteFailureAbortsAndStillCallsDoneOnAllTouched(t *testing.T) {
	d1 := newFakeDriver()
	d2 := newFakeDriver()
	d2.failWrite = true
	r1 := newTestRegion(d1)
	r2 := &Region{Start: 0x08010000, Length: 0x10000, BlockSize: 0x400, WriteSize: 0x100, Driver: d2}
	m := NewMap([]*Region{r1, r2})
	tx := NewTransaction(m)

	if err := tx.Erase(r1.Start, 0x400); err != nil {
		t.Fatalf("Erase r1: %v", err)
	}
	if err := tx.Erase(r2.Start, 0x400); err != nil {
		t.Fatalf("Erase r2: %v", err)
	}
	data := make([]byte, 0x100)
	if err := tx.Write(r2.Start, data); err == nil {
		t.Fatal("expected the injected write failure to surface")
	}
	if !d1.done || !d2.done {
		t.Fatal("expected best-effort Done on every touched region after an abort")
	}
}

func TestEraseUnknownAddressErrors(t *testing.T) {
	m := NewMap(nil)
	tx := NewTransaction(m)
	if err := tx.Erase(0x12345678, 0x100); err == nil {
		t.Fatal("expected an error for an address outside any region")
	}
}
