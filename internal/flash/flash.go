// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package flash implements the Flash programming framework spec.md
// §4.6 describes: a sector/granule-aware region model, a staged write
// transaction, and the vFlashErase/vFlashWrite/vFlashDone pipeline
// that drives a vendor-supplied Driver.
//
// A Map keeps its regions in a plain slice of *Region sorted by start
// address; a Transaction records the regions it has prepared as
// pointers into that same set.
package flash

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// OpTimeout is spec.md §8's FLASH_OP_TIMEOUT: the deadline a vendor
// callback gets per erase sector / per write granule.
const OpTimeout = 5 * time.Second

// Driver is the vendor Flash controller's narrow contract, per spec.md
// Design Notes §9's "vendor flash drivers become a narrower trait
// {prepare, erase, write, done}".
type Driver interface {
	Prepare() error
	Erase(sectorAddr uint32) error
	Write(addr uint32, data []byte) error
	Done() error
}

// Region is a contiguous flash address range with uniform erase-block
// size, per spec.md §3's "Flash region" type.
type Region struct {
	Start      uint32
	Length     uint32
	BlockSize  uint32 // erase-sector size S
	WriteSize  uint32 // minimum programmable granule W
	Driver     Driver

	staged []byte // accumulated bytes since the last flushed granule
	stageAddr uint32
	prepared  bool
}

// End returns the address just past the region.
func (r *Region) End() uint32 { return r.Start + r.Length }

// Contains reports whether addr falls in this region.
func (r *Region) Contains(addr uint32) bool { return addr >= r.Start && addr < r.End() }

// ErrFlashProtected is surfaced to GDB as E06, per spec.md §7's
// FlashProtected kind.
var ErrFlashProtected = errors.New("flash: region reports locked/protected")

// Map is a target's flash layout: regions sorted by start address,
// the non-overlapping invariant spec.md §3 states.
type Map struct {
	regions []*Region
}

// NewMap sorts regions by Start and returns a Map. It does not
// validate non-overlap; callers build Maps from a single vendor
// probe's fixed layout, which is trusted not to overlap itself.
func NewMap(regions []*Region) *Map {
	out := make([]*Region, len(regions))
	copy(out, regions)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return &Map{regions: out}
}

// Find returns the region containing addr, or nil.
func (m *Map) Find(addr uint32) *Region {
	for _, r := range m.regions {
		if r.Contains(addr) {
			return r
		}
	}
	return nil
}

// Regions returns every region, start-address order, for memory-map
// XML generation.
func (m *Map) Regions() []*Region { return m.regions }

// alignDown/alignUp round addr to the enclosing S-sized boundary, per
// spec.md §4.6's "aligning vFlashErase addr,len to enclosing sector
// boundaries".
func alignDown(addr, size uint32) uint32 { return addr - addr%size }
func alignUp(addr, size uint32) uint32 {
	if addr%size == 0 {
		return addr
	}
	return alignDown(addr, size) + size
}

// Transaction is the "Flash write transaction" of spec.md §3. The GDB
// server creates one on the first vFlashErase of a load; it tracks
// which regions have had prepare called and not yet done, and Done or
// an aborting error empties that list.
type Transaction struct {
	m       *Map
	touched []*Region // prepared regions, in first-touched order
}

// NewTransaction starts a transaction against m.
func NewTransaction(m *Map) *Transaction { return &Transaction{m: m} }

func (t *Transaction) touch(r *Region) error {
	if r.prepared {
		return nil
	}
	if err := runWithTimeout(r.Driver.Prepare); err != nil {
		return fmt.Errorf("flash: prepare %#x: %w", r.Start, err)
	}
	r.prepared = true
	r.staged = r.staged[:0]
	t.touched = append(t.touched, r)
	return nil
}

// Erase implements vFlashErase: align addr/length to the enclosing
// sector boundaries and erase each sector once, per spec.md §4.6
// steps 1-3. A range that runs past the end of its region is split at
// the region boundary and the remainder erased in the next region.
func (t *Transaction) Erase(addr, length uint32) error {
	r := t.m.Find(addr)
	if r == nil {
		return fmt.Errorf("flash: erase %#x: no such region", addr)
	}
	if end := r.End(); length > end-addr {
		head := end - addr
		if err := t.Erase(addr, head); err != nil {
			return err
		}
		return t.Erase(end, length-head)
	}
	if err := t.touch(r); err != nil {
		return t.abort(err)
	}
	start := alignDown(addr, r.BlockSize)
	end := alignUp(addr+length, r.BlockSize)
	for sector := start; sector < end; sector += r.BlockSize {
		if err := runWithTimeout(func() error { return r.Driver.Erase(sector) }); err != nil {
			return t.abort(fmt.Errorf("flash: erase sector %#x: %w", sector, err))
		}
	}
	return nil
}

// Write implements vFlashWrite: buffer data at addr%W and flush every
// full write-granule as it accumulates, per spec.md §4.6 step "copy
// bytes into the buffer ... whenever a write-granule worth of bytes is
// accumulated, call the region's write callback".
func (t *Transaction) Write(addr uint32, data []byte) error {
	r := t.m.Find(addr)
	if r == nil {
		return fmt.Errorf("flash: write %#x: no such region", addr)
	}
	if err := t.touch(r); err != nil {
		return t.abort(err)
	}
	if len(r.staged) == 0 {
		r.stageAddr = alignDown(addr, r.WriteSize)
	}
	// Pad any gap between the staged buffer's current extent and addr
	// with the region's erase value so offsets stay granule-relative,
	// then place data at its offset within the buffer.
	off := int(addr - r.stageAddr)
	end := off + len(data)
	for len(r.staged) < end {
		r.staged = append(r.staged, 0xFF)
	}
	copy(r.staged[off:end], data)

	for uint32(len(r.staged)) >= r.WriteSize {
		granule := r.staged[:r.WriteSize]
		if err := runWithTimeout(func() error { return r.Driver.Write(r.stageAddr, granule) }); err != nil {
			return t.abort(fmt.Errorf("flash: write %#x: %w", r.stageAddr, err))
		}
		r.staged = r.staged[r.WriteSize:]
		r.stageAddr += r.WriteSize
	}
	return nil
}

// Done implements vFlashDone: flush any partial trailing buffer
// (0xFF-padded) and call done on every touched region, best-effort,
// per spec.md §4.6/§7's sticky-failure policy.
func (t *Transaction) Done() error {
	var first error
	for _, r := range t.touched {
		if len(r.staged) > 0 {
			for uint32(len(r.staged)) < r.WriteSize {
				r.staged = append(r.staged, 0xFF)
			}
			if err := runWithTimeout(func() error { return r.Driver.Write(r.stageAddr, r.staged) }); err != nil && first == nil {
				first = fmt.Errorf("flash: final write %#x: %w", r.stageAddr, err)
			}
			r.staged = nil
		}
		if err := runWithTimeout(r.Driver.Done); err != nil && first == nil {
			first = fmt.Errorf("flash: done %#x: %w", r.Start, err)
		}
		r.prepared = false
	}
	t.touched = nil
	return first
}

// abort runs Done best-effort on every touched region (spec.md §7's
// "all remaining regions' done callbacks are still invoked") and
// returns the original error, not whatever Done additionally failed
// with — the first observed failure is what GDB needs to see.
func (t *Transaction) abort(cause error) error {
	for _, r := range t.touched {
		r.staged = nil
		_ = runWithTimeout(r.Driver.Done)
		r.prepared = false
	}
	t.touched = nil
	return cause
}

// runWithTimeout runs fn and reports whether it returned within
// OpTimeout; vendor callbacks are plain synchronous Go calls, so this
// is advisory bookkeeping rather than true preemption — matching
// spec.md §8's framing of FLASH_OP_TIMEOUT as "callbacks get a
// deadline", not a hard kill.
func runWithTimeout(fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(OpTimeout):
		return errors.New("flash: vendor callback exceeded FLASH_OP_TIMEOUT")
	}
}
