// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package target holds the polymorphic core-debug capability
// interface and the small integer-indexed arena of discovered
// targets, replacing the source's pointer graph and field-of-
// function-pointers struct per spec.md Design Notes §9.
package target

import (
	"errors"

	"periph.io/x/blackmagic/internal/flash"
)

// Breakwatch is a user-visible breakpoint or watchpoint request, per
// spec.md §3.
type Breakwatch struct {
	Kind     BreakwatchKind
	Addr     uint32
	Size     int
	Reserved [2]uint32 // driver-private hardware-unit indexes
}

// BreakwatchKind enumerates the GDB Z/z packet's five kinds.
type BreakwatchKind uint8

const (
	BreakwatchSoftware BreakwatchKind = iota
	BreakwatchHardware
	BreakwatchWatchRead
	BreakwatchWatchWrite
	BreakwatchWatchAccess
)

// RunState is the target's halt/run state, shared by every core
// kind's runtime.
type RunState uint8

const (
	StateRunning RunState = iota
	StateHalted
	StateResetHalted
	StateLost
)

// Region is a contiguous address range, used for RAM regions. Flash
// regions are flash.Region values, which carry their own Start and
// Length fields.
type Region struct {
	Start  uint32
	Length uint32
}

// Core is the capability set every core-kind variant implements (in
// this module: cortexm.Core and riscv.Core), replacing the source's
// struct-of-function-pointers with a polymorphic Go interface, per
// spec.md Design Notes §9.
type Core interface {
	// MemRead/MemWrite access the target's memory bus (delegating to
	// the owning MEM-AP for ARM cores).
	MemRead(addr uint32, b []byte) error
	MemWrite(addr uint32, b []byte) error

	// RegsRead/RegsWrite access the full register file GDB's g/G
	// packets exchange.
	RegsRead() ([]byte, error)
	RegsWrite(b []byte) error

	// HaltPoll returns the current run state without blocking.
	HaltPoll() (RunState, error)
	Halt() error
	Resume() error
	Step() error
	Reset() error

	BreakwatchSet(bw *Breakwatch) error
	BreakwatchClear(bw *Breakwatch) error

	// RegFileXML is the target-description XML GDB's
	// qXfer:features:read advertises.
	RegFileXML() []byte
}

// ErrNoHwResource is returned by BreakwatchSet when every hardware
// comparator slot is in use, per spec.md §7's NoHwResource kind.
var ErrNoHwResource = errors.New("target: no hardware breakpoint/watchpoint slots available")

// Kind identifies which Core implementation backs a Target.
type Kind string

const (
	KindCortexM Kind = "cortex-m"
	KindCortexA Kind = "cortex-a"
	KindCortexR Kind = "cortex-r"
	KindRV32    Kind = "rv32"
)

// Target represents one debuggable CPU core found behind an AP, per
// spec.md §3.
type Target struct {
	DriverName string
	Kind       Kind
	Designer   uint16
	Part       uint16

	Core Core

	Flash []*flash.Region
	RAM   []Region

	Breakwatches []*Breakwatch

	attached bool
}

// Attach marks the target attached to the current GDB session.
func (t *Target) Attach() error {
	t.attached = true
	return nil
}

// Detach marks the target detached.
func (t *Target) Detach() error {
	t.attached = false
	t.Breakwatches = nil
	return nil
}

// Attached reports whether a GDB session currently owns this target.
func (t *Target) Attached() bool { return t.attached }

// Registry is the arena of discovered targets the rest of this
// module's components thread through by index, per spec.md Design
// Notes §9's "typed arenas keyed by a small integer id".
type Registry struct {
	targets []*Target
}

// Add appends t to the registry and returns its index.
func (r *Registry) Add(t *Target) int {
	r.targets = append(r.targets, t)
	return len(r.targets) - 1
}

// Get returns the target at index i, or nil if out of range.
func (r *Registry) Get(i int) *Target {
	if i < 0 || i >= len(r.targets) {
		return nil
	}
	return r.targets[i]
}

// Len returns the number of discovered targets.
func (r *Registry) Len() int { return len(r.targets) }

// All returns every discovered target, in discovery order.
func (r *Registry) All() []*Target { return r.targets }

// Reset clears the registry, e.g. on probe disconnect.
func (r *Registry) Reset() { r.targets = nil }
