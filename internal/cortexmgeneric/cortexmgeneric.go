// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cortexmgeneric is the fallback internal/probereg row spec.md
// Design Notes §9 assumes exists: when no vendor-specific row claims a
// MEM-AP, read its CPUID to confirm an ARM Cortex-M core answers,
// attach internal/cortexm to it, and walk its CoreSight ROM table for
// a designer/part identification good enough to pick a Flash driver.
// Vendor probe packages register ahead of this one (lower Priority)
// and override what it finds; this package is what makes an unknown
// or not-yet-special-cased part debuggable at all, rather than the
// dispatch table silently producing zero targets.
package cortexmgeneric

import (
	"periph.io/x/blackmagic/internal/adiv5"
	"periph.io/x/blackmagic/internal/coresight"
	"periph.io/x/blackmagic/internal/cortexm"
	"periph.io/x/blackmagic/internal/flash"
	"periph.io/x/blackmagic/internal/probereg"
	"periph.io/x/blackmagic/internal/target"
)

// cpuidAddr is the CPUID register every ARMv6-M/v7-M/v8-M core maps
// at the same System Control Space offset.
const cpuidAddr uint32 = 0xE000ED00

// cpuidImplementerARM is CPUID[31:24] for an ARM-designed core; every
// Cortex-M implementation uses it regardless of the licensee.
const cpuidImplementerARM = 0x41

// scsROMTableBase is where a Cortex-M's own CoreSight ROM table
// conventionally lives, at the top of the Private Peripheral Bus above
// the System Control Space, per spec.md §4.3's walk starting point.
const scsROMTableBase = 0xE00FF000

// genericDesigner/genericPart is the sentinel (designer, part) pair
// this package registers its fallback Flash driver under: JEP106 bank
// 0 id 0 is reserved and never a real manufacturer code, so it can't
// collide with a vendor-specific flash driver's own registration.
const (
	genericDesigner uint16 = 0x000
	genericPart     uint16 = 0x0000
)

func init() {
	probereg.MustRegister(probereg.Row{
		Name:     "cortex-m-generic",
		Priority: 1000, // last resort: vendor-specific rows run first and claim their own parts
		Probe:    probe,
	})
	flash.RegisterDriver("cortex-m-generic-nor", genericDesigner, genericPart, buildGenericFlash)
}

// memAP is what newTarget needs of an AP: a MEM-AP satisfies both
// cortexm's narrower MemAP and coresight's read-only MemAccessor, so
// the recognition logic below can be driven by a fake in tests
// without constructing a real ADIv5 transport.
type memAP interface {
	ReadMem32(addr uint32) (uint32, error)
	WriteMem32(addr, v uint32) error
}

// probe implements probereg.ProbeFunc.
func probe(ap *adiv5.AP) (*target.Target, bool, error) {
	if !ap.IsMemAP() {
		return nil, false, nil
	}
	return newTarget(ap)
}

// newTarget reads CPUID to confirm an ARM-implemented core, attaches
// internal/cortexm, walks the CoreSight ROM table for a real
// designer/part when one is present, and assembles the target.Target
// a generic fallback row hands back.
func newTarget(mem memAP) (*target.Target, bool, error) {
	cpuid, err := mem.ReadMem32(cpuidAddr)
	if err != nil {
		return nil, false, nil // not a readable Cortex-M CPUID behind this AP
	}
	if byte(cpuid>>24) != cpuidImplementerARM {
		return nil, false, nil
	}

	core, err := cortexm.New(mem)
	if err != nil {
		return nil, false, err
	}

	designer, part := genericDesigner, genericPart
	_ = coresight.Walk(mem, scsROMTableBase, func(c coresight.Component) {
		if c.Class == coresight.ClassCoreSight && c.Designer != 0 {
			designer, part = c.Designer, c.Part
		}
	})

	t := &target.Target{
		DriverName: "cortex-m (generic)",
		Kind:       target.KindCortexM,
		Designer:   designer,
		Part:       part,
		Core:       core,
		// Every ARMv7-M/v8-M part maps its first SRAM bank here; a
		// vendor-specific row overrides this with the part's real
		// layout when one exists.
		RAM: []target.Region{{Start: 0x20000000, Length: 64 * 1024}},
	}
	if m, err := flash.BuildMap(designer, part, core); err == nil && m != nil {
		t.Flash = m.Regions()
	}
	return t, true, nil
}
