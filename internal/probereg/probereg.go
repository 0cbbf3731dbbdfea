// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package probereg is the target probe dispatch table spec.md's
// Design Notes §9 REDESIGN FLAG calls for: replace the source's long
// "if (designer==X) try vendor_probe(); else if…" chain with a table
// of (designer_mask, partno_mask, probe_fn) rows scanned in priority
// order (lower Priority first, registration order among equal
// priorities), the first match winning.
//
// The registration idiom — a package-level var plus an init() that
// calls MustRegister — is the same one ftdi/driver.go and host.go use
// for periph.io/x/conn/v3/driver/driverreg; vendor probe packages
// self-register exactly that way, so adding support for a new part
// never touches this package.
package probereg

import (
	"fmt"
	"sort"

	"periph.io/x/blackmagic/internal/adiv5"
	"periph.io/x/blackmagic/internal/target"
	"periph.io/x/blackmagic/internal/wire"
)

// ProbeFunc attempts to recognize and attach a vendor's core driver
// to ap. It returns ok=false (not an error) when ap simply isn't
// this row's part, so Scan can keep trying later rows.
type ProbeFunc func(ap *adiv5.AP) (t *target.Target, ok bool, err error)

// Row is one entry in the dispatch table.
type Row struct {
	Name         string
	DesignerMask uint16
	Designer     uint16
	PartMask     uint16
	Part         uint16
	Priority     int // lower runs first; ties keep registration order
	Probe        ProbeFunc
}

// matches reports whether designer/part satisfy this row's masks.
func (r Row) matches(designer, part uint16) bool {
	if r.DesignerMask != 0 && designer&r.DesignerMask != r.Designer&r.DesignerMask {
		return false
	}
	if r.PartMask != 0 && part&r.PartMask != r.Part&r.PartMask {
		return false
	}
	return true
}

var rows []Row

// MustRegister adds row to the dispatch table. It panics on a
// duplicate name, the same fail-fast contract driverreg.MustRegister
// gives the ftdi driver.
func MustRegister(row Row) {
	for _, r := range rows {
		if r.Name == row.Name {
			panic(fmt.Sprintf("probereg: %q already registered", row.Name))
		}
	}
	rows = append(rows, row)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Priority < rows[j].Priority })
}

// Scan tries every registered row, in priority order, against ap and
// the designer/part it carries (from TARGETID when advertised, per
// spec.md §3), returning the first target a probe function
// recognizes.
func Scan(ap *adiv5.AP, designer, part uint16) (*target.Target, error) {
	for _, row := range rows {
		if !row.matches(designer, part) {
			continue
		}
		t, ok, err := row.Probe(ap)
		if err != nil {
			return nil, fmt.Errorf("probereg: %s: %w", row.Name, err)
		}
		if ok {
			return t, nil
		}
	}
	return nil, nil
}

// Rows returns the currently registered dispatch table, for the
// `targets`/`swdp_scan` CLI diagnostics.
func Rows() []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}

// reset clears the table; used only by tests so one test's
// registrations don't leak into another's.
func reset() { rows = nil }

// JTAGProbeFunc attempts to recognize and attach a core driver to the
// JTAG TAP that reported idcode. Unlike ProbeFunc it isn't handed an
// ADIv5 AP: some cores (RISC-V's Debug Module) are driven directly
// over the JTAG chain's own scan registers rather than through an
// ADIv5/v6 Access Port, so they need a dispatch table keyed on the
// chain's native IDCODE instead of a TARGETID-derived designer/part
// pair. It returns ok=false (not an error) when idcode isn't this
// row's part, so ScanJTAG can keep trying later rows.
type JTAGProbeFunc func(jtag wire.JTAGBus, idcode uint32) (t *target.Target, ok bool, err error)

// JTAGRow is JTAG's Row: the same (designer_mask, partno_mask,
// probe_fn) dispatch entry, matched against the designer/part fields
// an IDCODE's IEEE 1149.1 layout carries rather than TARGETID's.
type JTAGRow struct {
	Name         string
	DesignerMask uint16
	Designer     uint16
	PartMask     uint16
	Part         uint16
	Priority     int
	Probe        JTAGProbeFunc
}

func (r JTAGRow) matches(designer, part uint16) bool {
	if r.DesignerMask != 0 && designer&r.DesignerMask != r.Designer&r.DesignerMask {
		return false
	}
	if r.PartMask != 0 && part&r.PartMask != r.Part&r.PartMask {
		return false
	}
	return true
}

var jtagRows []JTAGRow

// MustRegisterJTAG adds row to the JTAG dispatch table, with the same
// panic-on-duplicate-name, priority-sorted contract MustRegister
// gives the ADIv5 table.
func MustRegisterJTAG(row JTAGRow) {
	for _, r := range jtagRows {
		if r.Name == row.Name {
			panic(fmt.Sprintf("probereg: %q already registered", row.Name))
		}
	}
	jtagRows = append(jtagRows, row)
	sort.SliceStable(jtagRows, func(i, j int) bool { return jtagRows[i].Priority < jtagRows[j].Priority })
}

// jep106 splits a 32-bit JTAG IDCODE into the JEDEC JEP106
// manufacturer id and part-number fields every IEEE 1149.1-compliant
// TAP's IDCODE register carries: bit 0 is fixed at 1, bits 1-11 are
// the manufacturer id, bits 12-27 the part number, bits 28-31 the
// version.
func jep106(idcode uint32) (designer, part uint16) {
	return uint16((idcode >> 1) & 0x7FF), uint16((idcode >> 12) & 0xFFFF)
}

// ScanJTAG tries every registered JTAGRow, in priority order, against
// the designer/part jep106 decodes from idcode, returning the first
// target a probe function recognizes.
func ScanJTAG(jtag wire.JTAGBus, idcode uint32) (*target.Target, error) {
	designer, part := jep106(idcode)
	for _, row := range jtagRows {
		if !row.matches(designer, part) {
			continue
		}
		t, ok, err := row.Probe(jtag, idcode)
		if err != nil {
			return nil, fmt.Errorf("probereg: %s: %w", row.Name, err)
		}
		if ok {
			return t, nil
		}
	}
	return nil, nil
}

// JTAGRows returns the currently registered JTAG dispatch table, for
// diagnostics.
func JTAGRows() []JTAGRow {
	out := make([]JTAGRow, len(jtagRows))
	copy(out, jtagRows)
	return out
}

// resetJTAG clears the JTAG table; used only by tests.
func resetJTAG() { jtagRows = nil }
