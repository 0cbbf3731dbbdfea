// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package probe is the single context object spec.md Design Notes §9
// calls for: it threads the wire transport, the ADIv5 DP, the target
// registry, and the optional target-power pin together in one value
// instead of the source's global mutable state ("g_mode", "cur_link",
// a file-scope target list). Everything downstream — internal/cli and
// internal/gdbserver — holds a *Probe instead of reaching for package
// globals.
package probe

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"periph.io/x/blackmagic/internal/adiv5"
	"periph.io/x/blackmagic/internal/probereg"
	"periph.io/x/blackmagic/internal/target"
	"periph.io/x/blackmagic/internal/wire"
)

// Probe is one physical debug adapter: its wire transports, the
// ADIv5 Debug Port currently attached over them (if any), the set of
// targets found behind that DP, and the board's target-power switch.
type Probe struct {
	SWD  wire.SWDBus
	JTAG wire.JTAGBus
	TPwr gpio.PinOut // nil on boards with no controllable VCC switch

	DP       *adiv5.DP
	Registry *target.Registry

	freq physic.Frequency
}

// New wraps the two wire transports (either may be nil on a board
// that only implements one of SWD/JTAG) into a fresh Probe with an
// empty target registry.
func New(swd wire.SWDBus, jtag wire.JTAGBus, tpwr gpio.PinOut) *Probe {
	return &Probe{SWD: swd, JTAG: jtag, TPwr: tpwr, Registry: &target.Registry{}}
}

// ErrNoSWD and ErrNoJTAG report a scan request against a transport
// the board doesn't wire up.
var (
	ErrNoSWD  = errors.New("probe: no SWD transport configured")
	ErrNoJTAG = errors.New("probe: no JTAG transport configured")
)

// ScanSWD implements the `swdp_scan` CLI command (spec.md §6): line
// reset, bring up a Debug Port, enumerate its Access Ports, and run
// probereg.Scan against each to recognize a target core. It replaces
// any previously discovered targets, matching the source's behaviour
// of a fresh scan superseding the prior one.
func (p *Probe) ScanSWD() ([]*target.Target, error) {
	if p.SWD == nil {
		return nil, ErrNoSWD
	}
	dp, err := adiv5.NewDP(p.SWD)
	if err != nil {
		return nil, fmt.Errorf("probe: swdp_scan: %w", err)
	}
	p.DP = dp
	aps, err := dp.ScanAPs()
	if err != nil {
		return nil, fmt.Errorf("probe: swdp_scan: %w", err)
	}
	p.Registry.Reset()
	for _, ap := range aps {
		if !ap.IsMemAP() {
			continue
		}
		t, err := probereg.Scan(ap, dp.Designer(), dp.Part())
		if err != nil {
			return nil, fmt.Errorf("probe: swdp_scan: %w", err)
		}
		if t != nil {
			p.Registry.Add(t)
		}
	}
	return p.Registry.All(), nil
}

// JTAGIDCodes implements the TAP enumeration half of `jtag_scan`: it
// resets the TAP chain and shifts out whatever the chain returns on
// TDO through Shift-DR from Test-Logic-Reset, which is IDCODE for
// every compliant device in the chain. A full JTAG-DP (ADIv5/v6 over
// JTAG) is out of scope for this module — internal/adiv5 only speaks
// SWD — so unlike ScanSWD this does not populate the target registry;
// it only reports what answered, which is what the CLI prints.
func (p *Probe) JTAGIDCodes(chainLen int) ([]uint32, error) {
	if p.JTAG == nil {
		return nil, ErrNoJTAG
	}
	if err := p.JTAG.Reset(); err != nil {
		return nil, fmt.Errorf("probe: jtag_scan: %w", err)
	}
	if err := p.JTAG.GotoState(wire.TAPShiftDR); err != nil {
		return nil, fmt.Errorf("probe: jtag_scan: %w", err)
	}
	out := make([]uint32, 0, chainLen)
	for i := 0; i < chainLen; i++ {
		raw, err := p.JTAG.ShiftDR(make([]byte, 4), 32)
		if err != nil {
			return nil, fmt.Errorf("probe: jtag_scan: %w", err)
		}
		var v uint32
		for j, b := range raw {
			v |= uint32(b) << (8 * j)
		}
		if v == 0 || v == 0xFFFFFFFF {
			break // no further devices in the chain
		}
		out = append(out, v)
	}
	return out, nil
}

// ScanJTAG implements the target-recognition half of `jtag_scan`: it
// walks the chain the same way JTAGIDCodes does, then runs
// probereg.ScanJTAG against each IDCODE to recognize a core driven
// directly over the chain's native scan registers (RISC-V's Debug
// Module, which has no ADIv5 AP to go through). It replaces any
// previously discovered targets, the same fresh-scan-supersedes
// behaviour ScanSWD gives.
func (p *Probe) ScanJTAG(chainLen int) ([]*target.Target, error) {
	ids, err := p.JTAGIDCodes(chainLen)
	if err != nil {
		return nil, err
	}
	p.Registry.Reset()
	for _, id := range ids {
		t, err := probereg.ScanJTAG(p.JTAG, id)
		if err != nil {
			return nil, fmt.Errorf("probe: jtag_scan: %w", err)
		}
		if t != nil {
			p.Registry.Add(t)
		}
	}
	return p.Registry.All(), nil
}

// SetFrequency implements `frequency <n>` (spec.md §6): 0 means
// "fastest", forwarded to the active transport's SetClock, which
// returns the rate it actually achieved.
func (p *Probe) SetFrequency(hz uint32) (physic.Frequency, error) {
	f := physic.Frequency(hz) * physic.Hertz
	var (
		got physic.Frequency
		err error
	)
	switch {
	case p.SWD != nil:
		got, err = p.SWD.SetClock(f)
	case p.JTAG != nil:
		got, err = p.JTAG.SetClock(f)
	default:
		return 0, errors.New("probe: no transport configured")
	}
	if err != nil {
		return 0, err
	}
	p.freq = got
	return got, nil
}

// Frequency returns the last clock rate SetFrequency achieved.
func (p *Probe) Frequency() physic.Frequency { return p.freq }

// SetTargetPower implements `tpwr <0|1>` (spec.md §6). It errors on a
// board with no controllable VCC switch rather than silently no-op,
// so the CLI can report it as unsupported.
func (p *Probe) SetTargetPower(on bool) error {
	if p.TPwr == nil {
		return errors.New("probe: no controllable target power on this board")
	}
	return p.TPwr.Out(gpio.Level(on))
}
