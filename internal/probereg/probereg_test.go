// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package probereg

import (
	"errors"
	"testing"

	"periph.io/x/blackmagic/internal/adiv5"
	"periph.io/x/blackmagic/internal/target"
	"periph.io/x/blackmagic/internal/wire"
	"periph.io/x/blackmagic/internal/wire/simbus"
)

func TestScanPicksFirstMatchInPriorityOrder(t *testing.T) {
	reset()
	defer reset()

	var calledLow, calledHigh bool
	MustRegister(Row{
		Name:     "low-priority-stub",
		Priority: 10,
		Probe: func(ap *adiv5.AP) (*target.Target, bool, error) {
			calledLow = true
			return &target.Target{DriverName: "low"}, true, nil
		},
	})
	MustRegister(Row{
		Name:     "high-priority-stub",
		Priority: 0,
		Probe: func(ap *adiv5.AP) (*target.Target, bool, error) {
			calledHigh = true
			return &target.Target{DriverName: "high"}, true, nil
		},
	})

	got, err := Scan(&adiv5.AP{}, 0, 0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got == nil || got.DriverName != "high" {
		t.Fatalf("expected the higher-priority row to win, got %+v", got)
	}
	if !calledHigh || calledLow {
		t.Fatalf("calledHigh=%v calledLow=%v, want true/false", calledHigh, calledLow)
	}
}

func TestScanSkipsNonMatchingDesignerMask(t *testing.T) {
	reset()
	defer reset()

	MustRegister(Row{
		Name:         "st-only",
		DesignerMask: 0xFFFF,
		Designer:     0x0020, // STMicroelectronics JEP-106
		Probe: func(ap *adiv5.AP) (*target.Target, bool, error) {
			return &target.Target{DriverName: "stm32"}, true, nil
		},
	})

	got, err := Scan(&adiv5.AP{}, 0x0041, 0) // a different designer
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no match, got %+v", got)
	}
}

func TestScanReturnsNilWhenNoRowMatches(t *testing.T) {
	reset()
	defer reset()
	got, err := Scan(&adiv5.AP{}, 0, 0)
	if err != nil || got != nil {
		t.Fatalf("expected nil,nil on an empty table, got %+v, %v", got, err)
	}
}

func TestScanPropagatesProbeError(t *testing.T) {
	reset()
	defer reset()
	wantErr := errors.New("boom")
	MustRegister(Row{
		Name: "broken",
		Probe: func(ap *adiv5.AP) (*target.Target, bool, error) {
			return nil, false, wantErr
		},
	})
	_, err := Scan(&adiv5.AP{}, 0, 0)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestMustRegisterPanicsOnDuplicateName(t *testing.T) {
	reset()
	defer reset()
	MustRegister(Row{Name: "dup"})
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on duplicate registration")
		}
	}()
	MustRegister(Row{Name: "dup"})
}

func TestScanJTAGPicksFirstMatchInPriorityOrder(t *testing.T) {
	resetJTAG()
	defer resetJTAG()

	var calledLow, calledHigh bool
	MustRegisterJTAG(JTAGRow{
		Name:     "low-priority-jtag-stub",
		Priority: 10,
		Probe: func(jtag wire.JTAGBus, idcode uint32) (*target.Target, bool, error) {
			calledLow = true
			return &target.Target{DriverName: "low"}, true, nil
		},
	})
	MustRegisterJTAG(JTAGRow{
		Name:     "high-priority-jtag-stub",
		Priority: 0,
		Probe: func(jtag wire.JTAGBus, idcode uint32) (*target.Target, bool, error) {
			calledHigh = true
			return &target.Target{DriverName: "high"}, true, nil
		},
	})

	got, err := ScanJTAG(simbus.New(), 0x4BA00477)
	if err != nil {
		t.Fatalf("ScanJTAG: %v", err)
	}
	if got == nil || got.DriverName != "high" {
		t.Fatalf("expected the higher-priority row to win, got %+v", got)
	}
	if !calledHigh || calledLow {
		t.Fatalf("calledHigh=%v calledLow=%v, want true/false", calledHigh, calledLow)
	}
}

func TestScanJTAGMatchesDesignerFromIDCODE(t *testing.T) {
	resetJTAG()
	defer resetJTAG()

	// ARM's own JEP-106 code, 0x23B, encoded into an IDCODE the way
	// jep106 decodes it: bit 0 fixed, bits 1-11 manufacturer.
	const idcode = uint32(0x23B)<<1 | 1
	MustRegisterJTAG(JTAGRow{
		Name:         "arm-only",
		DesignerMask: 0x7FF,
		Designer:     0x23B,
		Probe: func(jtag wire.JTAGBus, idcode uint32) (*target.Target, bool, error) {
			return &target.Target{DriverName: "matched"}, true, nil
		},
	})

	got, err := ScanJTAG(simbus.New(), idcode)
	if err != nil {
		t.Fatalf("ScanJTAG: %v", err)
	}
	if got == nil || got.DriverName != "matched" {
		t.Fatalf("expected a match, got %+v", got)
	}

	got, err = ScanJTAG(simbus.New(), 0x1) // designer 0, no match
	if err != nil {
		t.Fatalf("ScanJTAG: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no match, got %+v", got)
	}
}

func TestMustRegisterJTAGPanicsOnDuplicateName(t *testing.T) {
	resetJTAG()
	defer resetJTAG()
	MustRegisterJTAG(JTAGRow{Name: "dup"})
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on duplicate registration")
		}
	}()
	MustRegisterJTAG(JTAGRow{Name: "dup"})
}
