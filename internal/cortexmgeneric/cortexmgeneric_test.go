// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cortexmgeneric

import (
	"testing"

	"periph.io/x/blackmagic/internal/target"
)

// fakeMem is a register-map fake satisfying memAP; reads of
// unprogrammed addresses (e.g. the CoreSight ROM table this test
// never sets up) return zero, which coresight.Walk tolerates as "no
// component here".
type fakeMem map[uint32]uint32

func (f fakeMem) ReadMem32(addr uint32) (uint32, error) { return f[addr], nil }
func (f fakeMem) WriteMem32(addr, v uint32) error {
	f[addr] = v
	return nil
}

func TestNewTargetRecognizesARMCPUID(t *testing.T) {
	mem := fakeMem{cpuidAddr: 0x410FC241} // a real Cortex-M4 CPUID value
	tgt, ok, err := newTarget(mem)
	if err != nil {
		t.Fatalf("newTarget: %v", err)
	}
	if !ok || tgt == nil {
		t.Fatal("expected newTarget to recognize the core")
	}
	if tgt.Kind != target.KindCortexM {
		t.Fatalf("got Kind=%v, want KindCortexM", tgt.Kind)
	}
	if tgt.Designer != genericDesigner || tgt.Part != genericPart {
		t.Fatalf("expected the generic sentinel designer/part with no CoreSight ROM table, got %#x/%#x", tgt.Designer, tgt.Part)
	}
	if len(tgt.Flash) != 1 {
		t.Fatalf("expected the generic Flash driver to populate one region, got %d", len(tgt.Flash))
	}
	if len(tgt.RAM) != 1 || tgt.RAM[0].Start != 0x20000000 {
		t.Fatalf("got RAM=%+v", tgt.RAM)
	}
}

func TestNewTargetRejectsNonARMImplementer(t *testing.T) {
	mem := fakeMem{cpuidAddr: 0x00000000}
	tgt, ok, err := newTarget(mem)
	if err != nil {
		t.Fatalf("newTarget: %v", err)
	}
	if ok || tgt != nil {
		t.Fatalf("expected no match for a zero CPUID, got %+v", tgt)
	}
}
