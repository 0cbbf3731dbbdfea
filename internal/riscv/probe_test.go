// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package riscv

import (
	"testing"

	"periph.io/x/blackmagic/internal/target"
)

func TestProbeJTAGRecognizesDebugModule(t *testing.T) {
	f := &fakeDM{mem: map[uint8]uint32{dmStatus: 2}} // version 0.13
	tgt, ok, err := probeJTAG(f, 0x20000913)
	if err != nil {
		t.Fatalf("probeJTAG: %v", err)
	}
	if !ok || tgt == nil {
		t.Fatal("expected probeJTAG to recognize the Debug Module")
	}
	if tgt.Kind != target.KindRV32 {
		t.Fatalf("got Kind=%v, want KindRV32", tgt.Kind)
	}
	if tgt.Core == nil {
		t.Fatal("expected a non-nil Core")
	}
}

func TestProbeJTAGRejectsUnrelatedTAP(t *testing.T) {
	f := &fakeDM{mem: map[uint8]uint32{}} // dmStatus reads back 0
	tgt, ok, err := probeJTAG(f, 0x4BA00477)
	if err != nil {
		t.Fatalf("probeJTAG: %v", err)
	}
	if ok || tgt != nil {
		t.Fatalf("expected no match for a non-Debug-Module TAP, got %+v", tgt)
	}
}
