// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package riscv

import "periph.io/x/blackmagic/internal/target"

// maxTriggers is a conservative floor most RISC-V debug
// implementations meet or exceed (tinfo/triggerinfo would report the
// real count on real silicon); spec.md §5.2 does not fix a number, so
// this mirrors the allocator shape internal/cortexm uses for its
// fixed-size FPB/DWT arrays.
const maxTriggers = 4

// TriggerModule allocates tselect-indexed comparators for both
// instruction (execute) and data (load/store) triggers, using the
// match-control (type 2) encoding the upstream RISC-V debug spec's
// §4.1 defines and spec.md §5.2 says to follow verbatim.
type TriggerModule struct {
	core *Core
	used [maxTriggers]bool
}

func (tm *TriggerModule) alloc(bw *target.Breakwatch) (int, error) {
	for i, u := range tm.used {
		if u {
			continue
		}
		if err := tm.core.writeReg(csrTselect, uint32(i)); err != nil {
			return 0, err
		}
		tdata1 := mcontrolType2 | mcontrolDmode | mcontrolMAction | mcontrolM
		switch bw.Kind {
		case target.BreakwatchHardware, target.BreakwatchSoftware:
			tdata1 |= mcontrolMExec
		case target.BreakwatchWatchRead:
			tdata1 |= mcontrolMLoad
		case target.BreakwatchWatchWrite:
			tdata1 |= mcontrolMStore
		case target.BreakwatchWatchAccess:
			tdata1 |= mcontrolMLoad | mcontrolMStore
		}
		if err := tm.core.writeReg(csrTdata2, bw.Addr); err != nil {
			return 0, err
		}
		if err := tm.core.writeReg(csrTdata1, tdata1); err != nil {
			return 0, err
		}
		tm.used[i] = true
		return i, nil
	}
	return 0, target.ErrNoHwResource
}

func (tm *TriggerModule) free(slot int) error {
	if slot < 0 || slot >= maxTriggers || !tm.used[slot] {
		return nil
	}
	if err := tm.core.writeReg(csrTselect, uint32(slot)); err != nil {
		return err
	}
	if err := tm.core.writeReg(csrTdata1, 0); err != nil {
		return err
	}
	tm.used[slot] = false
	return nil
}
