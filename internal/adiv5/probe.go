// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package adiv5

// Probe is the single active wire connection: "the wire transport is
// owned by the current DP; only one DP is ever active" (spec.md §5).
// It is the arena root Design Notes §9 calls for: DP and AP both
// live here rather than behind free-standing pointers, and every
// cross-reference from a higher layer is this Probe plus an AP
// index, not a pointer chain.
type Probe struct {
	DP *DP
}

// MaxAPSel is the width of the APSEL field: spec.md §9's "effectively
// 256 by APSEL width".
const MaxAPSel = 256

// ScanAPs implements the Open Question spec.md §9 leaves undecided:
// "scan first, then re-read TARGETID per-AP". It probes APSEL
// 0..255, appends every AP that answers, and only afterwards
// re-reads TARGETID (when the DP advertises it) for each discovered
// AP, rather than interleaving the two as the source does
// inconsistently.
func (dp *DP) ScanAPs() ([]*AP, error) {
	var found []*AP
	for sel := 0; sel < MaxAPSel; sel++ {
		ap, ok, err := ProbeAP(dp, uint8(sel))
		if err != nil {
			return found, err
		}
		if !ok {
			continue
		}
		found = append(found, ap)
	}
	dp.aps = make([]AP, len(found))
	for i, ap := range found {
		dp.aps[i] = *ap
	}
	// Re-read TARGETID per-AP now that the full set is known. TARGETID
	// is a DP-level register on parts that advertise it; a DP that
	// doesn't is left with designer/part unset, which is valid per
	// spec.md §3 ("if advertised by TARGETID").
	for i := range dp.aps {
		dp.refreshTargetID(&dp.aps[i])
	}
	return toPointers(dp.aps), nil
}

func toPointers(aps []AP) []*AP {
	out := make([]*AP, len(aps))
	for i := range aps {
		out[i] = &aps[i]
	}
	return out
}

const dpTARGETID byte = 0x4 // bank 2 of CTRL/STAT address space

// refreshTargetID best-effort reads TARGETID via SELECT.DPBANKSEL=2;
// failures are ignored since not every DP implements it.
func (dp *DP) refreshTargetID(ap *AP) {
	prevValid, prevCache := dp.selectValid, dp.selectCache
	defer func() { dp.selectValid, dp.selectCache = prevValid, prevCache }()

	v := uint32(2) // DPBANKSEL=2 selects TARGETID at offset 0x4
	if err := dp.WriteReg(dpSELECT, v); err != nil {
		return
	}
	dp.selectCache = v
	dp.selectValid = true
	targetID, err := dp.ReadReg(dpTARGETID)
	if err != nil {
		return
	}
	dp.designer = uint16((targetID >> 1) & 0x7FF)
	dp.part = uint16((targetID >> 12) & 0xFFFF)
	_ = ap
}

// Designer and Part return the JEP-106 designer code and part number
// TARGETID advertised, if any.
func (dp *DP) Designer() uint16 { return dp.designer }
func (dp *DP) Part() uint16     { return dp.part }

// APs returns the APs discovered by the last ScanAPs call.
func (dp *DP) APs() []*AP {
	return toPointers(dp.aps)
}
