// Copyright 2026 The Black Magic Debug Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package adiv5

// AP register addresses within a 16-byte bank (spec.md §4.2 "AP
// access banking").
const (
	apCSW byte = 0x00
	apTAR byte = 0x04
	apDRW byte = 0x0C
	apIDR byte = 0xFC
)

// CSW size/increment fields.
const (
	cswSize8  uint32 = 0
	cswSize16 uint32 = 1
	cswSize32 uint32 = 2

	cswAddrIncOff    uint32 = 0 << 4
	cswAddrIncSingle uint32 = 1 << 4
	cswAddrIncPacked uint32 = 2 << 4
)

// APClass distinguishes memory-access APs from the rest, per
// spec.md §3: "an AP is either a MEM-AP (class 0x8) or a non-memory
// AP (class 0x0/JTAG, class 0x1/COM)".
type APClass uint8

const (
	APClassJTAGOrCOM APClass = 0x0
	APClassCOM       APClass = 0x1
	APClassMEM       APClass = 0x8
)

// APType enumerates the MEM-AP bus types spec.md §3 names.
type APType uint8

const (
	APTypeUnknown APType = iota
	APTypeAHB3
	APTypeAHB5
	APTypeAXI3
	APTypeAXI4
	APTypeAXI5
	APTypeAPB2
	APTypeAPB3
	APTypeAPB4
	APTypeAPB5
	APTypeJTAGAP
)

// AP is one Access Port behind a DP, discovered by probing APSEL
// 0..255 (ADIv5) or walking the AP ROM table (ADIv6).
type AP struct {
	dp    *DP
	sel   uint8
	bank  uint8

	IDR   uint32
	Class APClass
	Type  APType
	Base  uint64
	is64  bool

	cswCache  uint32
	cswValid  bool
	tarCache  uint64
	tarValid  bool
}

// Sel returns the APSEL this AP was probed at.
func (a *AP) Sel() uint8 { return a.sel }

// IsMemAP reports whether this AP is a MEM-AP, per spec.md §3's
// invariant that only MEM-APs participate in memory reads/writes.
func (a *AP) IsMemAP() bool { return a.Class == APClassMEM }

// ProbeAP reads IDR at apsel and classifies it; returns ok=false if
// the AP does not exist (IDR reads as zero, the standard ADIv5 tell).
func ProbeAP(dp *DP, apsel uint8) (ap *AP, ok bool, err error) {
	a := &AP{dp: dp, sel: apsel}
	idr, err := a.ReadReg(apIDR)
	if err != nil {
		return nil, false, err
	}
	if idr == 0 {
		return nil, false, nil
	}
	a.IDR = idr
	a.Class = APClass((idr >> 13) & 0xF)
	if a.Class == APClassMEM {
		a.Type = decodeMemAPType(idr)
		if base, err := a.ReadReg(apBASE); err == nil {
			a.Base = uint64(base)
		}
		if cfg, err := a.ReadReg(apCFG); err == nil {
			a.is64 = cfg&cfgLA != 0
		}
	}
	return a, true, nil
}

const (
	apBASE byte = 0xF8
	apCFG  byte = 0xF4
)

const cfgLA uint32 = 1 << 1

func decodeMemAPType(idr uint32) APType {
	variant := (idr >> 4) & 0xF
	class := (idr >> 13) & 0xF
	_ = class
	switch variant {
	case 0x1:
		return APTypeAHB3
	case 0x2:
		return APTypeAPB2
	case 0x4:
		return APTypeAXI3
	case 0x5:
		return APTypeAPB4
	case 0x6:
		return APTypeAXI5
	case 0x7:
		return APTypeAHB5
	case 0x8:
		return APTypeAPB5
	case 0x9:
		return APTypeAXI4
	default:
		return APTypeUnknown
	}
}

// ReadReg reads one AP register, ensuring SELECT is banked correctly
// first (spec.md §4.2).
func (a *AP) ReadReg(addr byte) (uint32, error) {
	if err := a.dp.selectAP(a.sel, addr>>4); err != nil {
		return 0, err
	}
	// AP reads are posted: spec.md §4.2. One extra RDBUFF read flushes
	// the pipeline so the caller sees classical read semantics.
	if _, err := a.dp.xfer(true, true, addr, 0); err != nil {
		return 0, err
	}
	return a.dp.readRDBUFF()
}

// WriteReg writes one AP register.
func (a *AP) WriteReg(addr byte, v uint32) error {
	if err := a.dp.selectAP(a.sel, addr>>4); err != nil {
		return err
	}
	_, err := a.dp.xfer(true, false, addr, v)
	return err
}

// setCSW writes CSW only if it differs from the cached value, the
// same redundant-write avoidance spec.md §4.2 describes for SELECT.
func (a *AP) setCSW(size uint32) error {
	v := size | cswAddrIncSingle
	if a.cswValid && a.cswCache == v {
		return nil
	}
	if err := a.WriteReg(apCSW, v); err != nil {
		return err
	}
	a.cswCache = v
	a.cswValid = true
	return nil
}

// setTAR writes TAR only if it differs from the cached value.
func (a *AP) setTAR(addr uint32) error {
	v := uint64(addr)
	if a.tarValid && a.tarCache == v {
		return nil
	}
	if err := a.WriteReg(apTAR, addr); err != nil {
		return err
	}
	a.tarCache = v
	a.tarValid = true
	return nil
}
